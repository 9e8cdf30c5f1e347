package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tvloc02/EventVer1-sub001/shared/database"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models/auth"
)

// MongoStore is the Store used with DB_DRIVER=mongo. Ids are stored as
// uuid strings in _id so subjects look the same on both backends.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

type userDoc struct {
	ID                string     `bson:"_id"`
	Email             string     `bson:"email"`
	Password          string     `bson:"password"`
	FirstName         string     `bson:"first_name"`
	LastName          string     `bson:"last_name"`
	StudentID         string     `bson:"student_id,omitempty"`
	Phone             string     `bson:"phone,omitempty"`
	Role              string     `bson:"role"`
	Status            string     `bson:"status"`
	EmailVerified     bool       `bson:"email_verified"`
	LastLoginAt       *time.Time `bson:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time `bson:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `bson:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at"`
}

func (d *userDoc) model() *models.User {
	id, _ := uuid.Parse(d.ID)
	return &models.User{
		ID:                id,
		Email:             d.Email,
		Password:          d.Password,
		FirstName:         d.FirstName,
		LastName:          d.LastName,
		StudentID:         d.StudentID,
		Phone:             d.Phone,
		Role:              d.Role,
		Status:            d.Status,
		EmailVerified:     d.EmailVerified,
		LastLoginAt:       d.LastLoginAt,
		PasswordChangedAt: d.PasswordChangedAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type resetTokenDoc struct {
	ID        string     `bson:"_id"`
	UserID    string     `bson:"user_id"`
	TokenHash string     `bson:"token_hash"`
	ExpiresAt time.Time  `bson:"expires_at"`
	Used      bool       `bson:"used"`
	UsedAt    *time.Time `bson:"used_at,omitempty"`
	IPAddress string     `bson:"ip_address,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
}

type verificationTokenDoc struct {
	ID         string     `bson:"_id"`
	UserID     string     `bson:"user_id"`
	TokenHash  string     `bson:"token_hash"`
	Email      string     `bson:"email"`
	ExpiresAt  time.Time  `bson:"expires_at"`
	Verified   bool       `bson:"verified"`
	VerifiedAt *time.Time `bson:"verified_at,omitempty"`
	IPAddress  string     `bson:"ip_address,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
}

func (s *MongoStore) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var d userDoc
	if err := s.coll(database.CollUsers).FindOne(ctx, bson.M{"email": email}).Decode(&d); err != nil {
		return nil, mongoNotFound(err, "find user by email")
	}
	return d.model(), nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var d userDoc
	if err := s.coll(database.CollUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, mongoNotFound(err, "find user by id")
	}
	return d.model(), nil
}

func (s *MongoStore) Create(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	d := userDoc{
		ID:                u.ID.String(),
		Email:             u.Email,
		Password:          u.Password,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		StudentID:         u.StudentID,
		Phone:             u.Phone,
		Role:              u.Role,
		Status:            u.Status,
		EmailVerified:     u.EmailVerified,
		LastLoginAt:       u.LastLoginAt,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
	if _, err := s.coll(database.CollUsers).InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *MongoStore) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return s.updateUser(ctx, id, bson.M{"password": hash, "password_changed_at": at})
}

func (s *MongoStore) MarkEmailVerified(ctx context.Context, id string) error {
	return s.updateUser(ctx, id, bson.M{"email_verified": true})
}

func (s *MongoStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateUser(ctx, id, bson.M{"last_login_at": at})
}

func (s *MongoStore) updateUser(ctx context.Context, id string, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	res, err := s.coll(database.CollUsers).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) RecordLoginAttempt(ctx context.Context, a *auth.LoginAttempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.coll(database.CollLoginAttempts).InsertOne(ctx, bson.M{
		"_id":          a.ID.String(),
		"email":        a.Email,
		"ip_address":   a.IPAddress,
		"user_agent":   a.UserAgent,
		"successful":   a.Successful,
		"failure_type": a.FailureType,
		"created_at":   a.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	return nil
}

func (s *MongoStore) CountFailedLogins(ctx context.Context, email string, since time.Time) (int64, error) {
	n, err := s.coll(database.CollLoginAttempts).CountDocuments(ctx, bson.M{
		"email":      email,
		"successful": false,
		"created_at": bson.M{"$gte": since},
	})
	if err != nil {
		return 0, fmt.Errorf("count failed logins: %w", err)
	}
	return n, nil
}

func (s *MongoStore) RecordResetAttempt(ctx context.Context, a *auth.PasswordResetAttempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.coll(database.CollResetAttempts).InsertOne(ctx, bson.M{
		"_id":        a.ID.String(),
		"email":      a.Email,
		"ip_address": a.IPAddress,
		"user_agent": a.UserAgent,
		"created_at": a.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("record reset attempt: %w", err)
	}
	return nil
}

func (s *MongoStore) CountResetAttempts(ctx context.Context, email string, since time.Time) (int64, error) {
	n, err := s.coll(database.CollResetAttempts).CountDocuments(ctx, bson.M{
		"email":      email,
		"created_at": bson.M{"$gte": since},
	})
	if err != nil {
		return 0, fmt.Errorf("count reset attempts: %w", err)
	}
	return n, nil
}

func (s *MongoStore) SaveResetToken(ctx context.Context, t *auth.PasswordResetToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := s.coll(database.CollResetTokens).InsertOne(ctx, resetTokenDoc{
		ID:        t.ID.String(),
		UserID:    t.UserID.String(),
		TokenHash: t.TokenHash,
		ExpiresAt: t.ExpiresAt,
		Used:      t.Used,
		UsedAt:    t.UsedAt,
		IPAddress: t.IPAddress,
		CreatedAt: t.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

func (s *MongoStore) FindResetToken(ctx context.Context, hash string) (*auth.PasswordResetToken, error) {
	var d resetTokenDoc
	if err := s.coll(database.CollResetTokens).FindOne(ctx, bson.M{"token_hash": hash}).Decode(&d); err != nil {
		return nil, mongoNotFound(err, "find reset token")
	}
	id, _ := uuid.Parse(d.ID)
	userID, _ := uuid.Parse(d.UserID)
	return &auth.PasswordResetToken{
		ID:        id,
		UserID:    userID,
		TokenHash: d.TokenHash,
		ExpiresAt: d.ExpiresAt,
		Used:      d.Used,
		UsedAt:    d.UsedAt,
		IPAddress: d.IPAddress,
		CreatedAt: d.CreatedAt,
	}, nil
}

func (s *MongoStore) ClaimResetToken(ctx context.Context, id string, at time.Time) error {
	res, err := s.coll(database.CollResetTokens).UpdateOne(ctx,
		bson.M{"_id": id, "used": false},
		bson.M{"$set": bson.M{"used": true, "used_at": at}},
	)
	if err != nil {
		return fmt.Errorf("claim reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ConsumeResetTokens(ctx context.Context, userID string, at time.Time) error {
	_, err := s.coll(database.CollResetTokens).UpdateMany(ctx,
		bson.M{"user_id": userID, "used": false},
		bson.M{"$set": bson.M{"used": true, "used_at": at}},
	)
	if err != nil {
		return fmt.Errorf("consume reset tokens: %w", err)
	}
	return nil
}

func (s *MongoStore) SaveVerificationToken(ctx context.Context, t *auth.EmailVerificationToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := s.coll(database.CollVerificationTokens).InsertOne(ctx, verificationTokenDoc{
		ID:         t.ID.String(),
		UserID:     t.UserID.String(),
		TokenHash:  t.TokenHash,
		Email:      t.Email,
		ExpiresAt:  t.ExpiresAt,
		Verified:   t.Verified,
		VerifiedAt: t.VerifiedAt,
		IPAddress:  t.IPAddress,
		CreatedAt:  t.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("save verification token: %w", err)
	}
	return nil
}

func (s *MongoStore) FindVerificationToken(ctx context.Context, hash string) (*auth.EmailVerificationToken, error) {
	var d verificationTokenDoc
	if err := s.coll(database.CollVerificationTokens).FindOne(ctx, bson.M{"token_hash": hash}).Decode(&d); err != nil {
		return nil, mongoNotFound(err, "find verification token")
	}
	id, _ := uuid.Parse(d.ID)
	userID, _ := uuid.Parse(d.UserID)
	return &auth.EmailVerificationToken{
		ID:         id,
		UserID:     userID,
		TokenHash:  d.TokenHash,
		Email:      d.Email,
		ExpiresAt:  d.ExpiresAt,
		Verified:   d.Verified,
		VerifiedAt: d.VerifiedAt,
		IPAddress:  d.IPAddress,
		CreatedAt:  d.CreatedAt,
	}, nil
}

func (s *MongoStore) ClaimVerificationToken(ctx context.Context, id string, at time.Time) error {
	res, err := s.coll(database.CollVerificationTokens).UpdateOne(ctx,
		bson.M{"_id": id, "verified": false},
		bson.M{"$set": bson.M{"verified": true, "verified_at": at}},
	)
	if err != nil {
		return fmt.Errorf("claim verification token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SaveAudit(ctx context.Context, l *auth.AuditLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll(database.CollAuditLogs).InsertOne(ctx, bson.M{
		"_id":        l.ID.String(),
		"event":      l.Event,
		"subject":    l.Subject,
		"success":    l.Success,
		"reason":     l.Reason,
		"ip_address": l.IPAddress,
		"user_agent": l.UserAgent,
		"platform":   l.Platform,
		"created_at": l.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("save audit log: %w", err)
	}
	return nil
}

func mongoNotFound(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
