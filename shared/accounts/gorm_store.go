package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models/auth"
)

// GormStore is the Postgres Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err, "find user by email")
	}
	return &u, nil
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", uid).First(&u).Error; err != nil {
		return nil, notFound(err, "find user by id")
	}
	return &u, nil
}

func (s *GormStore) Create(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *GormStore) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return s.updateUser(ctx, id, map[string]any{
		"password":            hash,
		"password_changed_at": at,
	})
}

func (s *GormStore) MarkEmailVerified(ctx context.Context, id string) error {
	return s.updateUser(ctx, id, map[string]any{"email_verified": true})
}

func (s *GormStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateUser(ctx, id, map[string]any{"last_login_at": at})
}

func (s *GormStore) updateUser(ctx context.Context, id string, fields map[string]any) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) RecordLoginAttempt(ctx context.Context, a *auth.LoginAttempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	return nil
}

func (s *GormStore) CountFailedLogins(ctx context.Context, email string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&auth.LoginAttempt{}).
		Where("email = ? AND successful = ? AND created_at >= ?", email, false, since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count failed logins: %w", err)
	}
	return n, nil
}

func (s *GormStore) RecordResetAttempt(ctx context.Context, a *auth.PasswordResetAttempt) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("record reset attempt: %w", err)
	}
	return nil
}

func (s *GormStore) CountResetAttempts(ctx context.Context, email string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&auth.PasswordResetAttempt{}).
		Where("email = ? AND created_at >= ?", email, since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count reset attempts: %w", err)
	}
	return n, nil
}

func (s *GormStore) SaveResetToken(ctx context.Context, t *auth.PasswordResetToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

func (s *GormStore) FindResetToken(ctx context.Context, hash string) (*auth.PasswordResetToken, error) {
	var t auth.PasswordResetToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, notFound(err, "find reset token")
	}
	return &t, nil
}

func (s *GormStore) ClaimResetToken(ctx context.Context, id string, at time.Time) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).Model(&auth.PasswordResetToken{}).
		Where("id = ? AND used = ?", uid, false).
		Updates(map[string]any{"used": true, "used_at": at})
	if res.Error != nil {
		return fmt.Errorf("claim reset token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ConsumeResetTokens(ctx context.Context, userID string, at time.Time) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return ErrNotFound
	}
	err = s.db.WithContext(ctx).Model(&auth.PasswordResetToken{}).
		Where("user_id = ? AND used = ?", uid, false).
		Updates(map[string]any{"used": true, "used_at": at}).Error
	if err != nil {
		return fmt.Errorf("consume reset tokens: %w", err)
	}
	return nil
}

func (s *GormStore) SaveVerificationToken(ctx context.Context, t *auth.EmailVerificationToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("save verification token: %w", err)
	}
	return nil
}

func (s *GormStore) FindVerificationToken(ctx context.Context, hash string) (*auth.EmailVerificationToken, error) {
	var t auth.EmailVerificationToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, notFound(err, "find verification token")
	}
	return &t, nil
}

func (s *GormStore) ClaimVerificationToken(ctx context.Context, id string, at time.Time) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).Model(&auth.EmailVerificationToken{}).
		Where("id = ? AND verified = ?", uid, false).
		Updates(map[string]any{"verified": true, "verified_at": at})
	if res.Error != nil {
		return fmt.Errorf("claim verification token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SaveAudit(ctx context.Context, l *auth.AuditLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("save audit log: %w", err)
	}
	return nil
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
