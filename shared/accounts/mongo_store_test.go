package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/tvloc02/EventVer1-sub001/shared/database"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models/auth"
)

func newMockMongo(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func ns(mt *mtest.T, coll string) string {
	return mt.DB.Name() + "." + coll
}

// updateResult is the reply of an update command that matched n documents.
func updateResult(n int32) bson.D {
	return bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: n}, {Key: "nModified", Value: n}}
}

func TestMongoStore_FindByEmail(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("found", func(mt *mtest.T) {
		id := uuid.New()
		at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, database.CollUsers), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id.String()},
			{Key: "email", Value: "lan.tran@uni.edu"},
			{Key: "first_name", Value: "Lan"},
			{Key: "role", Value: models.RoleStudent},
			{Key: "status", Value: models.StatusActive},
			{Key: "email_verified", Value: true},
			{Key: "last_login_at", Value: at},
		}))

		u, err := NewMongoStore(mt.DB).FindByEmail(context.Background(), "lan.tran@uni.edu")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "Lan", u.FirstName)
		assert.True(t, u.IsActive())
		assert.True(t, u.EmailVerified)
		require.NotNil(t, u.LastLoginAt)
		assert.True(t, at.Equal(*u.LastLoginAt))
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, database.CollUsers), mtest.FirstBatch))

		_, err := NewMongoStore(mt.DB).FindByEmail(context.Background(), "ghost@uni.edu")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	mt.Run("server error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad query"}))

		_, err := NewMongoStore(mt.DB).FindByID(context.Background(), uuid.NewString())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "find user by id")
	})
}

func TestMongoStore_Create(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("assigns id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := &models.User{Email: "lan.tran@uni.edu", Role: models.RoleStudent, Status: models.StatusActive}
		require.NoError(t, NewMongoStore(mt.DB).Create(context.Background(), u))
		assert.NotEqual(t, uuid.Nil, u.ID)
		assert.False(t, u.CreatedAt.IsZero())
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: users index: email_unique",
		}))

		err := NewMongoStore(mt.DB).Create(context.Background(), &models.User{Email: "lan.tran@uni.edu"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	mt.Run("other write error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "document failed validation"}))

		err := NewMongoStore(mt.DB).Create(context.Background(), &models.User{Email: "lan.tran@uni.edu"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrEmailTaken)
	})
}

func TestMongoStore_UpdatePassword(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("updated", func(mt *mtest.T) {
		mt.AddMockResponses(updateResult(1))
		assert.NoError(t, NewMongoStore(mt.DB).UpdatePassword(context.Background(), uuid.NewString(), "hash", time.Now()))
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		mt.AddMockResponses(updateResult(0))
		err := NewMongoStore(mt.DB).UpdatePassword(context.Background(), uuid.NewString(), "hash", time.Now())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMongoStore_CountFailedLogins(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, database.CollLoginAttempts), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: int64(4)}}))

		n, err := NewMongoStore(mt.DB).CountFailedLogins(context.Background(), "lan.tran@uni.edu", time.Now().Add(-15*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	mt.Run("none", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, database.CollLoginAttempts), mtest.FirstBatch))

		n, err := NewMongoStore(mt.DB).CountFailedLogins(context.Background(), "lan.tran@uni.edu", time.Now())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	mt.Run("error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad pipeline"}))

		_, err := NewMongoStore(mt.DB).CountFailedLogins(context.Background(), "lan.tran@uni.edu", time.Now())
		assert.ErrorContains(t, err, "count failed logins")
	})
}

func TestMongoStore_ResetTokens(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("find", func(mt *mtest.T) {
		id, userID := uuid.New(), uuid.New()
		expires := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, database.CollResetTokens), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id.String()},
			{Key: "user_id", Value: userID.String()},
			{Key: "token_hash", Value: "abc"},
			{Key: "expires_at", Value: expires},
			{Key: "used", Value: false},
		}))

		rt, err := NewMongoStore(mt.DB).FindResetToken(context.Background(), "abc")
		require.NoError(t, err)
		assert.Equal(t, id, rt.ID)
		assert.Equal(t, userID, rt.UserID)
		assert.True(t, expires.Equal(rt.ExpiresAt))
		assert.False(t, rt.Used)
	})

	mt.Run("claim once", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		id := uuid.NewString()
		mt.AddMockResponses(updateResult(1), updateResult(0))

		require.NoError(t, s.ClaimResetToken(context.Background(), id, time.Now()))
		assert.ErrorIs(t, s.ClaimResetToken(context.Background(), id, time.Now()), ErrNotFound)
	})

	mt.Run("save", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		rt := &auth.PasswordResetToken{UserID: uuid.New(), TokenHash: "abc", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, NewMongoStore(mt.DB).SaveResetToken(context.Background(), rt))
		assert.NotEqual(t, uuid.Nil, rt.ID)
	})
}

func TestMongoStore_VerificationTokens(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("claim once", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		id := uuid.NewString()
		mt.AddMockResponses(updateResult(1), updateResult(0))

		require.NoError(t, s.ClaimVerificationToken(context.Background(), id, time.Now()))
		assert.ErrorIs(t, s.ClaimVerificationToken(context.Background(), id, time.Now()), ErrNotFound)
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, database.CollVerificationTokens), mtest.FirstBatch))

		_, err := NewMongoStore(mt.DB).FindVerificationToken(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMongoStore_SaveAudit(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("fills id and time", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		l := &auth.AuditLog{Event: "login", Subject: "u1", Success: true}
		require.NoError(t, NewMongoStore(mt.DB).SaveAudit(context.Background(), l))
		assert.NotEqual(t, uuid.Nil, l.ID)
		assert.False(t, l.CreatedAt.IsZero())
	})
}
