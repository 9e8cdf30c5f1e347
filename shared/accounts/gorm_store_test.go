package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(db), mock
}

func TestGormStore_FindByEmail(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "status"}).
			AddRow(id.String(), "lan.tran@uni.edu", "student", "ACTIVE"))

	u, err := s.FindByEmail(context.Background(), "lan.tran@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "ACTIVE", u.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FindByEmail_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	_, err := s.FindByEmail(context.Background(), "ghost@uni.edu")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FindByID_DatabaseError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
		WillReturnError(errors.New("connection reset"))

	_, err := s.FindByID(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_InvalidIDIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	_, err := s.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.TouchLogin(ctx, "not-a-uuid", time.Now()), ErrNotFound)
	assert.ErrorIs(t, s.ClaimResetToken(ctx, "not-a-uuid", time.Now()), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_UpdatePassword(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE "users" SET .*"password"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdatePassword(ctx, uuid.NewString(), "$2a$10$hash", time.Now()))

	mock.ExpectExec(`UPDATE "users" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.UpdatePassword(ctx, uuid.NewString(), "$2a$10$hash", time.Now()), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CountFailedLogins(t *testing.T) {
	s, mock := newMockStore(t)
	since := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "login_attempts" WHERE`).
		WithArgs("lan.tran@uni.edu", false, since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := s.CountFailedLogins(context.Background(), "lan.tran@uni.edu", since)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ClaimResetToken(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	mock.ExpectExec(`UPDATE "password_reset_tokens" SET .* WHERE id = \$\d+ AND used = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.ClaimResetToken(ctx, id, time.Now()))

	// a second claim on the same token matches no unused row
	mock.ExpectExec(`UPDATE "password_reset_tokens" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.ClaimResetToken(ctx, id, time.Now()), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ConsumeResetTokens(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "password_reset_tokens" SET .* WHERE user_id = \$\d+ AND used = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.ConsumeResetTokens(context.Background(), uuid.NewString(), time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FindVerificationToken_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "email_verification_tokens" WHERE token_hash = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.FindVerificationToken(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
