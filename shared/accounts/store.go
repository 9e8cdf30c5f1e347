// Package accounts authenticates EventHub users and runs the password and
// email flows around a session: lockout, reset, change and verification.
package accounts

import (
	"context"
	"time"

	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models/auth"
)

// Store persists accounts and their security records. Lookups that find
// nothing return ErrNotFound. Implementations: GormStore (Postgres) and
// MongoStore.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error

	RecordLoginAttempt(ctx context.Context, a *auth.LoginAttempt) error
	CountFailedLogins(ctx context.Context, email string, since time.Time) (int64, error)

	RecordResetAttempt(ctx context.Context, a *auth.PasswordResetAttempt) error
	CountResetAttempts(ctx context.Context, email string, since time.Time) (int64, error)

	SaveResetToken(ctx context.Context, t *auth.PasswordResetToken) error
	FindResetToken(ctx context.Context, hash string) (*auth.PasswordResetToken, error)
	// ClaimResetToken marks an unused token used. It returns ErrNotFound if
	// the token was already used, so only one reset can win.
	ClaimResetToken(ctx context.Context, id string, at time.Time) error
	// ConsumeResetTokens marks every unused token of userID used.
	ConsumeResetTokens(ctx context.Context, userID string, at time.Time) error

	SaveVerificationToken(ctx context.Context, t *auth.EmailVerificationToken) error
	FindVerificationToken(ctx context.Context, hash string) (*auth.EmailVerificationToken, error)
	ClaimVerificationToken(ctx context.Context, id string, at time.Time) error

	SaveAudit(ctx context.Context, l *auth.AuditLog) error
}
