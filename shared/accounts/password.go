package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models/auth"
	"github.com/tvloc02/EventVer1-sub001/shared/token"
	utils "github.com/tvloc02/EventVer1-sub001/shared/utils/auth"
)

const (
	EventPasswordResetRequested = "password_reset_requested"
	EventPasswordReset          = "password_reset"
	EventPasswordChanged        = "password_changed"
	EventEmailVerified          = "email_verified"
)

// ResetTokenInfo is what verify-reset-token reveals about a valid token.
type ResetTokenInfo struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RequestPasswordReset mails a reset link when email belongs to an active
// account. The result is the same whether or not it does; only the per-email
// rate limit is reported. Token creation and delivery run in the background
// so the response time does not depend on the account existing.
func (s *Service) RequestPasswordReset(ctx context.Context, email string, meta token.DeviceInfo) error {
	email = utils.NormalizeEmail(email)
	now := s.now().UTC()

	n, err := s.store.CountResetAttempts(ctx, email, now.Add(-s.resetWin))
	if err != nil {
		return err
	}
	if n >= int64(s.resetMax) {
		return ErrTooManyRequests
	}
	err = s.store.RecordResetAttempt(ctx, &auth.PasswordResetAttempt{
		Email:     email,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
	})
	if err != nil {
		s.log.Warn(ctx, "failed to record reset attempt", "email", email, "error", err)
	}

	user, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.log.Info(ctx, "password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsActive() {
		return nil
	}

	s.background(ctx, func(ctx context.Context) {
		if err := s.sendResetLink(ctx, user, meta, now); err != nil {
			s.log.Error(ctx, "password reset request failed", "subject", user.ID.String(), "error", err)
			s.emit(ctx, EventPasswordResetRequested, user.ID.String(), meta, err)
			return
		}
		s.emit(ctx, EventPasswordResetRequested, user.ID.String(), meta, nil)
	})
	return nil
}

func (s *Service) sendResetLink(ctx context.Context, user *models.User, meta token.DeviceInfo, now time.Time) error {
	if err := s.store.ConsumeResetTokens(ctx, user.ID.String(), now); err != nil {
		return err
	}
	reset, err := s.issuer.IssueReset()
	if err != nil {
		return err
	}
	err = s.store.SaveResetToken(ctx, &auth.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: reset.Hash,
		ExpiresAt: reset.ExpiresAt,
		IPAddress: meta.IP,
		CreatedAt: now,
	})
	if err != nil {
		return err
	}
	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.FullName(), s.link("/reset-password", reset.Raw)); err != nil {
		return fmt.Errorf("send password reset email: %w", err)
	}
	return nil
}

// VerifyResetToken reports whether raw can still reset a password.
func (s *Service) VerifyResetToken(ctx context.Context, raw string) (*ResetTokenInfo, error) {
	rt, err := s.usableResetToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	user, err := s.store.FindByID(ctx, rt.UserID.String())
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, err
	}
	return &ResetTokenInfo{Email: user.Email, ExpiresAt: rt.ExpiresAt}, nil
}

// ResetPassword sets a new password using a reset token, then ends the
// account's session.
func (s *Service) ResetPassword(ctx context.Context, raw, password string, meta token.DeviceInfo) error {
	rt, err := s.usableResetToken(ctx, raw)
	if err != nil {
		return err
	}
	user, err := s.store.FindByID(ctx, rt.UserID.String())
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}

	report := s.policy.Evaluate(password, policyContext(user))
	if !report.Valid {
		return &PolicyError{Report: report}
	}

	// hash before claiming so a failure here leaves the token usable
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.store.ClaimResetToken(ctx, rt.ID.String(), now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	subject := user.ID.String()
	if err := s.store.UpdatePassword(ctx, subject, hash, now); err != nil {
		return err
	}
	if err := s.store.ConsumeResetTokens(ctx, subject, now); err != nil {
		s.log.Warn(ctx, "failed to consume remaining reset tokens", "subject", subject, "error", err)
	}
	s.endSession(ctx, subject)
	s.notifyChanged(ctx, user, now)
	s.emit(ctx, EventPasswordReset, subject, meta, nil)
	return nil
}

// ChangePassword replaces the password of an authenticated account and ends
// its session; the client logs in again with the new password.
func (s *Service) ChangePassword(ctx context.Context, subject, current, next string, meta token.DeviceInfo) error {
	user, err := s.store.FindByID(ctx, subject)
	if err != nil {
		return err
	}
	if !utils.CheckPasswordHash(current, user.Password) {
		s.emit(ctx, EventPasswordChanged, subject, meta, ErrWrongPassword)
		return ErrWrongPassword
	}
	if current == next {
		return ErrSamePassword
	}
	report := s.policy.Evaluate(next, policyContext(user))
	if !report.Valid {
		return &PolicyError{Report: report}
	}

	now := s.now().UTC()
	if err := s.setPassword(ctx, subject, next, now); err != nil {
		return err
	}
	s.endSession(ctx, subject)
	s.notifyChanged(ctx, user, now)
	s.emit(ctx, EventPasswordChanged, subject, meta, nil)
	return nil
}

func (s *Service) usableResetToken(ctx context.Context, raw string) (*auth.PasswordResetToken, error) {
	if raw == "" {
		return nil, ErrInvalidResetToken
	}
	rt, err := s.store.FindResetToken(ctx, token.HashOpaque(raw))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, err
	}
	if !rt.Usable(s.now()) {
		return nil, ErrInvalidResetToken
	}
	return rt, nil
}

func (s *Service) setPassword(ctx context.Context, subject, password string, at time.Time) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, subject, hash, at)
}

// hashPassword reports a password bcrypt cannot hash as a policy violation,
// whichever policy let it through.
func hashPassword(password string) (string, error) {
	hash, err := utils.HashPassword(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", &PolicyError{Report: utils.PolicyReport{
			Violations: []utils.Violation{{
				Field:   "password",
				Rule:    "max_length",
				Message: "password must be at most " + strconv.Itoa(utils.MaxPasswordBytes) + " bytes",
			}},
		}}
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) notifyChanged(ctx context.Context, user *models.User, at time.Time) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendPasswordChangedEmail(ctx, user.Email, user.FullName(), at); err != nil {
		s.log.Warn(ctx, "failed to send password changed email", "subject", user.ID.String(), "error", err)
	}
}

func (s *Service) endSession(ctx context.Context, subject string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.ForceInvalidate(ctx, subject); err != nil {
		s.log.Error(ctx, "failed to invalidate session after password change", "subject", subject, "error", err)
	}
}
