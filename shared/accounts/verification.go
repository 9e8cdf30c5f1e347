package accounts

import (
	"context"
	"errors"

	"github.com/tvloc02/EventVer1-sub001/shared/database/models/auth"
	"github.com/tvloc02/EventVer1-sub001/shared/token"
	utils "github.com/tvloc02/EventVer1-sub001/shared/utils/auth"
)

// CreateVerificationToken mails a 24h verification link. Unknown emails get
// the same silent success as known ones.
func (s *Service) CreateVerificationToken(ctx context.Context, email string, meta token.DeviceInfo) error {
	email = utils.NormalizeEmail(email)

	user, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	vt, err := s.issuer.IssueVerification()
	if err != nil {
		return err
	}
	err = s.store.SaveVerificationToken(ctx, &auth.EmailVerificationToken{
		UserID:    user.ID,
		TokenHash: vt.Hash,
		Email:     user.Email,
		ExpiresAt: vt.ExpiresAt,
		IPAddress: meta.IP,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.FullName(), s.link("/verify-email", vt.Raw)); err != nil {
			s.log.Error(ctx, "failed to send verification email", "subject", user.ID.String(), "error", err)
		}
	}
	return nil
}

// VerifyEmail marks the account behind raw as verified.
func (s *Service) VerifyEmail(ctx context.Context, raw string) error {
	if raw == "" {
		return ErrInvalidVerificationToken
	}
	vt, err := s.store.FindVerificationToken(ctx, token.HashOpaque(raw))
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidVerificationToken
	}
	if err != nil {
		return err
	}
	if !vt.Usable(s.now()) {
		return ErrInvalidVerificationToken
	}

	if err := s.store.ClaimVerificationToken(ctx, vt.ID.String(), s.now().UTC()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return err
	}
	subject := vt.UserID.String()
	if err := s.store.MarkEmailVerified(ctx, subject); err != nil {
		return err
	}
	s.emit(ctx, EventEmailVerified, subject, token.DeviceInfo{}, nil)
	return nil
}
