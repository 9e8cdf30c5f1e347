package accounts

import (
	"context"
	"errors"

	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
)

// EnsureSuperAdmin creates the admin account from configuration unless an
// account with that email exists. It reports whether one was created.
func (s *Service) EnsureSuperAdmin(ctx context.Context, email, password, firstName, lastName string) (bool, error) {
	if email == "" || password == "" {
		return false, errors.New("super admin email and password are required")
	}

	_, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	admin := &models.User{
		Email:         email,
		FirstName:     firstName,
		LastName:      lastName,
		Role:          models.RoleAdmin,
		Status:        models.StatusActive,
		EmailVerified: true,
	}
	if err := s.Register(ctx, admin, password); err != nil {
		return false, err
	}
	s.log.Info(ctx, "super admin created", "email", admin.Email)
	return true, nil
}
