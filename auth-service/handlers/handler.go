package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/tvloc02/EventVer1-sub001/shared/accounts"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
	"github.com/tvloc02/EventVer1-sub001/shared/session"
	"github.com/tvloc02/EventVer1-sub001/shared/token"
	utils "github.com/tvloc02/EventVer1-sub001/shared/utils/auth"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/cache"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/response"
)

// SessionService is the session lifecycle the handlers drive.
type SessionService interface {
	Login(ctx context.Context, creds session.Credentials) (*session.Pair, error)
	Refresh(ctx context.Context, raw string, device token.DeviceInfo) (*session.Pair, error)
	Logout(ctx context.Context, accessToken, subject string) error
	ForceInvalidate(ctx context.Context, subject string) error
	Authenticate(ctx context.Context, accessToken string) (*token.Claims, error)
	Describe(ctx context.Context, subject string) (*session.Info, error)
}

// AccountService covers registration and the password and email flows.
type AccountService interface {
	Register(ctx context.Context, u *models.User, password string) error
	Profile(ctx context.Context, subject string) (*models.User, error)
	EvaluatePassword(password string, pc utils.PolicyContext) utils.PolicyReport
	RequestPasswordReset(ctx context.Context, email string, meta token.DeviceInfo) error
	VerifyResetToken(ctx context.Context, raw string) (*accounts.ResetTokenInfo, error)
	ResetPassword(ctx context.Context, raw, password string, meta token.DeviceInfo) error
	ChangePassword(ctx context.Context, subject, current, next string, meta token.DeviceInfo) error
	CreateVerificationToken(ctx context.Context, email string, meta token.DeviceInfo) error
	VerifyEmail(ctx context.Context, raw string) error
}

// StatsSource reports revocation store counters.
type StatsSource interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

type Deps struct {
	Sessions SessionService
	Accounts AccountService
	Issuer   *token.Issuer
	Verifier *token.Verifier
	Stats    StatsSource
	Logger   logging.Logger
}

type AuthHandler struct {
	sessions SessionService
	accounts AccountService
	issuer   *token.Issuer
	verifier *token.Verifier
	stats    StatsSource
	log      logging.Logger
}

func NewAuthHandler(d Deps) *AuthHandler {
	h := &AuthHandler{
		sessions: d.Sessions,
		accounts: d.Accounts,
		issuer:   d.Issuer,
		verifier: d.Verifier,
		stats:    d.Stats,
		log:      d.Logger,
	}
	if h.log == nil {
		h.log = logging.Nop()
	}
	return h
}

// deviceInfo describes the calling client. X-Client-Platform is optional.
func deviceInfo(c *gin.Context) token.DeviceInfo {
	platform := c.GetHeader("X-Client-Platform")
	if platform == "" {
		platform = "web"
	}
	return token.DeviceInfo{
		UserAgent: c.GetHeader("User-Agent"),
		IP:        c.ClientIP(),
		Platform:  platform,
	}
}

// bind decodes the JSON body into req and answers 400 on failure.
func bind(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]response.FieldError, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, response.FieldError{
				Field:   fe.Field(),
				Rule:    fe.Tag(),
				Message: fe.Error(),
			})
		}
		response.Fail(c, http.StatusBadRequest, "Validation failed", fields...)
		return false
	}
	response.Fail(c, http.StatusBadRequest, "Invalid request format")
	return false
}

// respondError maps service errors to a status and a client-safe message.
func (h *AuthHandler) respondError(c *gin.Context, err error) {
	var pe *accounts.PolicyError
	if errors.As(err, &pe) {
		response.Fail(c, http.StatusBadRequest, "Password does not meet the requirements", violations(pe.Report)...)
		return
	}

	switch {
	case errors.Is(err, token.ErrExpiredToken):
		response.Fail(c, http.StatusUnauthorized, "Token expired")
	case errors.Is(err, token.ErrInvalidToken):
		response.Fail(c, http.StatusUnauthorized, "Invalid or revoked token")
	case errors.Is(err, accounts.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, accounts.ErrWrongPassword):
		response.Fail(c, http.StatusUnauthorized, "Current password is incorrect")
	case errors.Is(err, accounts.ErrAccountInactive):
		response.Fail(c, http.StatusForbidden, "Account is inactive")
	case errors.Is(err, accounts.ErrAccountLocked):
		response.Fail(c, http.StatusTooManyRequests, "Account temporarily locked. Please try again later.")
	case errors.Is(err, accounts.ErrTooManyRequests):
		response.Fail(c, http.StatusTooManyRequests, "Too many requests. Please try again later.")
	case errors.Is(err, accounts.ErrInvalidResetToken):
		response.Fail(c, http.StatusBadRequest, "Invalid or expired reset token")
	case errors.Is(err, accounts.ErrInvalidVerificationToken):
		response.Fail(c, http.StatusBadRequest, "Invalid or expired verification token")
	case errors.Is(err, accounts.ErrAlreadyVerified):
		response.Fail(c, http.StatusBadRequest, "Email is already verified")
	case errors.Is(err, accounts.ErrSamePassword):
		response.Fail(c, http.StatusBadRequest, "New password must be different from current password")
	case errors.Is(err, accounts.ErrEmailTaken):
		response.Fail(c, http.StatusConflict, "Email is already registered")
	case errors.Is(err, accounts.ErrNotFound):
		response.Fail(c, http.StatusNotFound, "User not found")
	case errors.Is(err, cache.ErrStoreUnavailable):
		h.log.Error(c.Request.Context(), "revocation store unavailable", "path", c.FullPath(), "error", err)
		response.Fail(c, http.StatusServiceUnavailable, "Session store unavailable. Please try again later.")
	case errors.Is(err, token.ErrTokenIssuance):
		h.log.Error(c.Request.Context(), "token issuance failed", "path", c.FullPath(), "error", err)
		response.Fail(c, http.StatusInternalServerError, "Could not issue token")
	default:
		h.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		response.Fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func violations(r utils.PolicyReport) []response.FieldError {
	out := make([]response.FieldError, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, response.FieldError{Field: v.Field, Rule: v.Rule, Message: v.Message})
	}
	return out
}
