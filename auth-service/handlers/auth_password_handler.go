package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tvloc02/EventVer1-sub001/auth-service/middleware"
	utils "github.com/tvloc02/EventVer1-sub001/shared/utils/auth"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/response"
)

// Password Management Request/Response structs

// ChangePasswordRequest represents the request body for changing a password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// ForgotPasswordRequest represents the request body for forgot password
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest represents the request body for resetting a password
type ResetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// PasswordStrengthRequest is evaluated against the password policy. The
// optional personal fields enable the personal-data rule.
type PasswordStrengthRequest struct {
	Password  string `json:"password" binding:"required"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CreateVerificationTokenRequest represents the request for creating verification token
type CreateVerificationTokenRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ChangePassword changes a user's password after verifying the current password
// @Summary Change password
// @Description Change the password after verifying the current one. The session is ended; log in again.
// @Tags auth-password
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Password change data"
// @Success 200 {object} response.Envelope "Password changed successfully"
// @Failure 400 {object} response.Envelope "Validation error or weak password"
// @Failure 401 {object} response.Envelope "Not authenticated or incorrect password"
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bind(c, &req) {
		return
	}

	subject := c.GetString(middleware.SubjectKey)
	err := h.accounts.ChangePassword(c.Request.Context(), subject, req.CurrentPassword, req.NewPassword, deviceInfo(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, "Password changed successfully. Please log in again.", nil)
}

// ForgotPassword initiates the password reset process by sending a reset link to the user's email
// @Summary Forgot password
// @Description Sends a reset link if the email belongs to an account. The answer is the same either way.
// @Tags auth-password
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Email address"
// @Success 200 {object} response.Envelope "Reset link sent if the account exists"
// @Failure 400 {object} response.Envelope "Invalid email format"
// @Failure 429 {object} response.Envelope "Too many reset requests"
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bind(c, &req) {
		return
	}

	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email, deviceInfo(c)); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, "If your email is registered, you will receive a password reset link", nil)
}

// VerifyResetToken checks a reset token before the reset form is shown
// @Summary Verify reset token
// @Tags auth-password
// @Produce json
// @Param token path string true "Reset token"
// @Success 200 {object} response.Envelope{data=accounts.ResetTokenInfo} "Token is valid"
// @Failure 400 {object} response.Envelope "Invalid or expired token"
// @Router /auth/verify-reset-token/{token} [get]
func (h *AuthHandler) VerifyResetToken(c *gin.Context) {
	info, err := h.accounts.VerifyResetToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, "Token is valid", info)
}

// ResetPassword resets a user's password using a valid reset token
// @Summary Reset password
// @Description Set a new password with a reset token. Ends the current session.
// @Tags auth-password
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} response.Envelope "Password reset successfully"
// @Failure 400 {object} response.Envelope "Invalid token or weak password"
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bind(c, &req) {
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.NewPassword, deviceInfo(c)); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, "Password has been reset successfully", nil)
}

// PasswordStrength evaluates a candidate password
// @Summary Password strength
// @Tags auth-password
// @Accept json
// @Produce json
// @Param request body PasswordStrengthRequest true "Candidate password"
// @Success 200 {object} response.Envelope{data=utils.PolicyReport} "Policy report"
// @Failure 400 {object} response.Envelope "Invalid request format"
// @Router /auth/password/strength [post]
func (h *AuthHandler) PasswordStrength(c *gin.Context) {
	var req PasswordStrengthRequest
	if !bind(c, &req) {
		return
	}

	report := h.accounts.EvaluatePassword(req.Password, utils.PolicyContext{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	response.OK(c, "", report)
}

// CreateVerificationToken sends an email verification link
// @Summary Send verification email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body CreateVerificationTokenRequest true "Email address"
// @Success 200 {object} response.Envelope "Verification email sent if the account exists"
// @Failure 400 {object} response.Envelope "Invalid email or already verified"
// @Router /auth/create-verification-token [post]
func (h *AuthHandler) CreateVerificationToken(c *gin.Context) {
	var req CreateVerificationTokenRequest
	if !bind(c, &req) {
		return
	}

	if err := h.accounts.CreateVerificationToken(c.Request.Context(), req.Email, deviceInfo(c)); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, "If your email is registered, you will receive a verification link", nil)
}

// VerifyEmail verifies a user's email address using the provided token
// @Summary Verify email
// @Tags auth
// @Produce json
// @Param token path string true "Verification token"
// @Success 200 {object} response.Envelope "Email verified successfully"
// @Failure 400 {object} response.Envelope "Invalid or expired token"
// @Router /auth/verify-email/{token} [get]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	if err := h.accounts.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, "Email verified successfully", nil)
}
