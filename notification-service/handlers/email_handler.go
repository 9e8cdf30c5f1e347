package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tvloc02/EventVer1-sub001/notification-service/services"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/response"
)

// Mailer is the part of services.EmailService the handlers call.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, name, link string) (*services.EmailResponse, error)
	SendPasswordResetEmail(ctx context.Context, to, name, link, expiresIn string) (*services.EmailResponse, error)
	SendPasswordChangedEmail(ctx context.Context, to, name, changedAt string) (*services.EmailResponse, error)
}

// EmailHandler handles email-related HTTP requests
type EmailHandler struct {
	emailService Mailer
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(emailService Mailer) *EmailHandler {
	return &EmailHandler{emailService: emailService}
}

type VerificationEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
	Link  string `json:"verification_link" binding:"required,url"`
}

type PasswordResetEmailRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Name      string `json:"name"`
	Link      string `json:"reset_link" binding:"required,url"`
	ExpiresIn string `json:"expires_in"`
}

type PasswordChangedEmailRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Name      string `json:"name"`
	ChangedAt string `json:"changed_at" binding:"required"`
}

// RegisterRoutes mounts the email endpoints used by the auth service.
func RegisterRoutes(r gin.IRouter, h *EmailHandler) {
	email := r.Group("/api/notifications/email")
	{
		email.POST("/verification", h.SendVerificationEmail)
		email.POST("/password-reset", h.SendPasswordResetEmail)
		email.POST("/password-changed", h.SendPasswordChangedEmail)
	}
}

// SendVerificationEmail godoc
// @Summary Send email verification link
// @Tags email
// @Accept json
// @Produce json
// @Param email body VerificationEmailRequest true "Verification email request"
// @Success 200 {object} services.EmailResponse
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /api/notifications/email/verification [post]
func (eh *EmailHandler) SendVerificationEmail(c *gin.Context) {
	var req VerificationEmailRequest
	if !bind(c, &req) {
		return
	}
	res, err := eh.emailService.SendVerificationEmail(c.Request.Context(), req.Email, req.Name, req.Link)
	eh.reply(c, res, err)
}

// SendPasswordResetEmail godoc
// @Summary Send password reset link
// @Tags email
// @Accept json
// @Produce json
// @Param email body PasswordResetEmailRequest true "Password reset email request"
// @Success 200 {object} services.EmailResponse
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /api/notifications/email/password-reset [post]
func (eh *EmailHandler) SendPasswordResetEmail(c *gin.Context) {
	var req PasswordResetEmailRequest
	if !bind(c, &req) {
		return
	}
	if req.ExpiresIn == "" {
		req.ExpiresIn = "30 minutes"
	}
	res, err := eh.emailService.SendPasswordResetEmail(c.Request.Context(), req.Email, req.Name, req.Link, req.ExpiresIn)
	eh.reply(c, res, err)
}

// SendPasswordChangedEmail godoc
// @Summary Send password changed notice
// @Tags email
// @Accept json
// @Produce json
// @Param email body PasswordChangedEmailRequest true "Password changed email request"
// @Success 200 {object} services.EmailResponse
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /api/notifications/email/password-changed [post]
func (eh *EmailHandler) SendPasswordChangedEmail(c *gin.Context) {
	var req PasswordChangedEmailRequest
	if !bind(c, &req) {
		return
	}
	res, err := eh.emailService.SendPasswordChangedEmail(c.Request.Context(), req.Email, req.Name, req.ChangedAt)
	eh.reply(c, res, err)
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}

func (eh *EmailHandler) reply(c *gin.Context, res *services.EmailResponse, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyRecipient):
		response.Fail(c, http.StatusBadRequest, "Recipient is required")
	case err != nil:
		response.Fail(c, http.StatusBadGateway, "Failed to send email")
	default:
		c.JSON(http.StatusOK, res)
	}
}
