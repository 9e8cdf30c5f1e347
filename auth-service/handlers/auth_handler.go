package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tvloc02/EventVer1-sub001/auth-service/middleware"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/session"
	"github.com/tvloc02/EventVer1-sub001/shared/token"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/response"
)

// Login Request/Response structs
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"student@uni.edu"`
	Password string `json:"password" binding:"required" example:"Str0ng!Passw0rd"`
}

type LoginResponse struct {
	*session.Pair
	User *UserInfo `json:"user,omitempty"`
}

type UserInfo struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	StudentID     string    `json:"student_id,omitempty"`
	Role          string    `json:"role"`
	Status        string    `json:"status"`
	EmailVerified bool      `json:"email_verified"`
}

func userInfo(u *models.User) *UserInfo {
	return &UserInfo{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		StudentID:     u.StudentID,
		Role:          u.Role,
		Status:        u.Status,
		EmailVerified: u.EmailVerified,
	}
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email" example:"student@uni.edu"`
	Password  string `json:"password" binding:"required" example:"Str0ng!Passw0rd"`
	FirstName string `json:"first_name" binding:"required" example:"Lan"`
	LastName  string `json:"last_name" binding:"required" example:"Tran"`
	StudentID string `json:"student_id" example:"SV2026001"`
	Phone     string `json:"phone" example:"+84901234567"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

type ValidateRequest struct {
	Token string `json:"token" binding:"required"`
}

type ValidateResponse struct {
	Valid     bool       `json:"valid"`
	Expired   bool       `json:"expired"`
	Subject   string     `json:"subject,omitempty"`
	Type      token.Type `json:"type,omitempty"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// POST /api/auth/login
// @Summary User login
// @Description Authenticate a user and return an access/refresh token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param login body LoginRequest true "Login credentials"
// @Success 200 {object} response.Envelope{data=handlers.LoginResponse} "Successful login"
// @Failure 400 {object} response.Envelope "Invalid request format"
// @Failure 401 {object} response.Envelope "Invalid credentials"
// @Failure 403 {object} response.Envelope "Account is inactive"
// @Failure 429 {object} response.Envelope "Too many login attempts or account locked"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	pair, err := h.sessions.Login(ctx, session.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Device:   deviceInfo(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := LoginResponse{Pair: pair}
	if u, err := h.accounts.Profile(ctx, pair.Subject); err == nil {
		resp.User = userInfo(u)
	} else {
		h.log.Warn(ctx, "profile lookup after login failed", "subject", pair.Subject, "error", err)
	}
	response.OK(c, "Login successful", resp)
}

// POST /api/auth/register
// @Summary Register
// @Description Create a student account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Account data"
// @Success 201 {object} response.Envelope{data=handlers.UserInfo} "Account created"
// @Failure 400 {object} response.Envelope "Validation error or weak password"
// @Failure 409 {object} response.Envelope "Email already registered"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bind(c, &req) {
		return
	}

	u := &models.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		StudentID: req.StudentID,
		Phone:     req.Phone,
		Role:      models.RoleStudent,
		Status:    models.StatusActive,
	}
	if err := h.accounts.Register(c.Request.Context(), u, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, "Account created", userInfo(u))
}

// POST /api/auth/refresh
// @Summary Refresh tokens
// @Description Exchange the current refresh token for a new access token (and a new refresh token when rotation is on)
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} response.Envelope{data=session.Pair} "New token pair"
// @Failure 400 {object} response.Envelope "Invalid request format"
// @Failure 401 {object} response.Envelope "Invalid, revoked or expired refresh token"
// @Failure 503 {object} response.Envelope "Session store unavailable"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bind(c, &req) {
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken, deviceInfo(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, "Token refreshed", pair)
}

// POST /api/auth/logout
// @Summary Logout
// @Description Revoke the presented access token and end the session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope "Logged out"
// @Failure 401 {object} response.Envelope "Not authenticated, including when the blacklist cannot be checked"
// @Failure 503 {object} response.Envelope "Session store failed after the token was accepted"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	raw := c.GetString(middleware.AccessTokenKey)
	subject := c.GetString(middleware.SubjectKey)

	if err := h.sessions.Logout(c.Request.Context(), raw, subject); err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, "Logged out successfully", nil)
}

// POST /api/auth/validate
// @Summary Validate access token
// @Description Introspect an access token: signature, expiry and revocation
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ValidateRequest true "Token to validate"
// @Success 200 {object} response.Envelope{data=handlers.ValidateResponse} "Validation result"
// @Failure 400 {object} response.Envelope "Invalid request format"
// @Router /auth/validate [post]
func (h *AuthHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if !bind(c, &req) {
		return
	}

	claims, err := h.sessions.Authenticate(c.Request.Context(), req.Token)
	if err != nil {
		response.OK(c, "Token is not valid", ValidateResponse{
			Expired: errors.Is(err, token.ErrExpiredToken),
		})
		return
	}

	exp := claims.ExpiresAt
	role, _ := claims.Custom["role"].(string)
	response.OK(c, "Token is valid", ValidateResponse{
		Valid:     true,
		Subject:   claims.Subject,
		Type:      claims.Type,
		Role:      role,
		ExpiresAt: &exp,
	})
}

// GET /api/auth/me
// @Summary Current user
// @Description Profile of the authenticated account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=handlers.UserInfo} "Profile"
// @Failure 401 {object} response.Envelope "Not authenticated"
// @Failure 404 {object} response.Envelope "User not found"
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.accounts.Profile(c.Request.Context(), c.GetString(middleware.SubjectKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, "", userInfo(u))
}
