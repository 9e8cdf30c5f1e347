package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tvloc02/EventVer1-sub001/auth-service/middleware"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/response"
)

type DeviceTokenRequest struct {
	DeviceID string `json:"device_id" binding:"required,max=128" example:"ios-3f2a9c"`
	Platform string `json:"platform" example:"ios"`
}

type APIKeyRequest struct {
	// Subject defaults to the caller.
	Subject       string   `json:"subject"`
	Permissions   []string `json:"permissions" binding:"required,min=1,dive,required"`
	ExpiresInDays int      `json:"expires_in_days" binding:"gte=0,lte=3650"`
}

type TemporaryTokenRequest struct {
	Action           string         `json:"action" binding:"required,max=64" example:"checkin:event-42"`
	Data             map[string]any `json:"data"`
	ExpiresInSeconds int            `json:"expires_in_seconds" binding:"gte=0,lte=86400"`
}

type VerifyTemporaryRequest struct {
	Token  string `json:"token" binding:"required"`
	Action string `json:"action"`
}

type TemporaryTokenInfo struct {
	Subject   string         `json:"subject"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data,omitempty"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// IssueDeviceToken
// @Summary Issue device token
// @Description Issue a 30 day token bound to one device of the caller
// @Tags tokens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeviceTokenRequest true "Device"
// @Success 201 {object} response.Envelope{data=token.Issued} "Device token"
// @Failure 400 {object} response.Envelope "Invalid request format"
// @Failure 401 {object} response.Envelope "Not authenticated"
// @Router /auth/tokens/device [post]
func (h *AuthHandler) IssueDeviceToken(c *gin.Context) {
	var req DeviceTokenRequest
	if !bind(c, &req) {
		return
	}

	info := deviceInfo(c)
	if req.Platform != "" {
		info.Platform = req.Platform
	}
	issued, err := h.issuer.IssueDevice(c.GetString(middleware.SubjectKey), req.DeviceID, info)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, "Device token issued", issued)
}

// IssueAPIKey
// @Summary Issue API key
// @Description Issue a capability token carrying a permission list. Admin only.
// @Tags tokens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body APIKeyRequest true "Permissions and lifetime"
// @Success 201 {object} response.Envelope{data=token.Issued} "API key"
// @Failure 400 {object} response.Envelope "Invalid request format"
// @Failure 403 {object} response.Envelope "Admin role required"
// @Router /auth/tokens/api-key [post]
func (h *AuthHandler) IssueAPIKey(c *gin.Context) {
	var req APIKeyRequest
	if !bind(c, &req) {
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = c.GetString(middleware.SubjectKey)
	}
	issued, err := h.issuer.IssueAPIKey(subject, req.Permissions, time.Duration(req.ExpiresInDays)*24*time.Hour)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.log.Info(c.Request.Context(), "api key issued",
		"subject", subject, "key_id", issued.KeyID, "by", c.GetString(middleware.SubjectKey))
	response.JSON(c, http.StatusCreated, "API key issued", issued)
}

// IssueTemporaryToken
// @Summary Issue temporary token
// @Description Issue a short-lived token scoped to a single action
// @Tags tokens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TemporaryTokenRequest true "Action and data"
// @Success 201 {object} response.Envelope{data=token.Issued} "Temporary token"
// @Failure 400 {object} response.Envelope "Invalid request format"
// @Router /auth/tokens/temporary [post]
func (h *AuthHandler) IssueTemporaryToken(c *gin.Context) {
	var req TemporaryTokenRequest
	if !bind(c, &req) {
		return
	}

	expiry := time.Duration(req.ExpiresInSeconds) * time.Second
	issued, err := h.issuer.IssueTemporary(c.GetString(middleware.SubjectKey), req.Action, req.Data, expiry)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, "Temporary token issued", issued)
}

// VerifyTemporaryToken
// @Summary Verify temporary token
// @Description Check a temporary token and, when action is given, that it was issued for that action
// @Tags tokens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body VerifyTemporaryRequest true "Token and expected action"
// @Success 200 {object} response.Envelope{data=handlers.TemporaryTokenInfo} "Token is valid"
// @Failure 401 {object} response.Envelope "Invalid, expired or mismatched token"
// @Router /auth/tokens/temporary/verify [post]
func (h *AuthHandler) VerifyTemporaryToken(c *gin.Context) {
	var req VerifyTemporaryRequest
	if !bind(c, &req) {
		return
	}

	res := h.verifier.VerifyTemporary(req.Token, req.Action)
	if !res.Valid {
		h.log.Debug(c.Request.Context(), "temporary token rejected", "kind", res.Kind.String(), "reason", res.Reason)
		h.respondError(c, res.Err())
		return
	}
	response.OK(c, "Token is valid", TemporaryTokenInfo{
		Subject:   res.Claims.Subject,
		Action:    res.Claims.Action(),
		Data:      res.Claims.Data(),
		ExpiresAt: res.Claims.ExpiresAt,
	})
}
