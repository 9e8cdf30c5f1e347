package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tvloc02/EventVer1-sub001/auth-service/middleware"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/cache"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/response"
)

type StatsResponse struct {
	cache.Stats
	Degraded bool `json:"degraded"`
}

// GetSession
// @Summary Session state
// @Description Lifecycle state of a subject's session with its device metadata. Admin only.
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param subject path string true "Account id"
// @Success 200 {object} response.Envelope{data=session.Info} "Session state"
// @Failure 403 {object} response.Envelope "Admin role required"
// @Failure 503 {object} response.Envelope "Session store unavailable"
// @Router /auth/sessions/{subject} [get]
func (h *AuthHandler) GetSession(c *gin.Context) {
	info, err := h.sessions.Describe(c.Request.Context(), c.Param("subject"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, "", info)
}

// InvalidateSession
// @Summary Force logout
// @Description End a subject's session. Access tokens already issued expire on their own. Admin only.
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param subject path string true "Account id"
// @Success 200 {object} response.Envelope "Session invalidated"
// @Failure 403 {object} response.Envelope "Admin role required"
// @Failure 503 {object} response.Envelope "Session store unavailable"
// @Router /auth/sessions/{subject}/invalidate [post]
func (h *AuthHandler) InvalidateSession(c *gin.Context) {
	subject := c.Param("subject")
	if err := h.sessions.ForceInvalidate(c.Request.Context(), subject); err != nil {
		h.respondError(c, err)
		return
	}
	h.log.Info(c.Request.Context(), "session invalidated by admin",
		"subject", subject, "by", c.GetString(middleware.SubjectKey))
	response.OK(c, "Session invalidated", nil)
}

// Stats
// @Summary Revocation store statistics
// @Description Counts of refresh records, blacklisted tokens and revoked sessions. Zeros with degraded=true when the store is down.
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=handlers.StatsResponse} "Statistics"
// @Failure 403 {object} response.Envelope "Admin role required"
// @Router /auth/stats [get]
func (h *AuthHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		h.log.Warn(c.Request.Context(), "store statistics unavailable", "error", err)
		response.OK(c, "Statistics unavailable", StatsResponse{Degraded: true})
		return
	}
	response.OK(c, "", StatsResponse{Stats: stats})
}
