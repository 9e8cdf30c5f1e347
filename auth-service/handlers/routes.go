package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tvloc02/EventVer1-sub001/auth-service/middleware"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
)

// RouteLimits are the rate limits of the public route groups.
type RouteLimits struct {
	General       middleware.RateLimitConfig
	Login         middleware.RateLimitConfig
	PasswordReset middleware.RateLimitConfig
}

// RegisterRoutes mounts every auth endpoint under /api/auth.
func RegisterRoutes(r gin.IRouter, h *AuthHandler, rl *middleware.RateLimiter, limits RouteLimits) {
	authed := middleware.AuthMiddleware(h.sessions)
	admin := middleware.RequireRole(models.RoleAdmin)
	general := rl.Limit("general", limits.General)
	reset := rl.Limit("password-reset", limits.PasswordReset)

	api := r.Group("/api/auth")

	api.POST("/login", rl.Limit("login", limits.Login), h.Login)
	api.POST("/register", rl.Limit("register", limits.Login), h.Register)
	api.POST("/refresh", rl.Limit("refresh", limits.General), h.Refresh)
	api.POST("/logout", authed, h.Logout)
	api.POST("/validate", general, h.Validate)
	api.GET("/me", authed, h.Me)

	// Password management
	api.POST("/forgot-password", reset, h.ForgotPassword)
	api.POST("/reset-password", reset, h.ResetPassword)
	api.GET("/verify-reset-token/:token", general, h.VerifyResetToken)
	api.POST("/change-password", authed, h.ChangePassword)
	api.POST("/password/strength", general, h.PasswordStrength)

	// Email verification
	api.POST("/create-verification-token", reset, h.CreateVerificationToken)
	api.GET("/verify-email/:token", general, h.VerifyEmail)

	tokens := api.Group("/tokens", authed)
	tokens.POST("/device", h.IssueDeviceToken)
	tokens.POST("/api-key", admin, h.IssueAPIKey)
	tokens.POST("/temporary", h.IssueTemporaryToken)
	tokens.POST("/temporary/verify", h.VerifyTemporaryToken)

	// Administration
	api.GET("/sessions/:subject", authed, admin, h.GetSession)
	api.POST("/sessions/:subject/invalidate", authed, admin, h.InvalidateSession)
	api.GET("/stats", authed, admin, h.Stats)
}
