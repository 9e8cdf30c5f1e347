package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tvloc02/EventVer1-sub001/shared/token"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/response"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey      = "claims"
	SubjectKey     = "subject"
	AccessTokenKey = "accessToken"
)

// Authenticator checks an access token against signature, expiry and the
// blacklist.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*token.Claims, error)
}

// AuthMiddleware requires a valid, non-revoked bearer access token and puts
// its claims in the context.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := ExtractTokenFromHeader(c.Request)
		if raw == "" {
			response.Abort(c, http.StatusUnauthorized, "Authorization header is required. Expected Bearer {token}")
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), raw)
		if err != nil {
			msg := "Invalid or revoked token"
			if errors.Is(err, token.ErrExpiredToken) {
				msg = "Token expired"
			}
			response.Abort(c, http.StatusUnauthorized, msg)
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(SubjectKey, claims.Subject)
		c.Set(AccessTokenKey, raw)
		c.Next()
	}
}

// RequireRole lets the request through only when the authenticated token
// carries role. It must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			response.Abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if r, _ := claims.Custom["role"].(string); r != role {
			response.Abort(c, http.StatusForbidden, "Insufficient permissions")
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by AuthMiddleware, or nil.
func ClaimsFrom(c *gin.Context) *token.Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*token.Claims)
	return claims
}

// RequestID tags every request with a uuid, echoed in X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(response.RequestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// ExtractTokenFromHeader extracts the token from the Authorization header
func ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	tokenParts := strings.Fields(authHeader)
	if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
		return ""
	}

	return tokenParts[1]
}
