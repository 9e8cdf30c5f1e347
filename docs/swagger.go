// Package docs EventHub auth API documentation
package docs

// Swagger documentation info
// @title EventHub Auth API
// @version 1.0
// @description Token and session lifecycle for the EventHub student-event platform

// @host localhost:8001
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

// @tag.name auth
// @tag.description Login, refresh, logout and token validation
// @tag.name auth-password
// @tag.description Password change, reset and strength
// @tag.name tokens
// @tag.description Device, API-key and temporary tokens
// @tag.name sessions
// @tag.description Session administration
