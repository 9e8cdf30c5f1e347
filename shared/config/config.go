package config

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tvloc02/EventVer1-sub001/shared/logging"
)

type Config struct {
	// EnvFile is the .env file that was loaded, empty when none was found.
	EnvFile string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// MongoDB (used when DBDriver == "mongo")
	MongoURI string
	MongoDB  string

	// JWT
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessExpiry  string
	JWTRefreshExpiry string
	JWTIssuer        string
	JWTAudience      string

	// Session lifecycle
	RefreshRotation      bool
	SessionSweepInterval string

	// Redis
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        string
	RedisOpTimeout string

	// Rate Limiting
	RateLimitMaxRequests          string
	RateLimitTimeWindowSeconds    string
	RateLimitBlockDurationMinutes string

	// Login Rate Limiting
	LoginRateLimitMaxAttempts   string
	LoginRateLimitWindowSeconds string
	LoginRateLimitBlockMinutes  string

	// Password Reset Rate Limiting
	PasswordResetMaxAttempts   string
	PasswordResetWindowMinutes string
	PasswordResetBlockHours    string

	// Account lockout
	LoginLockoutMaxFailures   string
	LoginLockoutWindowMinutes string

	// Super Admin
	SuperAdminEmail    string
	SuperAdminPassword string

	// Service URLs
	FrontendURL            string
	NotificationServiceURL string
	AuthServicePort        string

	// Observability
	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
}

var cfg *Config

// LoadConfig loads configuration from .env files and environment variables.
func LoadConfig() *Config {
	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	envFile := ""
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			envFile = path
			break
		}
	}

	cfg = &Config{
		EnvFile: envFile,

		// Database
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "eventhub"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "eventhub"),

		// JWT
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		JWTAccessExpiry:  getEnv("JWT_ACCESS_EXPIRY", "15m"),
		JWTRefreshExpiry: getEnv("JWT_REFRESH_EXPIRY", "7d"),
		JWTIssuer:        getEnv("JWT_ISSUER", "eventhub-api"),
		JWTAudience:      getEnv("JWT_AUDIENCE", "eventhub-client"),

		RefreshRotation:      getEnvAsBool("REFRESH_ROTATION", true),
		SessionSweepInterval: getEnv("SESSION_SWEEP_INTERVAL", "6h"),

		// Redis
		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnv("REDIS_DB", "0"),
		RedisOpTimeout: getEnv("REDIS_OP_TIMEOUT", "2s"),

		// Rate Limiting - general
		RateLimitMaxRequests:          getEnv("RATE_LIMIT_MAX_REQUESTS", "100"),
		RateLimitTimeWindowSeconds:    getEnv("RATE_LIMIT_TIME_WINDOW_SECONDS", "60"),
		RateLimitBlockDurationMinutes: getEnv("RATE_LIMIT_BLOCK_DURATION_MINUTES", "15"),

		LoginRateLimitMaxAttempts:   getEnv("LOGIN_RATE_LIMIT_MAX_ATTEMPTS", "5"),
		LoginRateLimitWindowSeconds: getEnv("LOGIN_RATE_LIMIT_WINDOW_SECONDS", "300"),
		LoginRateLimitBlockMinutes:  getEnv("LOGIN_RATE_LIMIT_BLOCK_MINUTES", "30"),

		PasswordResetMaxAttempts:   getEnv("PASSWORD_RESET_MAX_ATTEMPTS", "3"),
		PasswordResetWindowMinutes: getEnv("PASSWORD_RESET_WINDOW_MINUTES", "60"),
		PasswordResetBlockHours:    getEnv("PASSWORD_RESET_BLOCK_HOURS", "24"),

		LoginLockoutMaxFailures:   getEnv("LOGIN_LOCKOUT_MAX_FAILURES", "5"),
		LoginLockoutWindowMinutes: getEnv("LOGIN_LOCKOUT_WINDOW_MINUTES", "15"),

		SuperAdminEmail:    getEnv("SUPER_ADMIN_EMAIL", "admin@eventhub.local"),
		SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", ""),

		FrontendURL:            getEnv("FRONTEND_URL", "http://localhost:3000"),
		NotificationServiceURL: getEnv("NOTIFICATION_SERVICE_URL", "http://localhost:8004"),
		AuthServicePort:        getEnv("AUTH_SERVICE_PORT", "8001"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// GetConfig returns the current configuration, loading it on first use.
func GetConfig() *Config {
	if cfg == nil {
		LoadConfig()
	}
	return cfg
}

// Validate rejects configurations the auth service cannot run with.
func (c *Config) Validate() error {
	if c.JWTAccessSecret == "" {
		return errors.New("JWT_ACCESS_SECRET is required")
	}
	if c.JWTRefreshSecret == "" {
		return errors.New("JWT_REFRESH_SECRET is required")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "mongo" {
		return errors.New("DB_DRIVER must be postgres or mongo")
	}
	return nil
}

// AccessExpiry returns the access token lifetime.
func (c *Config) AccessExpiry() time.Duration {
	return parseDuration(c.JWTAccessExpiry, 15*time.Minute)
}

// RefreshExpiry returns the refresh token lifetime.
func (c *Config) RefreshExpiry() time.Duration {
	return parseDuration(c.JWTRefreshExpiry, 7*24*time.Hour)
}

// SweepInterval returns how often residual session state is reconciled.
func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.SessionSweepInterval, 6*time.Hour)
}

// StoreTimeout bounds every call into the revocation store.
func (c *Config) StoreTimeout() time.Duration {
	return parseDuration(c.RedisOpTimeout, 2*time.Second)
}

// RedisDBNumber returns the Redis logical database.
func (c *Config) RedisDBNumber() int {
	return atoiOr(c.RedisDB, 0)
}

// Report logs where the configuration came from and any value that fell
// back to its default.
func (c *Config) Report(ctx context.Context, log logging.Logger) {
	if c.EnvFile != "" {
		log.Info(ctx, "environment loaded", "file", c.EnvFile)
	} else {
		log.Warn(ctx, ".env file not found, using system environment variables")
	}
	if _, err := strconv.Atoi(c.RedisDB); err != nil {
		log.Warn(ctx, "invalid Redis DB number, using default 0", "value", c.RedisDB)
	}
}

// GetRateLimitMaxRequests returns the rate limit max requests as integer
func (c *Config) GetRateLimitMaxRequests() int {
	return atoiOr(c.RateLimitMaxRequests, 100)
}

// GetRateLimitTimeWindow returns the general rate limit window.
func (c *Config) GetRateLimitTimeWindow() time.Duration {
	return time.Duration(atoiOr(c.RateLimitTimeWindowSeconds, 60)) * time.Second
}

// GetRateLimitBlockDuration returns how long an offending client stays blocked.
func (c *Config) GetRateLimitBlockDuration() time.Duration {
	return time.Duration(atoiOr(c.RateLimitBlockDurationMinutes, 15)) * time.Minute
}

func (c *Config) GetLoginRateLimitMaxAttempts() int {
	return atoiOr(c.LoginRateLimitMaxAttempts, 5)
}

func (c *Config) GetLoginRateLimitWindow() time.Duration {
	return time.Duration(atoiOr(c.LoginRateLimitWindowSeconds, 300)) * time.Second
}

func (c *Config) GetLoginRateLimitBlock() time.Duration {
	return time.Duration(atoiOr(c.LoginRateLimitBlockMinutes, 30)) * time.Minute
}

func (c *Config) GetPasswordResetMaxAttempts() int {
	return atoiOr(c.PasswordResetMaxAttempts, 3)
}

func (c *Config) GetPasswordResetWindow() time.Duration {
	return time.Duration(atoiOr(c.PasswordResetWindowMinutes, 60)) * time.Minute
}

func (c *Config) GetPasswordResetBlock() time.Duration {
	return time.Duration(atoiOr(c.PasswordResetBlockHours, 24)) * time.Hour
}

// GetLockoutMaxFailures returns the failed logins tolerated inside the lockout window.
func (c *Config) GetLockoutMaxFailures() int {
	return atoiOr(c.LoginLockoutMaxFailures, 5)
}

func (c *Config) GetLockoutWindow() time.Duration {
	return time.Duration(atoiOr(c.LoginLockoutWindowMinutes, 15)) * time.Minute
}

// parseDuration accepts Go durations plus a "d" suffix for days ("7d").
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultValue
	}
	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil || days <= 0 {
			return defaultValue
		}
		return time.Duration(days) * 24 * time.Hour
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func atoiOr(value string, defaultValue int) int {
	if v, err := strconv.Atoi(value); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
