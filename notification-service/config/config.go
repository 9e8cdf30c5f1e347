package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	sharedConfig "github.com/tvloc02/EventVer1-sub001/shared/config"
)

type NotificationConfig struct {
	*sharedConfig.Config

	Port string
	SMTP SMTPConfig
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	UseTLS   bool
	From     string
	FromName string
	Timeout  time.Duration
}

// Enabled reports whether enough is configured to talk to a mail server.
// Without it the service logs messages instead of sending them.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

var notificationConfig *NotificationConfig

func LoadNotificationConfig() *NotificationConfig {
	if notificationConfig != nil {
		return notificationConfig
	}

	baseConfig := sharedConfig.GetConfig()

	notificationConfig = &NotificationConfig{
		Config: baseConfig,
		Port:   getEnv("NOTIFICATION_SERVICE_PORT", portOf(baseConfig.NotificationServiceURL, "8004")),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			UseTLS:   getEnvAsBool("SMTP_USE_TLS", false),
			From:     getEnv("EMAIL_FROM", "no-reply@eventhub.local"),
			FromName: getEnv("EMAIL_FROM_NAME", "EventHub"),
			Timeout:  time.Duration(getEnvAsInt("SMTP_TIMEOUT_SECONDS", 10)) * time.Second,
		},
	}

	return notificationConfig
}

func GetNotificationConfig() *NotificationConfig {
	if notificationConfig == nil {
		return LoadNotificationConfig()
	}
	return notificationConfig
}

func portOf(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Port() == "" {
		return fallback
	}
	return u.Port()
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
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
