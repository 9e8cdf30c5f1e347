package config

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvloc02/EventVer1-sub001/shared/logging"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		def  time.Duration
		want time.Duration
	}{
		{"15m", time.Hour, 15 * time.Minute},
		{"7d", time.Hour, 7 * 24 * time.Hour},
		{"", time.Hour, time.Hour},
		{"garbage", time.Minute, time.Minute},
		{"-5m", time.Minute, time.Minute},
		{"0d", time.Minute, time.Minute},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseDuration(tc.in, tc.def), tc.in)
	}
}

func TestLoadConfig_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "a-secret")
	t.Setenv("JWT_REFRESH_SECRET", "r-secret")
	t.Setenv("JWT_ACCESS_EXPIRY", "5m")
	t.Setenv("REFRESH_ROTATION", "false")

	c := LoadConfig()

	require.NoError(t, c.Validate())
	assert.Equal(t, 5*time.Minute, c.AccessExpiry())
	assert.Equal(t, 7*24*time.Hour, c.RefreshExpiry())
	assert.Equal(t, 6*time.Hour, c.SweepInterval())
	assert.Equal(t, 2*time.Second, c.StoreTimeout())
	assert.False(t, c.RefreshRotation)
	assert.Same(t, c, GetConfig())
}

func TestValidate(t *testing.T) {
	c := &Config{DBDriver: "postgres"}
	assert.Error(t, c.Validate())

	c.JWTAccessSecret = "same"
	c.JWTRefreshSecret = "same"
	assert.ErrorContains(t, c.Validate(), "must differ")

	c.JWTRefreshSecret = "other"
	assert.NoError(t, c.Validate())

	c.DBDriver = "sqlite"
	assert.Error(t, c.Validate())
}

func TestRedisDBNumber_Invalid(t *testing.T) {
	c := &Config{RedisDB: "x"}
	assert.Equal(t, 0, c.RedisDBNumber())
	c.RedisDB = "3"
	assert.Equal(t, 3, c.RedisDBNumber())
}

func TestReport_LogsThroughLogger(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")
	c := LoadConfig()
	assert.Equal(t, 0, c.RedisDBNumber())

	var buf bytes.Buffer
	c.Report(context.Background(), logging.New(&buf, "debug", "text"))
	assert.Contains(t, buf.String(), "invalid Redis DB number")
	assert.Contains(t, buf.String(), "value=primary")

	c.RedisDB = "3"
	c.EnvFile = "../.env"
	buf.Reset()
	c.Report(context.Background(), logging.New(&buf, "debug", "text"))
	assert.Equal(t, 3, c.RedisDBNumber())
	assert.Contains(t, buf.String(), "file=../.env")
	assert.NotContains(t, buf.String(), "invalid Redis DB number")
}
