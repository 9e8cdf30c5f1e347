// Package token issues and verifies the credentials handed to EventHub
// clients: signed JWTs for access, refresh, device, API-key and temporary
// tokens, and opaque hashed values for password reset and email verification.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tvloc02/EventVer1-sub001/shared/metrics"
)

// Type identifies the purpose of a token. It is signed into every JWT and
// never changes after issuance.
type Type string

const (
	TypeAccess       Type = "access"
	TypeRefresh      Type = "refresh"
	TypeReset        Type = "reset"
	TypeVerification Type = "verification"
	TypeDevice       Type = "device"
	TypeAPIKey       Type = "api_key"
	TypeTemporary    Type = "temporary"
)

const (
	DefaultAccessExpiry  = 15 * time.Minute
	DefaultRefreshExpiry = 7 * 24 * time.Hour
	ResetExpiry          = 30 * time.Minute
	VerificationExpiry   = 24 * time.Hour
	DeviceExpiry         = 30 * 24 * time.Hour
	APIKeyExpiry         = 365 * 24 * time.Hour
	TemporaryExpiry      = 10 * time.Minute
)

const (
	claimType        = "type"
	claimAction      = "action"
	claimData        = "data"
	claimPermissions = "permissions"
	claimKeyID       = "key_id"
	claimDeviceID    = "device_id"
	claimDeviceInfo  = "device_info"
)

// registered claims are owned by the issuer and cannot be set by callers.
var registered = map[string]struct{}{
	"sub": {}, "iss": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
	claimType: {},
}

// DeviceInfo describes the client a session or device token belongs to.
type DeviceInfo struct {
	UserAgent string `json:"user_agent" bson:"user_agent"`
	IP        string `json:"ip" bson:"ip"`
	Platform  string `json:"platform" bson:"platform"`
}

// Options configures an Issuer and a Verifier. Both must share the same
// secrets, issuer and audience.
type Options struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration

	// Leeway tolerated on exp/iat checks. Zero means none.
	Leeway time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	Metrics *metrics.Metrics
}

func (o Options) clock() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

// Issued is a freshly signed token together with its bookkeeping fields.
type Issued struct {
	Token     string    `json:"token"`
	Type      Type      `json:"type"`
	ID        string    `json:"id"`
	KeyID     string    `json:"key_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Remaining returns the validity left at t, never negative.
func (i *Issued) Remaining(t time.Time) time.Duration {
	if d := i.ExpiresAt.Sub(t); d > 0 {
		return d
	}
	return 0
}

// Claims is the decoded form of a verified JWT.
type Claims struct {
	Subject   string
	Type      Type
	ID        string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Custom holds every claim that is not a registered one, exactly as the
	// caller supplied it at issuance (after a JSON round trip).
	Custom map[string]any
}

// Action returns the scoped action of a temporary token.
func (c *Claims) Action() string {
	s, _ := c.Custom[claimAction].(string)
	return s
}

// Data returns the data attached to a temporary token.
func (c *Claims) Data() map[string]any {
	m, _ := c.Custom[claimData].(map[string]any)
	return m
}

// Permissions returns the capability list of an API key.
func (c *Claims) Permissions() []string {
	raw, _ := c.Custom[claimPermissions].([]any)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if s, ok := p.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// KeyID returns the unique identifier of an API key.
func (c *Claims) KeyID() string {
	s, _ := c.Custom[claimKeyID].(string)
	return s
}

// DeviceID returns the device a device token is scoped to.
func (c *Claims) DeviceID() string {
	s, _ := c.Custom[claimDeviceID].(string)
	return s
}

// Remaining returns the validity left at t, never negative.
func (c *Claims) Remaining(t time.Time) time.Duration {
	if d := c.ExpiresAt.Sub(t); d > 0 {
		return d
	}
	return 0
}

func claimsFromMap(mc jwt.MapClaims) (*Claims, bool) {
	typ, _ := mc[claimType].(string)
	if typ == "" {
		return nil, false
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, false
	}

	c := &Claims{
		Type:      Type(typ),
		ExpiresAt: exp.Time,
		Custom:    make(map[string]any),
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	c.Subject, _ = mc.GetSubject()
	c.Issuer, _ = mc.GetIssuer()
	if aud, err := mc.GetAudience(); err == nil {
		c.Audience = aud
	}
	c.ID, _ = mc["jti"].(string)

	for k, v := range mc {
		if _, ok := registered[k]; !ok {
			c.Custom[k] = v
		}
	}
	return c, true
}
