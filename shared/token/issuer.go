package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errMissingSecret = errors.New("signing secret is empty")

// Issuer produces signed, time-bound tokens. Access, device, API-key and
// temporary tokens are signed with the access secret; refresh tokens use
// their own secret so neither class can be forged from the other's key.
type Issuer struct {
	opts Options
	now  func() time.Time
}

func NewIssuer(opts Options) *Issuer {
	if opts.AccessExpiry < time.Second {
		opts.AccessExpiry = DefaultAccessExpiry
	}
	if opts.RefreshExpiry < time.Second {
		opts.RefreshExpiry = DefaultRefreshExpiry
	}
	return &Issuer{opts: opts, now: opts.clock()}
}

// AccessExpiry returns the configured access token lifetime.
func (i *Issuer) AccessExpiry() time.Duration { return i.opts.AccessExpiry }

// RefreshExpiry returns the configured refresh token lifetime.
func (i *Issuer) RefreshExpiry() time.Duration { return i.opts.RefreshExpiry }

// IssueAccess signs claims for subject as an access token. Registered claim
// names inside claims are ignored.
func (i *Issuer) IssueAccess(subject string, claims map[string]any) (*Issued, error) {
	return i.sign(TypeAccess, subject, i.opts.AccessSecret, i.opts.AccessExpiry, claims)
}

// IssueRefresh signs a refresh token with the refresh secret.
func (i *Issuer) IssueRefresh(subject string) (*Issued, error) {
	return i.sign(TypeRefresh, subject, i.opts.RefreshSecret, i.opts.RefreshExpiry, nil)
}

// IssueDevice signs a token scoped to a single device identity.
func (i *Issuer) IssueDevice(subject, deviceID string, info DeviceInfo) (*Issued, error) {
	return i.sign(TypeDevice, subject, i.opts.AccessSecret, DeviceExpiry, map[string]any{
		claimDeviceID:   deviceID,
		claimDeviceInfo: info,
	})
}

// IssueAPIKey signs a capability token. A non-positive expiry means one year.
func (i *Issuer) IssueAPIKey(subject string, permissions []string, expiry time.Duration) (*Issued, error) {
	if expiry < time.Second {
		expiry = APIKeyExpiry
	}
	if permissions == nil {
		permissions = []string{}
	}
	keyID := uuid.NewString()
	issued, err := i.sign(TypeAPIKey, subject, i.opts.AccessSecret, expiry, map[string]any{
		claimPermissions: permissions,
		claimKeyID:       keyID,
	})
	if err != nil {
		return nil, err
	}
	issued.KeyID = keyID
	return issued, nil
}

// IssueTemporary signs a one-shot token for action. A non-positive expiry
// means ten minutes.
func (i *Issuer) IssueTemporary(subject, action string, data map[string]any, expiry time.Duration) (*Issued, error) {
	if expiry < time.Second {
		expiry = TemporaryExpiry
	}
	if data == nil {
		data = map[string]any{}
	}
	return i.sign(TypeTemporary, subject, i.opts.AccessSecret, expiry, map[string]any{
		claimAction: action,
		claimData:   data,
	})
}

// IssueReset creates an opaque password reset token valid for 30 minutes.
func (i *Issuer) IssueReset() (*OpaqueToken, error) {
	return i.opaque(TypeReset, ResetExpiry)
}

// IssueVerification creates an opaque email verification token valid for 24 hours.
func (i *Issuer) IssueVerification() (*OpaqueToken, error) {
	return i.opaque(TypeVerification, VerificationExpiry)
}

func (i *Issuer) sign(typ Type, subject string, secret []byte, expiry time.Duration, payload map[string]any) (*Issued, error) {
	if len(secret) == 0 {
		i.opts.Metrics.RecordIssueFailure(string(typ))
		return nil, newIssuanceError(typ, errMissingSecret)
	}

	// NumericDate has second precision; keep Issued in step with the token.
	issuedAt := i.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(expiry.Truncate(time.Second))
	id := uuid.NewString()

	mc := jwt.MapClaims{}
	for k, v := range payload {
		if _, ok := registered[k]; !ok {
			mc[k] = v
		}
	}
	mc[claimType] = string(typ)
	mc["iat"] = jwt.NewNumericDate(issuedAt)
	mc["exp"] = jwt.NewNumericDate(expiresAt)
	mc["iss"] = i.opts.Issuer
	mc["aud"] = i.opts.Audience
	mc["jti"] = id
	if subject != "" {
		mc["sub"] = subject
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(secret)
	if err != nil {
		i.opts.Metrics.RecordIssueFailure(string(typ))
		return nil, newIssuanceError(typ, err)
	}

	i.opts.Metrics.RecordIssued(string(typ))
	return &Issued{
		Token:     signed,
		Type:      typ,
		ID:        id,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
