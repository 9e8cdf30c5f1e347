// Package session implements the account session lifecycle on top of the
// token issuer and verifier and the revocation store:
//
//	ANONYMOUS -> AUTHENTICATED -> (REFRESHED)* -> REVOKED
//
// A session is the single refresh record kept for a subject. Logging in again
// replaces it, which ends the previous session on any other device.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tvloc02/EventVer1-sub001/shared/token"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/cache"
)

type State string

const (
	StateAnonymous     State = "ANONYMOUS"
	StateAuthenticated State = "AUTHENTICATED"
	StateRefreshed     State = "REFRESHED"
	StateRevoked       State = "REVOKED"
)

var (
	// ErrUnknownSubject is returned by an Authenticator when a subject no
	// longer exists or may not hold a session.
	ErrUnknownSubject = errors.New("subject unknown or disabled")

	// ErrTokenRevoked matches token.ErrInvalidToken as well.
	ErrTokenRevoked = fmt.Errorf("%w: revoked", token.ErrInvalidToken)
)

// Store is the part of the revocation store the manager drives.
type Store interface {
	PutRefresh(ctx context.Context, subject string, rec cache.RefreshRecord, ttl time.Duration) error
	GetRefresh(ctx context.Context, subject string) (*cache.RefreshRecord, error)
	DeleteRefresh(ctx context.Context, subject string) error
	Blacklist(ctx context.Context, raw string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, raw string) (bool, error)
	MarkRevoked(ctx context.Context, subject string, at time.Time, ttl time.Duration) error
	IsRevoked(ctx context.Context, subject string) (bool, error)
	Sweep(ctx context.Context) (cache.SweepReport, error)
}

// Identity is what an Authenticator knows about a subject: the id that goes
// into sub and the claims copied into every access token.
type Identity struct {
	Subject string
	Claims  map[string]any
}

// Authenticator checks credentials and reloads identities on refresh.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*Identity, error)
	Lookup(ctx context.Context, subject string) (*Identity, error)
}

// Event is emitted for every lifecycle transition attempt.
type Event struct {
	Type    string
	Subject string
	Success bool
	Reason  string
	Device  token.DeviceInfo
	At      time.Time
}

const (
	EventLogin      = "login"
	EventRefresh    = "refresh"
	EventLogout     = "logout"
	EventInvalidate = "invalidate"
)

// EventSink receives lifecycle events. Record must not block for long; the
// manager ignores its outcome.
type EventSink interface {
	Record(ctx context.Context, ev Event)
}

type Credentials struct {
	Email    string
	Password string
	Device   token.DeviceInfo
}

// Pair is what a client receives after login or refresh.
type Pair struct {
	Subject          string    `json:"subject"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Rotated          bool      `json:"rotated"`
}

// Info describes a subject's session for administrators. The refresh token
// itself is never included.
type Info struct {
	Subject     string            `json:"subject"`
	State       State             `json:"state"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
	RefreshedAt *time.Time        `json:"refreshed_at,omitempty"`
	Device      *token.DeviceInfo `json:"device_info,omitempty"`
}
