package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tvloc02/EventVer1-sub001/shared/logging"
	"github.com/tvloc02/EventVer1-sub001/shared/metrics"
	"github.com/tvloc02/EventVer1-sub001/shared/token"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/cache"
)

const DefaultSweepInterval = 6 * time.Hour

// Config wires a Manager. Issuer, Verifier, Store and Accounts are required.
type Config struct {
	Issuer   *token.Issuer
	Verifier *token.Verifier
	Store    Store
	Accounts Authenticator

	Logger  logging.Logger
	Metrics *metrics.Metrics
	Events  EventSink

	// Rotate issues a new refresh token on every refresh and replaces the
	// stored record with it.
	Rotate bool

	SweepInterval time.Duration

	// Now defaults to time.Now. It should be the clock the Issuer uses.
	Now func() time.Time
}

// Manager runs login, refresh, logout and forced invalidation. It holds no
// revocation state of its own; the Store is the only source of truth.
type Manager struct {
	issuer   *token.Issuer
	verifier *token.Verifier
	store    Store
	accounts Authenticator
	log      logging.Logger
	metrics  *metrics.Metrics
	events   EventSink
	rotate   bool
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Issuer == nil || cfg.Verifier == nil {
		return nil, errors.New("session: issuer and verifier are required")
	}
	if cfg.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if cfg.Accounts == nil {
		return nil, errors.New("session: accounts authenticator is required")
	}

	m := &Manager{
		issuer:   cfg.Issuer,
		verifier: cfg.Verifier,
		store:    cfg.Store,
		accounts: cfg.Accounts,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		events:   cfg.Events,
		rotate:   cfg.Rotate,
		interval: cfg.SweepInterval,
		now:      cfg.Now,
	}
	if m.log == nil {
		m.log = logging.Nop()
	}
	if m.interval <= 0 {
		m.interval = DefaultSweepInterval
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Login authenticates creds, issues an access/refresh pair and stores the
// refresh record. A store failure fails the login.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*Pair, error) {
	ident, err := m.accounts.Authenticate(ctx, creds)
	if err != nil {
		m.emit(ctx, EventLogin, "", creds.Device, err)
		return nil, err
	}

	access, err := m.issuer.IssueAccess(ident.Subject, ident.Claims)
	if err != nil {
		m.emit(ctx, EventLogin, ident.Subject, creds.Device, err)
		return nil, err
	}
	refresh, err := m.issuer.IssueRefresh(ident.Subject)
	if err != nil {
		m.emit(ctx, EventLogin, ident.Subject, creds.Device, err)
		return nil, err
	}

	rec := cache.RefreshRecord{
		Token:      refresh.Token,
		CreatedAt:  m.now().UTC(),
		DeviceInfo: creds.Device,
	}
	if err := m.store.PutRefresh(ctx, ident.Subject, rec, refresh.Remaining(m.now())); err != nil {
		m.log.Error(ctx, "failed to store refresh record", "subject", ident.Subject, "error", err)
		m.emit(ctx, EventLogin, ident.Subject, creds.Device, err)
		return nil, fmt.Errorf("store refresh record: %w", err)
	}

	m.emit(ctx, EventLogin, ident.Subject, creds.Device, nil)
	return newPair(ident.Subject, access, refresh, false), nil
}

// Refresh exchanges a refresh token for a new access token. The token must
// be the one currently stored for its subject; anything else, including a
// token the store never saw, is ErrInvalidToken. An expired token ends the
// session and returns ErrExpiredToken.
func (m *Manager) Refresh(ctx context.Context, raw string, device token.DeviceInfo) (*Pair, error) {
	res := m.verifier.VerifyRefresh(raw)
	switch res.Kind {
	case token.KindExpired:
		subject := ""
		if res.Claims != nil && res.Claims.Subject != "" {
			subject = res.Claims.Subject
			m.expire(ctx, subject, raw)
		}
		m.emit(ctx, EventRefresh, subject, device, token.ErrExpiredToken)
		return nil, token.ErrExpiredToken
	case token.KindInvalid:
		m.emit(ctx, EventRefresh, "", device, token.ErrInvalidToken)
		return nil, token.ErrInvalidToken
	}

	subject := res.Claims.Subject
	if subject == "" {
		m.emit(ctx, EventRefresh, "", device, token.ErrInvalidToken)
		return nil, token.ErrInvalidToken
	}

	rec, err := m.store.GetRefresh(ctx, subject)
	if errors.Is(err, cache.ErrNotFound) {
		m.emit(ctx, EventRefresh, subject, device, token.ErrInvalidToken)
		return nil, token.ErrInvalidToken
	}
	if err != nil {
		m.log.Error(ctx, "refresh record lookup failed", "subject", subject, "error", err)
		m.emit(ctx, EventRefresh, subject, device, err)
		return nil, fmt.Errorf("load refresh record: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(rec.Token), []byte(raw)) != 1 {
		m.log.Warn(ctx, "refresh token does not match the stored session", "subject", subject)
		m.emit(ctx, EventRefresh, subject, device, token.ErrInvalidToken)
		return nil, token.ErrInvalidToken
	}

	ident, err := m.accounts.Lookup(ctx, subject)
	if errors.Is(err, ErrUnknownSubject) {
		if derr := m.store.DeleteRefresh(ctx, subject); derr != nil {
			m.log.Warn(ctx, "failed to drop session of unknown subject", "subject", subject, "error", derr)
		}
		m.emit(ctx, EventRefresh, subject, device, token.ErrInvalidToken)
		return nil, token.ErrInvalidToken
	}
	if err != nil {
		m.emit(ctx, EventRefresh, subject, device, err)
		return nil, err
	}

	access, err := m.issuer.IssueAccess(subject, ident.Claims)
	if err != nil {
		m.emit(ctx, EventRefresh, subject, device, err)
		return nil, err
	}

	if !m.rotate {
		m.emit(ctx, EventRefresh, subject, device, nil)
		pair := newPair(subject, access, nil, false)
		pair.RefreshToken = raw
		pair.RefreshExpiresAt = res.Claims.ExpiresAt
		return pair, nil
	}

	refresh, err := m.issuer.IssueRefresh(subject)
	if err != nil {
		m.emit(ctx, EventRefresh, subject, device, err)
		return nil, err
	}
	now := m.now().UTC()
	next := cache.RefreshRecord{
		Token:       refresh.Token,
		CreatedAt:   rec.CreatedAt,
		DeviceInfo:  rec.DeviceInfo,
		RefreshedAt: &now,
	}
	if device != (token.DeviceInfo{}) {
		next.DeviceInfo = device
	}
	if err := m.store.PutRefresh(ctx, subject, next, refresh.Remaining(m.now())); err != nil {
		m.log.Error(ctx, "failed to store rotated refresh record", "subject", subject, "error", err)
		m.emit(ctx, EventRefresh, subject, device, err)
		return nil, fmt.Errorf("store refresh record: %w", err)
	}

	m.emit(ctx, EventRefresh, subject, device, nil)
	return newPair(subject, access, refresh, true), nil
}

// Logout blacklists accessToken for the rest of its validity and deletes
// subject's refresh record. When subject is empty it is taken from the
// token. Calling Logout again for the same session is harmless.
func (m *Manager) Logout(ctx context.Context, accessToken, subject string) error {
	var blErr error
	res := m.verifier.VerifyAccess(accessToken)
	if res.Valid {
		if subject == "" {
			subject = res.Claims.Subject
		}
		blErr = m.store.Blacklist(ctx, accessToken, res.Claims.Remaining(m.now()))
		if blErr != nil {
			m.log.Error(ctx, "failed to blacklist access token", "subject", subject, "error", blErr)
		}
	}
	if subject == "" {
		m.emit(ctx, EventLogout, "", token.DeviceInfo{}, token.ErrInvalidToken)
		return token.ErrInvalidToken
	}

	err := m.end(ctx, subject)
	if err == nil && blErr != nil {
		err = fmt.Errorf("blacklist access token: %w", blErr)
	}
	m.emit(ctx, EventLogout, subject, token.DeviceInfo{}, err)
	return err
}

// ForceInvalidate ends subject's session without needing any of its tokens.
// Access tokens already handed out stay valid until they expire.
func (m *Manager) ForceInvalidate(ctx context.Context, subject string) error {
	if subject == "" {
		return errors.New("subject is required")
	}
	err := m.end(ctx, subject)
	m.emit(ctx, EventInvalidate, subject, token.DeviceInfo{}, err)
	return err
}

// Authenticate verifies an access token and checks the blacklist. If the
// blacklist cannot be consulted the token is rejected.
func (m *Manager) Authenticate(ctx context.Context, accessToken string) (*token.Claims, error) {
	res := m.verifier.VerifyAccess(accessToken)
	if !res.Valid {
		return nil, res.Err()
	}

	listed, err := m.store.IsBlacklisted(ctx, accessToken)
	if err != nil {
		m.metrics.RecordBlacklistCheck("error")
		m.log.Warn(ctx, "blacklist unavailable, rejecting token", "subject", res.Claims.Subject, "error", err)
		return nil, fmt.Errorf("check blacklist: %w", err)
	}
	if listed {
		m.metrics.RecordBlacklistCheck("hit")
		return nil, ErrTokenRevoked
	}
	m.metrics.RecordBlacklistCheck("miss")
	return res.Claims, nil
}

// State derives subject's lifecycle state from the store.
func (m *Manager) State(ctx context.Context, subject string) (State, error) {
	info, err := m.Describe(ctx, subject)
	if err != nil {
		return "", err
	}
	return info.State, nil
}

// Describe returns subject's state with the metadata of its refresh record.
func (m *Manager) Describe(ctx context.Context, subject string) (*Info, error) {
	info := &Info{Subject: subject}

	rec, err := m.store.GetRefresh(ctx, subject)
	switch {
	case err == nil:
		info.State = StateAuthenticated
		if rec.RefreshedAt != nil {
			info.State = StateRefreshed
		}
		created := rec.CreatedAt
		info.CreatedAt = &created
		info.RefreshedAt = rec.RefreshedAt
		device := rec.DeviceInfo
		info.Device = &device
		return info, nil
	case !errors.Is(err, cache.ErrNotFound):
		return nil, err
	}

	revoked, err := m.store.IsRevoked(ctx, subject)
	if err != nil {
		return nil, err
	}
	info.State = StateAnonymous
	if revoked {
		info.State = StateRevoked
	}
	return info, nil
}

// end deletes the refresh record and leaves a revocation marker. Only the
// delete decides the outcome.
func (m *Manager) end(ctx context.Context, subject string) error {
	if err := m.store.DeleteRefresh(ctx, subject); err != nil {
		m.log.Error(ctx, "failed to delete refresh record", "subject", subject, "error", err)
		return fmt.Errorf("delete refresh record: %w", err)
	}
	if err := m.store.MarkRevoked(ctx, subject, m.now(), m.issuer.RefreshExpiry()); err != nil {
		m.log.Warn(ctx, "failed to mark session revoked", "subject", subject, "error", err)
	}
	return nil
}

// expire ends the session of an expired refresh token, but only if that
// token is still the stored one; a newer session is left alone.
func (m *Manager) expire(ctx context.Context, subject, raw string) {
	rec, err := m.store.GetRefresh(ctx, subject)
	if err != nil {
		return
	}
	if subtle.ConstantTimeCompare([]byte(rec.Token), []byte(raw)) != 1 {
		return
	}
	if err := m.end(ctx, subject); err != nil {
		m.log.Warn(ctx, "failed to clean up expired session", "subject", subject, "error", err)
	}
}

func (m *Manager) emit(ctx context.Context, event, subject string, device token.DeviceInfo, err error) {
	result := "ok"
	reason := ""
	if err != nil {
		result = "error"
		reason = err.Error()
	}
	m.metrics.RecordSessionEvent(event, result)
	if err == nil {
		m.log.Info(ctx, "session "+event, "subject", subject)
	} else {
		m.log.Debug(ctx, "session "+event+" failed", "subject", subject, "error", err)
	}
	if m.events != nil {
		m.events.Record(ctx, Event{
			Type:    event,
			Subject: subject,
			Success: err == nil,
			Reason:  reason,
			Device:  device,
			At:      m.now().UTC(),
		})
	}
}

func newPair(subject string, access, refresh *token.Issued, rotated bool) *Pair {
	p := &Pair{
		Subject:         subject,
		AccessToken:     access.Token,
		TokenType:       "Bearer",
		ExpiresIn:       int64(access.ExpiresAt.Sub(access.IssuedAt) / time.Second),
		AccessExpiresAt: access.ExpiresAt,
		Rotated:         rotated,
	}
	if refresh != nil {
		p.RefreshToken = refresh.Token
		p.RefreshExpiresAt = refresh.ExpiresAt
	}
	return p
}
