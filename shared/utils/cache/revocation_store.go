// Package cache implements the Redis-backed revocation store: one refresh
// record per account and a TTL-bound blacklist of revoked access tokens.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tvloc02/EventVer1-sub001/shared/metrics"
	"github.com/tvloc02/EventVer1-sub001/shared/token"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrStoreUnavailable = errors.New("revocation store unavailable")
)

const (
	RefreshKeyPrefix   = "refresh_token:"
	BlacklistKeyPrefix = "blacklist:"
	RevokedKeyPrefix   = "session_revoked:"

	DefaultOpTimeout = 2 * time.Second

	scanBatch = 200
)

// RefreshRecord is the value stored under refresh_token:<subject>.
type RefreshRecord struct {
	Token      string           `json:"token"`
	CreatedAt  time.Time        `json:"created_at"`
	DeviceInfo token.DeviceInfo `json:"device_info"`

	// RefreshedAt is set once the record has been replaced by a rotation.
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

// Stats counts the keys currently held by the store.
type Stats struct {
	RefreshRecords    int `json:"refresh_records"`
	BlacklistedTokens int `json:"blacklisted_tokens"`
	RevokedSessions   int `json:"revoked_sessions"`
}

// SweepReport summarises one housekeeping pass.
type SweepReport struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
}

// RevocationStore owns refresh records and blacklist entries. Expiry is
// enforced by Redis TTLs; nothing is cached in process.
type RevocationStore struct {
	client  *redis.Client
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewRevocationStore wraps client. A non-positive timeout means
// DefaultOpTimeout.
func NewRevocationStore(client *redis.Client, timeout time.Duration, m *metrics.Metrics) *RevocationStore {
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &RevocationStore{client: client, timeout: timeout, metrics: m}
}

func RefreshKey(subject string) string { return RefreshKeyPrefix + subject }

func BlacklistKey(raw string) string { return BlacklistKeyPrefix + raw }

func RevokedKey(subject string) string { return RevokedKeyPrefix + subject }

// PutRefresh stores rec for subject, replacing any previous record.
func (s *RevocationStore) PutRefresh(ctx context.Context, subject string, rec RefreshRecord, ttl time.Duration) error {
	if subject == "" {
		return errors.New("subject is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("refresh record ttl must be positive, got %s", ttl)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh record: %w", err)
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.client.Set(ctx, RefreshKey(subject), data, ttl).Err(); err != nil {
		return s.unavailable("put_refresh", err)
	}
	return nil
}

// GetRefresh returns the record for subject or ErrNotFound.
func (s *RevocationStore) GetRefresh(ctx context.Context, subject string) (*RefreshRecord, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	raw, err := s.client.Get(ctx, RefreshKey(subject)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.unavailable("get_refresh", err)
	}

	var rec RefreshRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// an unreadable record cannot authorise a refresh
		return nil, ErrNotFound
	}
	return &rec, nil
}

// DeleteRefresh removes the record for subject. Deleting a missing record is
// not an error.
func (s *RevocationStore) DeleteRefresh(ctx context.Context, subject string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Del(ctx, RefreshKey(subject)).Err(); err != nil {
		return s.unavailable("delete_refresh", err)
	}
	return nil
}

// Blacklist marks raw as revoked for ttl. A non-positive ttl means the token
// is already dead and nothing is stored.
func (s *RevocationStore) Blacklist(ctx context.Context, raw string, ttl time.Duration) error {
	if ttl <= 0 || raw == "" {
		return nil
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Set(ctx, BlacklistKey(raw), "true", ttl).Err(); err != nil {
		return s.unavailable("blacklist", err)
	}
	return nil
}

// IsBlacklisted reports whether raw has been revoked. Errors are always
// ErrStoreUnavailable; the caller picks the safe default.
func (s *RevocationStore) IsBlacklisted(ctx context.Context, raw string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.client.Exists(ctx, BlacklistKey(raw)).Result()
	if err != nil {
		return false, s.unavailable("is_blacklisted", err)
	}
	return n > 0, nil
}

// MarkRevoked records that subject's session was ended, so a missing refresh
// record can be told apart from a subject that never logged in. The marker
// only lives as long as the refresh token it replaced could have.
func (s *RevocationStore) MarkRevoked(ctx context.Context, subject string, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Set(ctx, RevokedKey(subject), at.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return s.unavailable("mark_revoked", err)
	}
	return nil
}

// IsRevoked reports whether a revocation marker exists for subject.
func (s *RevocationStore) IsRevoked(ctx context.Context, subject string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.client.Exists(ctx, RevokedKey(subject)).Result()
	if err != nil {
		return false, s.unavailable("is_revoked", err)
	}
	return n > 0, nil
}

// Stats counts refresh records, blacklist entries and revocation markers
// with SCAN.
func (s *RevocationStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counters := []struct {
		pattern string
		n       *int
	}{
		{RefreshKeyPrefix + "*", &st.RefreshRecords},
		{BlacklistKeyPrefix + "*", &st.BlacklistedTokens},
		{RevokedKeyPrefix + "*", &st.RevokedSessions},
	}
	for _, c := range counters {
		n := c.n
		err := s.scan(ctx, c.pattern, func(context.Context, string) error {
			*n++
			return nil
		})
		if err != nil {
			return Stats{}, s.unavailable("stats", err)
		}
	}
	return st, nil
}

// Sweep removes residual state: keys of ours that carry no TTL, and refresh
// records that no longer decode. Everything else is left to Redis expiry.
func (s *RevocationStore) Sweep(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	check := func(ctx context.Context, key string) error {
		rep.Scanned++
		ttl, err := s.client.TTL(ctx, key).Result()
		if err != nil {
			return err
		}
		stale := ttl == -1
		if !stale && strings.HasPrefix(key, RefreshKeyPrefix) {
			raw, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			stale = !json.Valid(raw)
		}
		if !stale {
			return nil
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return err
		}
		rep.Removed++
		return nil
	}

	for _, pattern := range []string{RefreshKeyPrefix + "*", BlacklistKeyPrefix + "*", RevokedKeyPrefix + "*"} {
		if err := s.scan(ctx, pattern, check); err != nil {
			return rep, s.unavailable("sweep", err)
		}
	}
	s.metrics.RecordSweep(rep.Removed)
	return rep, nil
}

// Ping checks that the store answers within the operation timeout.
func (s *RevocationStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.unavailable("ping", err)
	}
	return nil
}

func (s *RevocationStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// scan walks keys matching pattern, giving each batch call its own timeout.
func (s *RevocationStore) scan(ctx context.Context, pattern string, fn func(context.Context, string) error) error {
	var cursor uint64
	for {
		opCtx, cancel := s.opContext(ctx)
		keys, next, err := s.client.Scan(opCtx, cursor, pattern, scanBatch).Result()
		if err != nil {
			cancel()
			return err
		}
		for _, key := range keys {
			if err := fn(opCtx, key); err != nil {
				cancel()
				return err
			}
		}
		cancel()
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RevocationStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RevocationStore) unavailable(op string, err error) error {
	s.metrics.RecordStoreError(op)
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
