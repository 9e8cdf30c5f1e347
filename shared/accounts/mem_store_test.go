package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models/auth"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	logins        []auth.LoginAttempt
	resetAttempts []auth.PasswordResetAttempt
	resetTokens   map[uuid.UUID]*auth.PasswordResetToken
	verifyTokens  map[uuid.UUID]*auth.EmailVerificationToken
	audits        []auth.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[uuid.UUID]*models.User{},
		resetTokens:  map[uuid.UUID]*auth.PasswordResetToken{},
		verifyTokens: map[uuid.UUID]*auth.EmailVerificationToken{},
	}
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindByID(_ context.Context, id string) (*models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) update(id string, fn func(*models.User)) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memStore) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	return m.update(id, func(u *models.User) {
		u.Password = hash
		u.PasswordChangedAt = &at
	})
}

func (m *memStore) MarkEmailVerified(_ context.Context, id string) error {
	return m.update(id, func(u *models.User) { u.EmailVerified = true })
}

func (m *memStore) TouchLogin(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(u *models.User) { u.LastLoginAt = &at })
}

func (m *memStore) RecordLoginAttempt(_ context.Context, a *auth.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, *a)
	return nil
}

func (m *memStore) CountFailedLogins(_ context.Context, email string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.logins {
		if a.Email == email && !a.Successful && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) RecordResetAttempt(_ context.Context, a *auth.PasswordResetAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetAttempts = append(m.resetAttempts, *a)
	return nil
}

func (m *memStore) CountResetAttempts(_ context.Context, email string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.resetAttempts {
		if a.Email == email && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) SaveResetToken(_ context.Context, t *auth.PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	m.resetTokens[t.ID] = &cp
	return nil
}

func (m *memStore) FindResetToken(_ context.Context, hash string) (*auth.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.resetTokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ClaimResetToken(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.resetTokens[uuid.MustParse(id)]
	if !ok || t.Used {
		return ErrNotFound
	}
	t.Used, t.UsedAt = true, &at
	return nil
}

func (m *memStore) ConsumeResetTokens(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid := uuid.MustParse(userID)
	for _, t := range m.resetTokens {
		if t.UserID == uid && !t.Used {
			t.Used, t.UsedAt = true, &at
		}
	}
	return nil
}

func (m *memStore) SaveVerificationToken(_ context.Context, t *auth.EmailVerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	m.verifyTokens[t.ID] = &cp
	return nil
}

func (m *memStore) FindVerificationToken(_ context.Context, hash string) (*auth.EmailVerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.verifyTokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ClaimVerificationToken(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.verifyTokens[uuid.MustParse(id)]
	if !ok || t.Verified {
		return ErrNotFound
	}
	t.Verified, t.VerifiedAt = true, &at
	return nil
}

func (m *memStore) SaveAudit(_ context.Context, l *auth.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, *l)
	return nil
}
