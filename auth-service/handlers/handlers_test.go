package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvloc02/EventVer1-sub001/auth-service/middleware"
	"github.com/tvloc02/EventVer1-sub001/shared/accounts"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/session"
	"github.com/tvloc02/EventVer1-sub001/shared/token"
	utils "github.com/tvloc02/EventVer1-sub001/shared/utils/auth"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/cache"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const goodResetToken = "reset-ok"

type fakeUser struct {
	id       uuid.UUID
	email    string
	password string
	role     string
}

// fakeAccounts stands in for accounts.Service on both sides: as the
// session authenticator and as the handlers' AccountService.
type fakeAccounts struct {
	mu      sync.Mutex
	users   map[string]*fakeUser
	policy  *utils.DefaultPolicy
	resets  []string
	changed []string
}

func newFakeAccounts() *fakeAccounts {
	f := &fakeAccounts{users: map[string]*fakeUser{}, policy: utils.NewDefaultPolicy()}
	f.users["student@uni.edu"] = &fakeUser{id: uuid.New(), email: "student@uni.edu", password: "Stud3nt!pass", role: models.RoleStudent}
	f.users["admin@uni.edu"] = &fakeUser{id: uuid.New(), email: "admin@uni.edu", password: "Adm1n!secret", role: models.RoleAdmin}
	return f
}

func (f *fakeAccounts) bySubject(subject string) *fakeUser {
	for _, u := range f.users {
		if u.id.String() == subject {
			return u
		}
	}
	return nil
}

func (f *fakeAccounts) Authenticate(_ context.Context, c session.Credentials) (*session.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[c.Email]
	if !ok || u.password != c.Password {
		return nil, accounts.ErrInvalidCredentials
	}
	return &session.Identity{Subject: u.id.String(), Claims: map[string]any{"email": u.email, "role": u.role}}, nil
}

func (f *fakeAccounts) Lookup(_ context.Context, subject string) (*session.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.bySubject(subject)
	if u == nil {
		return nil, session.ErrUnknownSubject
	}
	return &session.Identity{Subject: subject, Claims: map[string]any{"email": u.email, "role": u.role}}, nil
}

func (f *fakeAccounts) Register(_ context.Context, u *models.User, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.Email]; ok {
		return accounts.ErrEmailTaken
	}
	if r := f.policy.Evaluate(password, utils.PolicyContext{Email: u.Email}); !r.Valid {
		return &accounts.PolicyError{Report: r}
	}
	u.ID = uuid.New()
	f.users[u.Email] = &fakeUser{id: u.ID, email: u.Email, password: password, role: u.Role}
	return nil
}

func (f *fakeAccounts) Profile(_ context.Context, subject string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.bySubject(subject)
	if u == nil {
		return nil, accounts.ErrNotFound
	}
	return &models.User{ID: u.id, Email: u.email, Role: u.role, Status: models.StatusActive}, nil
}

func (f *fakeAccounts) EvaluatePassword(password string, pc utils.PolicyContext) utils.PolicyReport {
	return f.policy.Evaluate(password, pc)
}

func (f *fakeAccounts) RequestPasswordReset(_ context.Context, email string, _ token.DeviceInfo) error {
	if email == "limited@uni.edu" {
		return accounts.ErrTooManyRequests
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, email)
	return nil
}

func (f *fakeAccounts) VerifyResetToken(_ context.Context, raw string) (*accounts.ResetTokenInfo, error) {
	if raw != goodResetToken {
		return nil, accounts.ErrInvalidResetToken
	}
	return &accounts.ResetTokenInfo{Email: "student@uni.edu", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakeAccounts) ResetPassword(_ context.Context, raw, password string, _ token.DeviceInfo) error {
	if raw != goodResetToken {
		return accounts.ErrInvalidResetToken
	}
	if r := f.policy.Evaluate(password, utils.PolicyContext{}); !r.Valid {
		return &accounts.PolicyError{Report: r}
	}
	return nil
}

func (f *fakeAccounts) ChangePassword(_ context.Context, subject, current, next string, _ token.DeviceInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.bySubject(subject)
	if u == nil {
		return accounts.ErrNotFound
	}
	if u.password != current {
		return accounts.ErrWrongPassword
	}
	if r := f.policy.Evaluate(next, utils.PolicyContext{Email: u.email}); !r.Valid {
		return &accounts.PolicyError{Report: r}
	}
	u.password = next
	f.changed = append(f.changed, subject)
	return nil
}

func (f *fakeAccounts) CreateVerificationToken(context.Context, string, token.DeviceInfo) error {
	return nil
}

func (f *fakeAccounts) VerifyEmail(_ context.Context, raw string) error {
	if raw != "verify-ok" {
		return accounts.ErrInvalidVerificationToken
	}
	return nil
}

type failingStats struct{}

func (failingStats) Stats(context.Context) (cache.Stats, error) {
	return cache.Stats{}, cache.ErrStoreUnavailable
}

type env struct {
	router   *gin.Engine
	mr       *miniredis.Miniredis
	accounts *fakeAccounts
	handler  *AuthHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := cache.NewRevocationStore(client, 200*time.Millisecond, nil)
	t.Cleanup(func() { _ = store.Close() })

	opts := token.Options{
		AccessSecret:  []byte("handler-access-secret"),
		RefreshSecret: []byte("handler-refresh-secret"),
		Issuer:        "eventhub-api",
		Audience:      "eventhub-client",
	}
	issuer := token.NewIssuer(opts)
	verifier := token.NewVerifier(opts)
	fa := newFakeAccounts()

	mgr, err := session.NewManager(session.Config{
		Issuer:   issuer,
		Verifier: verifier,
		Store:    store,
		Accounts: fa,
		Rotate:   true,
	})
	require.NoError(t, err)

	h := NewAuthHandler(Deps{
		Sessions: mgr,
		Accounts: fa,
		Issuer:   issuer,
		Verifier: verifier,
		Stats:    store,
	})

	rl := middleware.NewRateLimiter(time.Hour)
	t.Cleanup(rl.Stop)
	loose := middleware.RateLimitConfig{MaxRequests: 1000, TimeWindow: time.Minute, BlockDuration: time.Minute}

	r := gin.New()
	r.Use(middleware.RequestID())
	RegisterRoutes(r, h, rl, RouteLimits{General: loose, Login: loose, PasswordReset: loose})
	return &env{router: r, mr: mr, accounts: fa, handler: h}
}

type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Data    json.RawMessage       `json:"data"`
	Errors  []response.FieldError `json:"errors"`
}

func (e *env) call(t *testing.T, method, path, bearer string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func (e *env) login(t *testing.T, email, password string) session.Pair {
	t.Helper()
	code, out := e.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, code, out.Message)
	var pair session.Pair
	require.NoError(t, json.Unmarshal(out.Data, &pair))
	return pair
}

func TestLoginMeLogout(t *testing.T) {
	e := newEnv(t)

	code, out := e.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "student@uni.edu", "password": "Stud3nt!pass"})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, out.Success)
	var resp struct {
		session.Pair
		User UserInfo `json:"user"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "student@uni.edu", resp.User.Email)

	code, _ = e.call(t, http.MethodGet, "/api/auth/me", resp.AccessToken, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.call(t, http.MethodPost, "/api/auth/logout", resp.AccessToken, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.call(t, http.MethodGet, "/api/auth/me", resp.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code, "logged out access token is blacklisted")

	code, _ = e.call(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": resp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code, "refresh record is gone")
}

func TestLogin_Rejections(t *testing.T) {
	e := newEnv(t)

	code, out := e.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "student@uni.edu", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, out.Success)
	assert.Equal(t, "Invalid credentials", out.Message)

	code, out = e.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, out.Errors)
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	body := gin.H{"email": "new@uni.edu", "password": "Fr3sh!start", "first_name": "Minh", "last_name": "Le"}

	code, out := e.call(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, code)
	var u UserInfo
	require.NoError(t, json.Unmarshal(out.Data, &u))
	assert.Equal(t, models.RoleStudent, u.Role)

	code, _ = e.call(t, http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, code)

	body["email"], body["password"] = "weak@uni.edu", "password"
	code, out = e.call(t, http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, out.Errors)
}

func TestRefresh_Rotates(t *testing.T) {
	e := newEnv(t)
	pair := e.login(t, "student@uni.edu", "Stud3nt!pass")

	code, out := e.call(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, code)
	var next session.Pair
	require.NoError(t, json.Unmarshal(out.Data, &next))
	assert.True(t, next.Rotated)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	code, _ = e.call(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code, "superseded refresh token")

	code, _ = e.call(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, code, "access token is not a refresh token")
}

func TestValidate(t *testing.T) {
	e := newEnv(t)
	pair := e.login(t, "student@uni.edu", "Stud3nt!pass")

	code, out := e.call(t, http.MethodPost, "/api/auth/validate", "", gin.H{"token": pair.AccessToken})
	require.Equal(t, http.StatusOK, code)
	var v ValidateResponse
	require.NoError(t, json.Unmarshal(out.Data, &v))
	assert.True(t, v.Valid)
	assert.Equal(t, pair.Subject, v.Subject)
	assert.Equal(t, token.TypeAccess, v.Type)
	assert.Equal(t, models.RoleStudent, v.Role)

	_, out = e.call(t, http.MethodPost, "/api/auth/validate", "", gin.H{"token": "garbage"})
	v = ValidateResponse{}
	require.NoError(t, json.Unmarshal(out.Data, &v))
	assert.False(t, v.Valid)
	assert.False(t, v.Expired)
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t)
	student := e.login(t, "student@uni.edu", "Stud3nt!pass")
	admin := e.login(t, "admin@uni.edu", "Adm1n!secret")

	code, _ := e.call(t, http.MethodGet, "/api/auth/stats", student.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = e.call(t, http.MethodPost, "/api/auth/sessions/"+admin.Subject+"/invalidate", student.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, out := e.call(t, http.MethodGet, "/api/auth/stats", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(out.Data, &stats))
	assert.Equal(t, 2, stats.RefreshRecords)
	assert.False(t, stats.Degraded)

	path := "/api/auth/sessions/" + student.Subject
	code, out = e.call(t, http.MethodGet, path, admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	var info session.Info
	require.NoError(t, json.Unmarshal(out.Data, &info))
	assert.Equal(t, session.StateAuthenticated, info.State)

	code, _ = e.call(t, http.MethodPost, path+"/invalidate", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)

	_, out = e.call(t, http.MethodGet, path, admin.AccessToken, nil)
	info = session.Info{}
	require.NoError(t, json.Unmarshal(out.Data, &info))
	assert.Equal(t, session.StateRevoked, info.State)

	code, _ = e.call(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": student.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestStoreDown_FailsClosed(t *testing.T) {
	e := newEnv(t)
	pair := e.login(t, "student@uni.edu", "Stud3nt!pass")
	e.mr.Close()

	code, _ := e.call(t, http.MethodGet, "/api/auth/me", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// logout is behind the same blacklist check, so it is rejected before
	// the handler can report the store failure
	code, out := e.call(t, http.MethodPost, "/api/auth/logout", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid or revoked token", out.Message)

	code, out = e.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "student@uni.edu", "password": "Stud3nt!pass"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, out.Success)
}

func TestStats_Degraded(t *testing.T) {
	h := NewAuthHandler(Deps{Stats: failingStats{}})
	r := gin.New()
	r.GET("/stats", h.Stats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Data StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Data.Degraded)
	assert.Zero(t, out.Data.RefreshRecords)
}

func TestPasswordRoutes(t *testing.T) {
	e := newEnv(t)
	pair := e.login(t, "student@uni.edu", "Stud3nt!pass")

	code, out := e.call(t, http.MethodPost, "/api/auth/password/strength", "", gin.H{"password": "abc"})
	require.Equal(t, http.StatusOK, code)
	var report utils.PolicyReport
	require.NoError(t, json.Unmarshal(out.Data, &report))
	assert.False(t, report.Valid)
	assert.Equal(t, "very_weak", report.Strength)

	code, out = e.call(t, http.MethodPost, "/api/auth/change-password", pair.AccessToken, gin.H{
		"current_password": "Stud3nt!pass", "new_password": "short", "confirm_password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, out.Errors)

	code, _ = e.call(t, http.MethodPost, "/api/auth/change-password", pair.AccessToken, gin.H{
		"current_password": "wrong", "new_password": "N3w!Passw0rd", "confirm_password": "N3w!Passw0rd",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = e.call(t, http.MethodPost, "/api/auth/change-password", pair.AccessToken, gin.H{
		"current_password": "Stud3nt!pass", "new_password": "N3w!Passw0rd", "confirm_password": "Mismatch!1",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.call(t, http.MethodPost, "/api/auth/change-password", pair.AccessToken, gin.H{
		"current_password": "Stud3nt!pass", "new_password": "N3w!Passw0rd", "confirm_password": "N3w!Passw0rd",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{pair.Subject}, e.accounts.changed)

	code, _ = e.call(t, http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "anyone@uni.edu"})
	assert.Equal(t, http.StatusOK, code)
	code, _ = e.call(t, http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "limited@uni.edu"})
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, _ = e.call(t, http.MethodGet, "/api/auth/verify-reset-token/"+goodResetToken, "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = e.call(t, http.MethodGet, "/api/auth/verify-reset-token/bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.call(t, http.MethodPost, "/api/auth/reset-password", "", gin.H{
		"token": goodResetToken, "new_password": "R3set!Passw0rd", "confirm_password": "R3set!Passw0rd",
	})
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.call(t, http.MethodGet, "/api/auth/verify-email/verify-ok", "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = e.call(t, http.MethodGet, "/api/auth/verify-email/stale", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTokenRoutes(t *testing.T) {
	e := newEnv(t)
	student := e.login(t, "student@uni.edu", "Stud3nt!pass")
	admin := e.login(t, "admin@uni.edu", "Adm1n!secret")

	code, out := e.call(t, http.MethodPost, "/api/auth/tokens/device", student.AccessToken, gin.H{"device_id": "ios-3f2a9c", "platform": "ios"})
	require.Equal(t, http.StatusCreated, code)
	var issued token.Issued
	require.NoError(t, json.Unmarshal(out.Data, &issued))
	assert.Equal(t, token.TypeDevice, issued.Type)

	code, out = e.call(t, http.MethodPost, "/api/auth/tokens/temporary", student.AccessToken, gin.H{
		"action": "checkin:event-42", "data": gin.H{"seat": "A7"},
	})
	require.Equal(t, http.StatusCreated, code)
	issued = token.Issued{}
	require.NoError(t, json.Unmarshal(out.Data, &issued))

	code, out = e.call(t, http.MethodPost, "/api/auth/tokens/temporary/verify", student.AccessToken, gin.H{
		"token": issued.Token, "action": "checkin:event-42",
	})
	require.Equal(t, http.StatusOK, code)
	var info TemporaryTokenInfo
	require.NoError(t, json.Unmarshal(out.Data, &info))
	assert.Equal(t, student.Subject, info.Subject)
	assert.Equal(t, "A7", info.Data["seat"])

	code, _ = e.call(t, http.MethodPost, "/api/auth/tokens/temporary/verify", student.AccessToken, gin.H{
		"token": issued.Token, "action": "checkout:event-42",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	apiKey := gin.H{"permissions": []string{"events:read"}, "expires_in_days": 30}
	code, _ = e.call(t, http.MethodPost, "/api/auth/tokens/api-key", student.AccessToken, apiKey)
	assert.Equal(t, http.StatusForbidden, code)

	code, out = e.call(t, http.MethodPost, "/api/auth/tokens/api-key", admin.AccessToken, apiKey)
	require.Equal(t, http.StatusCreated, code)
	issued = token.Issued{}
	require.NoError(t, json.Unmarshal(out.Data, &issued))
	assert.NotEmpty(t, issued.KeyID)
	assert.Equal(t, token.TypeAPIKey, issued.Type)

	code, _ = e.call(t, http.MethodPost, "/api/auth/tokens/device", "", gin.H{"device_id": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRespondError_Unknown(t *testing.T) {
	h := NewAuthHandler(Deps{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.respondError(c, errors.New("pq: relation does not exist"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "relation")
}
