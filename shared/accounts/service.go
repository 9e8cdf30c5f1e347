package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models/auth"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
	"github.com/tvloc02/EventVer1-sub001/shared/session"
	"github.com/tvloc02/EventVer1-sub001/shared/token"
	utils "github.com/tvloc02/EventVer1-sub001/shared/utils/auth"
)

const (
	DefaultLockoutMaxFailures = 5
	DefaultLockoutWindow      = 15 * time.Minute
	DefaultResetMaxAttempts   = 3
	DefaultResetWindow        = time.Hour

	backgroundTimeout = 30 * time.Second
)

// dummyHash is compared against when the email is unknown so that a miss
// costs the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	h, _ := utils.HashPassword("eventhub-unknown-account")
	return h
})

// Mailer delivers the links of the reset and verification flows and the
// password-changed notice.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, to, name, link string) error
	SendVerificationEmail(ctx context.Context, to, name, link string) error
	SendPasswordChangedEmail(ctx context.Context, to, name string, at time.Time) error
}

// Invalidator ends a subject's session.
type Invalidator interface {
	ForceInvalidate(ctx context.Context, subject string) error
}

type Config struct {
	Store  Store
	Issuer *token.Issuer
	Policy utils.PasswordPolicy
	Mailer Mailer
	Logger logging.Logger
	Events session.EventSink

	// FrontendURL prefixes the links sent by email.
	FrontendURL string

	LockoutMaxFailures int
	LockoutWindow      time.Duration
	ResetMaxAttempts   int
	ResetWindow        time.Duration

	Now func() time.Time
}

// Service implements session.Authenticator and the password flows.
type Service struct {
	store    Store
	issuer   *token.Issuer
	policy   utils.PasswordPolicy
	mailer   Mailer
	log      logging.Logger
	events   session.EventSink
	sessions Invalidator

	frontendURL string
	lockoutMax  int
	lockoutWin  time.Duration
	resetMax    int
	resetWin    time.Duration
	now         func() time.Time

	pending sync.WaitGroup
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Issuer == nil {
		return nil, errors.New("accounts: store and issuer are required")
	}
	s := &Service{
		store:       cfg.Store,
		issuer:      cfg.Issuer,
		policy:      cfg.Policy,
		mailer:      cfg.Mailer,
		log:         cfg.Logger,
		events:      cfg.Events,
		frontendURL: cfg.FrontendURL,
		lockoutMax:  cfg.LockoutMaxFailures,
		lockoutWin:  cfg.LockoutWindow,
		resetMax:    cfg.ResetMaxAttempts,
		resetWin:    cfg.ResetWindow,
		now:         cfg.Now,
	}
	if s.policy == nil {
		s.policy = utils.NewDefaultPolicy()
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	if s.lockoutMax <= 0 {
		s.lockoutMax = DefaultLockoutMaxFailures
	}
	if s.lockoutWin <= 0 {
		s.lockoutWin = DefaultLockoutWindow
	}
	if s.resetMax <= 0 {
		s.resetMax = DefaultResetMaxAttempts
	}
	if s.resetWin <= 0 {
		s.resetWin = DefaultResetWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Wait blocks until background work started by the Service, such as reset
// mail delivery, has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// background runs fn detached from the request, bounded by backgroundTimeout.
func (s *Service) background(ctx context.Context, fn func(context.Context)) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// SetSessions wires the session manager after both are built; the manager
// needs the Service as its Authenticator first.
func (s *Service) SetSessions(inv Invalidator) {
	s.sessions = inv
}

// Authenticate checks credentials, applies the lockout and records the
// attempt. Unknown email and wrong password give the same error.
func (s *Service) Authenticate(ctx context.Context, creds session.Credentials) (*session.Identity, error) {
	email := utils.NormalizeEmail(creds.Email)
	now := s.now().UTC()
	attempt := &auth.LoginAttempt{
		Email:     email,
		IPAddress: creds.Device.IP,
		UserAgent: creds.Device.UserAgent,
		CreatedAt: now,
	}

	user, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		utils.CheckPasswordHash(creds.Password, dummyHash())
		s.recordAttempt(ctx, attempt, auth.FailureUserNotFound)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	since := now.Add(-s.lockoutWin)
	if user.LastLoginAt != nil && user.LastLoginAt.After(since) {
		since = *user.LastLoginAt
	}
	failures, err := s.store.CountFailedLogins(ctx, email, since)
	if err != nil {
		return nil, err
	}
	if failures >= int64(s.lockoutMax) {
		s.recordAttempt(ctx, attempt, auth.FailureAccountLocked)
		return nil, ErrAccountLocked
	}

	if !utils.CheckPasswordHash(creds.Password, user.Password) {
		s.recordAttempt(ctx, attempt, auth.FailureWrongPassword)
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive() {
		s.recordAttempt(ctx, attempt, auth.FailureAccountInactive)
		return nil, ErrAccountInactive
	}

	attempt.Successful = true
	s.recordAttempt(ctx, attempt, "")
	if err := s.store.TouchLogin(ctx, user.ID.String(), now); err != nil {
		s.log.Warn(ctx, "failed to update last login", "subject", user.ID.String(), "error", err)
	}
	return identity(user), nil
}

// Lookup reloads a subject for a token refresh. Missing or inactive accounts
// are session.ErrUnknownSubject.
func (s *Service) Lookup(ctx context.Context, subject string) (*session.Identity, error) {
	user, err := s.store.FindByID(ctx, subject)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", session.ErrUnknownSubject, subject)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("%w: %s is %s", session.ErrUnknownSubject, subject, user.Status)
	}
	return identity(user), nil
}

// Profile returns the account behind subject.
func (s *Service) Profile(ctx context.Context, subject string) (*models.User, error) {
	return s.store.FindByID(ctx, subject)
}

// EvaluatePassword runs the password policy.
func (s *Service) EvaluatePassword(password string, pc utils.PolicyContext) utils.PolicyReport {
	return s.policy.Evaluate(password, pc)
}

// Register creates an ACTIVE account after checking the password policy.
func (s *Service) Register(ctx context.Context, u *models.User, password string) error {
	if err := utils.ValidateEmail(u.Email); err != nil {
		return err
	}
	u.Email = utils.NormalizeEmail(u.Email)

	report := s.policy.Evaluate(password, policyContext(u))
	if !report.Valid {
		return &PolicyError{Report: report}
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hash
	if u.Role == "" {
		u.Role = models.RoleStudent
	}
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	return s.store.Create(ctx, u)
}

func (s *Service) recordAttempt(ctx context.Context, a *auth.LoginAttempt, failure string) {
	a.FailureType = failure
	if err := s.store.RecordLoginAttempt(ctx, a); err != nil {
		s.log.Warn(ctx, "failed to record login attempt", "email", a.Email, "error", err)
	}
}

func (s *Service) link(path, raw string) string {
	return s.frontendURL + path + "?token=" + url.QueryEscape(raw)
}

func (s *Service) emit(ctx context.Context, event, subject string, device token.DeviceInfo, err error) {
	if s.events == nil {
		return
	}
	ev := session.Event{
		Type:    event,
		Subject: subject,
		Success: err == nil,
		Device:  device,
		At:      s.now().UTC(),
	}
	if err != nil {
		ev.Reason = err.Error()
	}
	s.events.Record(ctx, ev)
}

func identity(u *models.User) *session.Identity {
	return &session.Identity{
		Subject: u.ID.String(),
		Claims: map[string]any{
			"email":          u.Email,
			"role":           u.Role,
			"name":           u.FullName(),
			"email_verified": u.EmailVerified,
		},
	}
}

func policyContext(u *models.User) utils.PolicyContext {
	return utils.PolicyContext{Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}
