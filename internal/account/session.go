package account

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sync"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/cloud"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/config"
)

// Authenticator is the part of the cloud client a Session needs.
type Authenticator interface {
	Zone(ctx context.Context, region string) (cloud.Zone, error)
	Login(ctx context.Context, auth cloud.Endpoint, req cloud.LoginRequest) (cloud.LoginResult, error)
}

// Logger is the logging interface used by Session.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Session owns the bearer token for one account.
//
// Thread Safety:
//   - EnsureValid calls are serialised; readers never block on a login.
type Session struct {
	api   Authenticator
	store Store

	region      string
	countryCode string
	email       string
	passwordMD5 string
	installID   string

	// loginMu serialises EnsureValid.
	loginMu sync.Mutex

	mu         sync.RWMutex
	token      *Token
	lastLogin  time.Time
	zone       *cloud.Zone
	persisted  *Persisted
	authFailed bool
	onRefresh  func(*Token, time.Time)

	now    func() time.Time
	logger Logger
}

// NewSession creates a Session, loading or creating the install id and
// restoring any persisted login.
func NewSession(ctx context.Context, api Authenticator, store Store, cfg config.AccountConfig) (*Session, error) {
	s := &Session{
		api:         api,
		store:       store,
		region:      cfg.Region,
		countryCode: cfg.CountryCode,
		email:       cfg.Email,
		passwordMD5: HashPassword(cfg.Password),
		now:         time.Now,
		logger:      noopLogger{},
	}

	id, ok, err := store.LoadInstallID(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading install id: %w", err)
	}
	if !ok {
		id = NewInstallID(s.now())
		if err := store.SaveInstallID(ctx, id); err != nil {
			return nil, fmt.Errorf("saving install id: %w", err)
		}
	}
	s.installID = id

	auth, ok, err := store.LoadAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading auth: %w", err)
	}
	if ok && auth.Token != "" {
		s.token = &Token{Value: auth.Token, ExpiresAt: auth.ExpiresAt, Profile: auth.Profile}
		s.lastLogin = auth.LastLogin
		s.persisted = &auth
	}

	return s, nil
}

// SetLogger sets the logger.
func (s *Session) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetOnRefresh registers a callback run after every successful login.
func (s *Session) SetOnRefresh(fn func(token *Token, lastLogin time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefresh = fn
}

// EnsureValid makes sure a fresh token is held. Without force it returns
// immediately, with no network I/O, while the current token is not stale.
//
// On failure the previous token is kept. Errors wrap cloud.ErrAuth or
// cloud.ErrConnectivity.
func (s *Session) EnsureValid(ctx context.Context, force bool) error {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	if !force {
		if tok, ok := s.CurrentToken(); ok && !tok.Stale(s.now()) {
			return nil
		}
	}

	zone, err := s.Zone(ctx)
	if err != nil {
		return err
	}

	res, err := s.api.Login(ctx, zone.Auth, cloud.LoginRequest{
		CountryCode: s.countryCode,
		Email:       s.email,
		PasswordMD5: s.passwordMD5,
		InstallID:   s.installID,
	})
	if err != nil {
		if errors.Is(err, cloud.ErrAuth) {
			s.mu.Lock()
			s.authFailed = true
			s.mu.Unlock()
		}
		return err
	}

	now := s.now()
	tok := &Token{Value: res.Token, ExpiresAt: res.ExpiresAt, Profile: res.Profile}
	if tok.Profile == nil {
		tok.Profile = map[string]any{}
	}

	s.mu.Lock()
	s.token = tok
	s.lastLogin = now
	s.authFailed = false
	callback := s.onRefresh
	logger := s.logger
	s.mu.Unlock()

	logger.Info("cloud login succeeded", "expires_at", tok.Expiry().UTC(), "forced", force)

	if err := s.persist(ctx, tok, now); err != nil {
		// The new token is usable even if it could not be saved.
		logger.Warn("persisting login failed", "error", err)
	}

	if callback != nil {
		callback(tok, now)
	}
	return nil
}

// persist writes the login state when any persisted field changed.
func (s *Session) persist(ctx context.Context, tok *Token, lastLogin time.Time) error {
	next := Persisted{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		LastLogin: lastLogin,
		Profile:   maps.Clone(tok.Profile),
	}

	s.mu.RLock()
	prev := s.persisted
	s.mu.RUnlock()

	if prev != nil &&
		prev.Token == next.Token &&
		prev.ExpiresAt == next.ExpiresAt &&
		prev.LastLogin.Equal(next.LastLogin) &&
		reflect.DeepEqual(prev.Profile, next.Profile) {
		return nil
	}

	if err := s.store.SaveAuth(ctx, next); err != nil {
		return err
	}

	s.mu.Lock()
	s.persisted = &next
	s.mu.Unlock()
	return nil
}

// CurrentToken returns the held token, if any.
func (s *Session) CurrentToken() (*Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != nil
}

// LastLogin returns the time of the last successful login.
func (s *Session) LastLogin() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLogin
}

// AuthFailed reports whether the most recent login was rejected.
func (s *Session) AuthFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authFailed
}

// Email returns the account email.
func (s *Session) Email() string {
	return s.email
}

// InstallID returns the app install id sent with logins.
func (s *Session) InstallID() string {
	return s.installID
}

// Zone returns the zone for the configured region, resolving and caching
// it on first use.
func (s *Session) Zone(ctx context.Context) (cloud.Zone, error) {
	s.mu.RLock()
	cached := s.zone
	s.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	zone, ok, err := s.store.LoadZone(ctx, s.region)
	if err != nil {
		return cloud.Zone{}, fmt.Errorf("loading zone: %w", err)
	}
	if !ok {
		zone, err = s.api.Zone(ctx, s.region)
		if err != nil {
			return cloud.Zone{}, err
		}
		zone.Region = s.region
		if err := s.store.SaveZone(ctx, zone); err != nil {
			s.logger.Warn("persisting zone failed", "region", s.region, "error", err)
		}
	}

	s.mu.Lock()
	s.zone = &zone
	s.mu.Unlock()
	return zone, nil
}
