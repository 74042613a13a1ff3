package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"neembleeat/internal/models"
)

// DefaultSkew is how long before expiry the access token is refreshed
const DefaultSkew = 30 * time.Second

// ErrSignedOut is returned when a refresh is needed but nobody is signed in
var ErrSignedOut = errors.New("auth: not signed in")

// Backend is the set of auth endpoints the session talks to
type Backend interface {
	Login(ctx context.Context, creds models.Credentials) (*models.AuthToken, error)
	Register(ctx context.Context, creds models.Credentials) (*models.AuthToken, error)
	Refresh(ctx context.Context) (*models.AuthToken, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
}

// Session holds the access token in memory and keeps it fresh. The
// refresh token lives in the HTTP client's cookie jar.
type Session struct {
	backend Backend
	skew    time.Duration
	now     func() time.Time
	log     logrus.FieldLogger

	refreshes singleflight.Group

	mu    sync.RWMutex
	token string
	user  *models.User
}

// Option configures a Session
type Option func(*Session)

// WithSkew sets how early the token is refreshed
func WithSkew(d time.Duration) Option {
	return func(s *Session) { s.skew = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// NewSession creates a signed-out session
func NewSession(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		skew:    DefaultSkew,
		now:     time.Now,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login signs in with credentials
func (s *Session) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	tok, err := s.backend.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	s.set(tok)
	s.log.WithField("email", creds.Email).Info("signed in")
	return s.User(), nil
}

// Register creates an account and signs in with it
func (s *Session) Register(ctx context.Context, creds models.Credentials) (*models.User, error) {
	tok, err := s.backend.Register(ctx, creds)
	if err != nil {
		return nil, err
	}
	s.set(tok)
	return s.User(), nil
}

// Me loads the signed-in user from the backend
func (s *Session) Me(ctx context.Context) (*models.User, error) {
	u, err := s.backend.Me(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	return u, nil
}

// SignOut forgets the token locally and then tells the backend. The
// local state is cleared even when the backend call fails.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if err := s.backend.Logout(ctx); err != nil {
		return err
	}
	s.log.Info("signed out")
	return nil
}

// SignedIn reports whether an access token is held
func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// User returns the signed-in user, if known
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Token returns the access token, refreshing it first when it expires
// within the skew window. A signed-out session returns an empty token.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return "", nil
	}
	if !s.expiring(token) {
		return token, nil
	}

	v, err, _ := s.refreshes.Do("refresh", func() (interface{}, error) {
		s.mu.RLock()
		current := s.token
		s.mu.RUnlock()
		if current != token && current != "" && !s.expiring(current) {
			return current, nil
		}

		tok, err := s.backend.Refresh(ctx)
		if err != nil {
			return "", err
		}
		if !s.SignedIn() {
			return "", ErrSignedOut
		}
		s.set(tok)
		return tok.AccessToken, nil
	})
	if err != nil {
		s.log.WithError(err).Warn("token refresh failed")
		return "", err
	}
	return v.(string), nil
}

func (s *Session) set(tok *models.AuthToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok.AccessToken
	if tok.User != nil {
		s.user = tok.User
	}
}

// expiring reports whether token's exp claim falls within the skew
// window. Tokens that cannot be parsed or carry no exp are used as is
// and left to the backend to reject.
func (s *Session) expiring(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}
	return !claims.VerifyExpiresAt(s.now().Add(s.skew).Unix(), false)
}
