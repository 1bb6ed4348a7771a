// Package auth is the session layer: a Session context tracking the current
// user via a provider state-change subscription, and an email/password
// Provider backed by the document store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/clipstack/firedata/alerts"
)

// User is the authenticated identity.
type User struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Result is the uniform outcome shape for sign-in, sign-up, and logout, so
// callers branch the same way on success and failure.
type Result struct {
	Success bool
	Message string
}

// Error is a classified auth failure with a service-prefixed code like
// "auth/wrong-password".
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode reports the service-prefixed technical code.
func (e *Error) ErrorCode() string { return e.Code }

// Provider is the identity provider: credential operations plus a
// state-change subscription delivering the current user or nil.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignUp(ctx context.Context, username, email, password string) (*User, error)
	SignOut(ctx context.Context) error

	// Token returns the current session token, refreshing it when expired.
	Token(ctx context.Context) (string, error)

	// OnStateChange registers fn for auth state changes. fn is invoked
	// immediately with the current state and again on every change. The
	// returned function unsubscribes and is idempotent.
	OnStateChange(fn func(*User)) (unsubscribe func())
}

// Session is the single source of truth for who the current user is. It
// subscribes once, for its lifetime, to provider state changes; each change
// updates the user and refreshes the session token.
type Session struct {
	provider Provider
	surface  *alerts.Surface

	mu      sync.Mutex
	user    *User
	token   string
	loading int

	unsubscribe func()
}

// NewSession creates a session bound to the provider. provider and surface
// must be non-nil.
func NewSession(provider Provider, surface *alerts.Surface) *Session {
	if provider == nil {
		panic("auth: nil provider")
	}
	if surface == nil {
		panic("auth: nil error surface")
	}
	s := &Session{provider: provider, surface: surface}
	s.unsubscribe = provider.OnStateChange(s.onStateChange)
	return s
}

// Close releases the provider subscription.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Session) onStateChange(user *User) {
	token := ""
	if user != nil {
		if t, err := s.provider.Token(context.Background()); err == nil {
			token = t
		} else {
			s.surface.Handle(err)
		}
	}

	s.mu.Lock()
	s.user = user
	s.token = token
	s.mu.Unlock()
}

// OnSignIn signs in with email and password. Provider errors are surfaced
// and folded into the result message, never propagated raw.
func (s *Session) OnSignIn(ctx context.Context, email, password string) Result {
	s.beginLoading()
	defer s.endLoading()

	user, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.surface.Handle(err)
		return Result{Success: false, Message: displayMessage(err)}
	}

	s.setUser(user)
	return Result{Success: true, Message: "Sign in was successful"}
}

// OnSignUp creates an account with a display name, email, and password.
func (s *Session) OnSignUp(ctx context.Context, username, email, password string) Result {
	s.beginLoading()
	defer s.endLoading()

	user, err := s.provider.SignUp(ctx, username, email, password)
	if err != nil {
		s.surface.Handle(err)
		return Result{Success: false, Message: displayMessage(err)}
	}

	s.setUser(user)
	return Result{Success: true, Message: "Sign up was successful"}
}

// OnLogout signs out. Local user and token state are cleared only after the
// provider call succeeds; navigation afterwards is the caller's concern.
func (s *Session) OnLogout(ctx context.Context) Result {
	s.beginLoading()
	defer s.endLoading()

	if err := s.provider.SignOut(ctx); err != nil {
		s.surface.Handle(err)
		return Result{Success: false, Message: displayMessage(err)}
	}

	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.mu.Unlock()
	return Result{Success: true, Message: "Logout was successful"}
}

func (s *Session) setUser(user *User) {
	token := ""
	if user != nil {
		if t, err := s.provider.Token(context.Background()); err == nil {
			token = t
		}
	}
	s.mu.Lock()
	s.user = user
	s.token = token
	s.mu.Unlock()
}

// User returns the current user, or nil.
func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// Token returns the current session token, or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IsLoading reports whether an auth operation is in flight.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

func (s *Session) beginLoading() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

func (s *Session) endLoading() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
}

// displayMessage prefers the human-readable part of a classified auth error
// over the raw code.
func displayMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}
