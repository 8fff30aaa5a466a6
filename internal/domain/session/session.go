// Package session holds the identity a cart and checkout act on behalf of.
//
// A Session is passed explicitly to the components that need it. Components
// that react to authentication changes register callbacks with OnSignIn and
// OnSignOut instead of polling.
package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// ErrSignedOut is returned by Token when no user is signed in.
var ErrSignedOut = errors.New("not signed in")

// User is the signed-in identity.
type User struct {
	ID    string
	Email string
	Name  string
}

// TokenSource yields a bearer token for backend calls. Implementations may
// refresh on every call; callers must not cache the result.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Session is safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	user   *User
	tokens TokenSource

	cbMu      sync.Mutex
	onSignIn  []func(ctx context.Context, u User)
	onSignOut []func(ctx context.Context)
}

var _ TokenSource = (*Session)(nil)

// New returns a signed-out session.
func New() *Session {
	return &Session{}
}

// OnSignIn registers fn to run after a user signs in. Callbacks run
// synchronously in registration order on the goroutine calling SignIn.
func (s *Session) OnSignIn(fn func(ctx context.Context, u User)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onSignIn = append(s.onSignIn, fn)
}

// OnSignOut registers fn to run after the user signs out.
func (s *Session) OnSignOut(fn func(ctx context.Context)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onSignOut = append(s.onSignOut, fn)
}

// SignIn sets the current user and token source. Sign-in callbacks fire only
// when the identity changes; re-signing the same user just swaps the token
// source. It reports whether callbacks fired.
func (s *Session) SignIn(ctx context.Context, u User, tokens TokenSource) bool {
	s.mu.Lock()
	changed := s.user == nil || s.user.ID != u.ID
	s.user = &u
	s.tokens = tokens
	s.mu.Unlock()

	if !changed {
		return false
	}

	s.cbMu.Lock()
	callbacks := append([]func(context.Context, User){}, s.onSignIn...)
	s.cbMu.Unlock()

	for _, fn := range callbacks {
		fn(ctx, u)
	}
	return true
}

// SignOut clears the user. It is a no-op when nobody is signed in.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	wasSignedIn := s.user != nil
	s.user = nil
	s.tokens = nil
	s.mu.Unlock()

	if !wasSignedIn {
		return
	}

	s.cbMu.Lock()
	callbacks := append([]func(context.Context){}, s.onSignOut...)
	s.cbMu.Unlock()

	for _, fn := range callbacks {
		fn(ctx)
	}
}

// User returns the signed-in user.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Token asks the current token source for a fresh token.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	tokens := s.tokens
	s.mu.RUnlock()

	if tokens == nil {
		return "", ErrSignedOut
	}
	tok, err := tokens.Token(ctx)
	if err != nil {
		return "", errors.Wrap(err, "get token")
	}
	return tok, nil
}
