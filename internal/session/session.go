// Package session holds the upstream credential of one signed-in admin.
// Signing out is a one-way transition: once it happens every later Token call
// fails, so no further upstream request can be treated as meaningful.
package session

import (
	"net/http"
	"sync"

	"store_admin/internal/pkg/apierr"
)

// Session is read-only for everything except SignOut.
type Session struct {
	id      string
	subject string
	token   string

	mu        sync.Mutex
	signedOut bool
	reason    string
	hooks     []func(reason string)
}

func New(id, subject, token string) *Session {
	return &Session{id: id, subject: subject, token: token}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) Subject() string { return s.subject }

// Token returns the upstream bearer token, or an auth error after sign-out.
func (s *Session) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signedOut {
		return "", apierr.AuthErr(http.StatusUnauthorized)
	}
	return s.token, nil
}

// SignedOut reports whether the session has been terminated, and why.
func (s *Session) SignedOut() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signedOut, s.reason
}

// OnSignOut registers fn to run once when the session is terminated. If that
// already happened, fn runs immediately.
func (s *Session) OnSignOut(fn func(reason string)) {
	s.mu.Lock()
	if !s.signedOut {
		s.hooks = append(s.hooks, fn)
		s.mu.Unlock()
		return
	}
	reason := s.reason
	s.mu.Unlock()
	fn(reason)
}

// SignOut terminates the session. Only the first call has any effect.
func (s *Session) SignOut(reason string) {
	s.mu.Lock()
	if s.signedOut {
		s.mu.Unlock()
		return
	}
	s.signedOut = true
	s.reason = reason
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(reason)
	}
}
