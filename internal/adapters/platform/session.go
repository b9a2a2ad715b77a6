package platform

import (
	"context"
	"sync"
)

// StaticSession is a session gate whose user is set by configuration or by
// the control API rather than looked up remotely.
type StaticSession struct {
	mu     sync.RWMutex
	userID string
}

// NewStaticSession creates a session signed in as userID; empty means signed out.
func NewStaticSession(userID string) *StaticSession {
	return &StaticSession{userID: userID}
}

// CurrentUserID returns the configured user, or ErrNoSession.
func (s *StaticSession) CurrentUserID(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID == "" {
		return "", ErrNoSession
	}
	return s.userID, nil
}

// SignIn switches the session to userID.
func (s *StaticSession) SignIn(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// SignOut clears the session.
func (s *StaticSession) SignOut() {
	s.SignIn("")
}
