package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sessions maps opaque cookie tokens to user names. Entries expire after
// ttl; nothing survives a restart.
type Sessions struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	byToken map[string]session
}

type session struct {
	user    string
	expires time.Time
}

// NewSessions creates an empty session table.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl:     ttl,
		now:     time.Now,
		byToken: make(map[string]session),
	}
}

// Create starts a session for user and returns its token and expiry.
func (s *Sessions) Create(user string) (string, time.Time) {
	token := uuid.NewString()
	expires := s.now().Add(s.ttl)

	s.mu.Lock()
	s.byToken[token] = session{user: user, expires: expires}
	s.mu.Unlock()
	return token, expires
}

// Lookup returns the user behind token if the session is still live.
func (s *Sessions) Lookup(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	if !ok {
		return "", false
	}
	if !s.now().Before(sess.expires) {
		delete(s.byToken, token)
		return "", false
	}
	return sess.user, true
}

// Delete ends the session behind token, if any.
func (s *Sessions) Delete(token string) {
	s.mu.Lock()
	delete(s.byToken, token)
	s.mu.Unlock()
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, sess := range s.byToken {
		if !now.Before(sess.expires) {
			delete(s.byToken, token)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}
