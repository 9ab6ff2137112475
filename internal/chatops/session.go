package chatops

import (
	"sync"
	"time"

	"github.com/arenadesk/arenadesk/internal/clock"
)

// Steps of the interactive create-event flow.
const (
	stepName   = "name"
	stepFormat = "format"
	stepStart  = "start"
	stepSlots  = "slots"
)

// session accumulates operator answers across the create-event prompts.
// Each session is keyed by chat and expires after a quiet period instead
// of living in memory forever.
type session struct {
	Step      string
	Name      string
	Format    string
	StartAt   time.Time
	ExpiresAt time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
	ttl      time.Duration
	clock    clock.Clock
}

func newSessionStore(ttl time.Duration, c clock.Clock) *sessionStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &sessionStore{
		sessions: make(map[int64]*session),
		ttl:      ttl,
		clock:    c,
	}
}

func (s *sessionStore) begin(chatID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &session{
		Step:      stepName,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}
	s.sessions[chatID] = sess
	return sess
}

// get returns the live session for a chat, reaping it if expired.
func (s *sessionStore) get(chatID int64) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	if !ok {
		return nil, false
	}

	if s.clock.Now().After(sess.ExpiresAt) {
		delete(s.sessions, chatID)
		return nil, false
	}

	// sliding expiry: every answer buys more time
	sess.ExpiresAt = s.clock.Now().Add(s.ttl)
	return sess, true
}

func (s *sessionStore) end(chatID int64) {
	s.mu.Lock()
	delete(s.sessions, chatID)
	s.mu.Unlock()
}
