package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docdash/internal/extraction"
	"docdash/internal/logger"
)

const DefaultSessionTTL = 30 * time.Minute

// session is one dashboard extraction: a controller owned by a single UI
// view, addressed by a random id.
type session struct {
	id         string
	controller *extraction.AsyncController
	createdAt  time.Time
	lastSeen   time.Time
}

type sessionStore struct {
	ttl           time.Duration
	newController func() *extraction.AsyncController
	now           func() time.Time
	log           zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore(ttl time.Duration, newController func() *extraction.AsyncController) *sessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionStore{
		ttl:           ttl,
		newController: newController,
		now:           time.Now,
		log:           logger.WithComponent("sessions"),
		sessions:      make(map[string]*session),
	}
}

func (s *sessionStore) create() *session {
	now := s.now()
	sess := &session{
		id:         uuid.NewString(),
		controller: s.newController(),
		createdAt:  now,
		lastSeen:   now,
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	log := logger.WithSession(s.log, sess.id)
	log.Debug().Msg("Session created")
	return sess
}

// get returns the session and marks it as used.
func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if ok {
		sess.lastSeen = s.now()
	}
	return sess, ok
}

func (s *sessionStore) remove(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.controller.Close()
	}
	return ok
}

// evict closes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *sessionStore) evict() int {
	cutoff := s.now().Add(-s.ttl)

	var expired []*session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.controller.Close()
		log := logger.WithSession(s.log, sess.id)
		log.Debug().Msg("Session expired")
	}
	return len(expired)
}

func (s *sessionStore) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.controller.Close()
	}
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// run evicts expired sessions until ctx is done.
func (s *sessionStore) run(ctx context.Context) {
	ticker := time.NewTicker(max(s.ttl/4, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.evict(); n > 0 {
				s.log.Info().Int("count", n).Msg("Evicted idle sessions")
			}
		}
	}
}
