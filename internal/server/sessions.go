package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fleet-dashboard/internal/viewmodel"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// SessionCookie names the cookie holding the session id.
const SessionCookie = "fleet_session"

type session struct {
	state viewmodel.State
	seen  time.Time
}

// Sessions keeps each browser session's dashboard selections in memory.
// Every operation holds the store lock, so reductions on one session are
// serialized.
type Sessions struct {
	mu     sync.Mutex
	states map[string]*session
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewSessions(ttl time.Duration, log zerolog.Logger) *Sessions {
	return &Sessions{
		states: make(map[string]*session),
		ttl:    ttl,
		now:    time.Now,
		log:    log.With().Str("component", "sessions").Logger(),
	}
}

// Get returns the state of id, or a fresh state for an unknown session.
func (s *Sessions) Get(id string) viewmodel.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id).state
}

// Update replaces the state of id with fn's result. The state is kept
// unchanged when fn fails.
func (s *Sessions) Update(id string, fn func(viewmodel.State) (viewmodel.State, error)) (viewmodel.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(id)
	next, err := fn(sess.state)
	if err != nil {
		return sess.state, err
	}
	sess.state = next
	return next, nil
}

func (s *Sessions) get(id string) *session {
	sess, ok := s.states[id]
	if !ok {
		sess = &session{state: viewmodel.NewState()}
		s.states[id] = sess
	}
	sess.seen = s.now()
	return sess
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were dropped.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	dropped := 0
	for id, sess := range s.states {
		if sess.seen.Before(cutoff) {
			delete(s.states, id)
			dropped++
		}
	}
	return dropped
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Start sweeps idle sessions every interval until ctx is cancelled.
func (s *Sessions) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug().Int("dropped", n).Int("active", s.Len()).Msg("idle sessions dropped")
			}
		}
	}
}

// sessionID returns the caller's session id, issuing a new cookie when the
// request carries none or a malformed one.
func sessionID(c echo.Context) string {
	if ck, err := c.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(ck.Value); err == nil {
			return ck.Value
		}
	}
	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
