package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrSessionNotFound = errors.New("session not found")
)

type entry struct {
	state    []byte
	lastSeen time.Time
}

// Service keeps per-conversation dialog state for transports that do not
// round-trip session attributes. Entries are stored encoded so callers never
// share a *dialog.Session across conversations.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]entry
	idle     time.Duration
	now      func() time.Time
}

// NewService bootstraps the in-memory registry; idle <= 0 disables eviction.
func NewService(idle time.Duration) *Service {
	return &Service{
		sessions: make(map[string]entry),
		idle:     idle,
		now:      time.Now,
	}
}

// Load returns the stored state of a conversation.
func (s *Service) Load(_ context.Context, sessionID string) (*dialog.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || s.expired(e) {
		return nil, ErrSessionNotFound
	}

	var state dialog.Session
	if err := json.Unmarshal(e.state, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Save replaces the stored state of a conversation.
func (s *Service) Save(_ context.Context, sessionID string, state *dialog.Session) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[sessionID] = entry{state: data, lastSeen: s.now()}
	s.mu.Unlock()
	return nil
}

// End discards a conversation.
func (s *Service) End(_ context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Evict drops idle conversations and returns how many were removed.
func (s *Service) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run evicts idle conversations every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if s.idle <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Evict(); n > 0 {
				log.Debug().Str("component", "session").Int("evicted", n).Msg("idle sessions evicted")
			}
		}
	}
}

func (s *Service) expired(e entry) bool {
	return s.idle > 0 && s.now().Sub(e.lastSeen) > s.idle
}
