package store

import (
	"context"
	"sort"
	"sync"

	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

// MemoryStore implements ProfileStore with in-memory maps.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*profile.Profile
	links    map[string]map[string]profile.IdentityLink // deviceID -> personID -> link
	events   []profile.EnableEvent
}

var _ ProfileStore = (*MemoryStore)(nil)

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(seed ...*profile.Profile) *MemoryStore {
	s := &MemoryStore{
		profiles: make(map[string]*profile.Profile),
		links:    make(map[string]map[string]profile.IdentityLink),
	}
	for _, p := range seed {
		s.profiles[p.PrincipalID] = p.Clone()
	}
	return s
}

// Get looks up a profile by principal id.
func (s *MemoryStore) Get(_ context.Context, principalID string) (*profile.Profile, bool, error) {
	if err := validKey(principalID); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[principalID]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

// Save stores a profile if its version matches the stored one.
func (s *MemoryStore) Save(_ context.Context, p *profile.Profile) error {
	if err := validKey(p.PrincipalID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.profiles[p.PrincipalID]; ok {
		current = existing.Version
	}
	if p.Version != current {
		return ErrVersionConflict
	}
	p.Version = current + 1
	s.profiles[p.PrincipalID] = p.Clone()
	return nil
}

// DeleteAll removes every listed profile; missing ids are ignored.
func (s *MemoryStore) DeleteAll(_ context.Context, principalIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range principalIDs {
		delete(s.profiles, id)
	}
	return nil
}

// GetLinks returns the links recorded for a device ordered by person id.
func (s *MemoryStore) GetLinks(_ context.Context, deviceID string) ([]profile.IdentityLink, error) {
	if err := validKey(deviceID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]profile.IdentityLink, 0, len(s.links[deviceID]))
	for _, link := range s.links[deviceID] {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

// SaveLink records or overwrites a device/person link.
func (s *MemoryStore) SaveLink(_ context.Context, link profile.IdentityLink) error {
	if err := validLink(link); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	persons, ok := s.links[link.DeviceID]
	if !ok {
		persons = make(map[string]profile.IdentityLink)
		s.links[link.DeviceID] = persons
	}
	persons[link.PersonID] = link
	return nil
}

// DeleteLinks removes the listed links.
func (s *MemoryStore) DeleteLinks(_ context.Context, links []profile.IdentityLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range links {
		persons, ok := s.links[link.DeviceID]
		if !ok {
			continue
		}
		delete(persons, link.PersonID)
		if len(persons) == 0 {
			delete(s.links, link.DeviceID)
		}
	}
	return nil
}

// SaveEnableEvent appends an enable event.
func (s *MemoryStore) SaveEnableEvent(_ context.Context, event profile.EnableEvent) error {
	if err := validKey(event.PrincipalID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// EnableEvents returns a copy of the recorded events.
func (s *MemoryStore) EnableEvents() []profile.EnableEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]profile.EnableEvent(nil), s.events...)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
