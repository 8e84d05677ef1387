package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-process Store keyed by session id.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Create implements Store.Create. An existing session with the same id is replaced.
func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = *s
	return nil
}

// Get implements Store.Get.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.findLocked(id)
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// GetMany implements Store.GetMany. Results are ordered by session id.
func (m *MemoryStore) GetMany(_ context.Context, f Filter) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out, nil
}

// Delete implements Store.Delete.
func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.findLocked(id)
	if !ok {
		return false, nil
	}
	delete(m.sessions, s.SessionID)
	return true, nil
}

// DeleteMany implements Store.DeleteMany.
func (m *MemoryStore) DeleteMany(_ context.Context, f Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for sid, s := range m.sessions {
		if f.Matches(s) {
			delete(m.sessions, sid)
			n++
		}
	}
	return n, nil
}

// Ping implements Store.Ping.
func (m *MemoryStore) Ping(_ context.Context, version int, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.findLocked(id)
	if !ok || s.Game.Version != version {
		return false, nil
	}
	s.UpdatedAt = at
	m.sessions[s.SessionID] = s
	return true, nil
}

// Count implements Store.Count.
func (m *MemoryStore) Count(_ context.Context, f Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.sessions {
		if f.Matches(s) {
			n++
		}
	}
	return n, nil
}

// DeleteInactive implements Store.DeleteInactive.
func (m *MemoryStore) DeleteInactive(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for sid, s := range m.sessions {
		if s.UpdatedAt.Before(before) {
			delete(m.sessions, sid)
			n++
		}
	}
	return n, nil
}

// findLocked prefers an exact session id match over a user id match.
// Caller must hold m.mu.
func (m *MemoryStore) findLocked(id string) (Session, bool) {
	if s, ok := m.sessions[id]; ok {
		return s, true
	}
	for _, s := range m.sessions {
		if s.matchesID(id) {
			return s, true
		}
	}
	return Session{}, false
}
