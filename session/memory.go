package session

import (
	"sync"

	"github.com/clemsonciti/slrun"
)

// MemStore is an in-memory slrun.SessionStore. It exists so tests can
// drive the monitor loop and registry without touching the filesystem.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*slrun.JobSession
}

func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]*slrun.JobSession)}
}

func (m *MemStore) Save(s *slrun.JobSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.JobID] = cloneSession(s)
	return nil
}

func (m *MemStore) Load(jobID string) (*slrun.JobSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[jobID]
	if !ok {
		return nil, slrun.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *MemStore) List() ([]*slrun.JobSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*slrun.JobSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, cloneSession(s))
	}
	return out, nil
}

func (m *MemStore) Delete(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, jobID)
	return nil
}

func cloneSession(s *slrun.JobSession) *slrun.JobSession {
	cp := *s
	cp.Command = append([]string(nil), s.Command...)
	if s.DetachedAt != nil {
		t := *s.DetachedAt
		cp.DetachedAt = &t
	}
	return &cp
}
