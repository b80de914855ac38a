package session

import (
	"fmt"
	"sync"

	"github.com/sqlchat/sqlchat/internal/observability"
)

// ErrNotFound is returned when a session id is unknown, usually because the
// session was closed or the server restarted.
var ErrNotFound = fmt.Errorf("session not found")

// ErrLimitReached is returned when the configured session cap is hit.
var ErrLimitReached = fmt.Errorf("session limit reached")

// Manager tracks live sessions by id. Sessions are independent; the map
// mutex only guards membership.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	limit    int
}

// NewManager creates a manager. A limit of zero means unbounded.
func NewManager(limit int) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		limit:    limit,
	}
}

func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 && len(m.sessions) >= m.limit {
		return ErrLimitReached
	}
	m.sessions[s.ID] = s
	observability.SetActiveSessions(len(m.sessions))
	return nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove drops the session and closes its database handle.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	observability.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return s.Close()
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll shuts every session down; used at server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	observability.SetActiveSessions(0)
	m.mu.Unlock()
	for _, s := range sessions {
		_ = s.Close()
	}
}
