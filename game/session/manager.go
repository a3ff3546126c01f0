package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/wricardo/guess-game/game/service"
)

// Manager stores one game session per client identifier. Identifiers are
// matched exactly: "Alice" and "alice" are different sessions.
type Manager struct {
	sessions map[string]*service.Session
	mu       sync.RWMutex

	locks   map[string]*keyLock
	locksMu sync.Mutex
}

// keyLock serializes operations on one identifier. refs counts holders and
// waiters so the entry can be dropped once nobody needs it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a new session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*service.Session),
		locks:    make(map[string]*keyLock),
	}
}

// Put stores session under id, replacing any existing one.
func (m *Manager) Put(id string, session *service.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, replaced := m.sessions[id]
	m.sessions[id] = session
	return replaced
}

// Get retrieves a session by ID
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", service.ErrSessionNotFound, id)
	}
	return session, nil
}

// Delete removes a session
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		return fmt.Errorf("%w: %s", service.ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupExpiredSessions removes sessions that haven't been accessed in the
// given duration. Sessions with an operation in progress are skipped.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	var expired []string
	for _, session := range m.List() {
		if session.LastAccessedAt().Before(cutoff) {
			expired = append(expired, session.ID)
		}
	}

	removed := 0
	for _, id := range expired {
		unlock, ok := m.tryLock(id)
		if !ok {
			continue
		}

		m.mu.Lock()
		if session, exists := m.sessions[id]; exists && session.LastAccessedAt().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
		m.mu.Unlock()
		unlock()
	}

	return removed
}

// Lock blocks until the caller holds the lock for id and returns the
// function that releases it. Different identifiers never contend.
func (m *Manager) Lock(id string) func() {
	l := m.acquire(id)
	l.mu.Lock()
	return m.releaser(id, l)
}

func (m *Manager) tryLock(id string) (func(), bool) {
	l := m.acquire(id)
	if !l.mu.TryLock() {
		m.drop(id, l)
		return nil, false
	}
	return m.releaser(id, l), true
}

func (m *Manager) acquire(id string) *keyLock {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &keyLock{}
		m.locks[id] = l
	}
	l.refs++
	return l
}

func (m *Manager) drop(id string, l *keyLock) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(m.locks, id)
	}
}

func (m *Manager) releaser(id string, l *keyLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			m.drop(id, l)
		})
	}
}

// lockCount reports how many identifiers currently have a lock entry.
func (m *Manager) lockCount() int {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	return len(m.locks)
}
