package main

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/grubwheel/grubwheel/pkg/db"
	"github.com/grubwheel/grubwheel/pkg/session"
)

// SessionManager tracks live sessions by their uuid.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	store        *db.Service
	fetcher      session.VenueFetcher
	spinDuration time.Duration
}

// NewSessionManager creates an empty manager.
func NewSessionManager(store *db.Service, fetcher session.VenueFetcher, spinDuration time.Duration) *SessionManager {
	return &SessionManager{
		sessions:     make(map[string]*session.Session),
		store:        store,
		fetcher:      fetcher,
		spinDuration: spinDuration,
	}
}

// Create builds a new session seeded from the current time and restores any
// persisted location state into it.
func (m *SessionManager) Create() *session.Session {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := session.New(m.store, m.fetcher, rng, m.spinDuration)

	// A broken cache just means the session starts empty
	if _, err := s.RestoreFromCache(); err != nil {
		log.Printf("Failed to restore session %s from cache: %v", s.ID(), err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

// Get returns the session for an id, or nil.
func (m *SessionManager) Get(id string) *session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Remove closes and drops a session.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	s := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if s != nil {
		s.Close()
	}
}
