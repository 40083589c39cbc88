// internal/store/memory.go
//
// In-memory registry of live Pebbles games.
//
// Characteristics:
//   - Stores *Session values keyed by game ID in a map.
//   - Map access is guarded by an RWMutex; each Session carries its own mutex
//     so one engine only ever sees one caller at a time.
//   - State is lost when the process restarts.
//   - Get() on an unknown ID returns ErrNotFound.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/pebbles/internal/game"
)

var ErrNotFound = errors.New("not found")

// Session is one hosted game plus who it belongs to.
type Session struct {
	ID        string
	OwnerID   string // user ID, or anonymous cookie ID for guests
	CreatedAt time.Time

	mu     sync.Mutex
	engine *game.Engine
	// RowID is the history row of the current round; it changes on restart.
	// Guarded by mu: read and write it only inside Do.
	RowID string
}

// NewSession wraps an engine under a fresh ID.
func NewSession(e *game.Engine, ownerID string) *Session {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		RowID:     id,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
		engine:    e,
	}
}

// Do runs fn with exclusive access to the session's engine.
func (s *Session) Do(fn func(e *game.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

// State reads the engine state under the session lock.
func (s *Session) State() (game.GameState, error) {
	var st game.GameState
	err := s.Do(func(e *game.Engine) error {
		var err error
		st, err = e.State()
		return err
	})
	return st, err
}

// Store defines the persistence interface for live sessions.
type Store interface {
	// Save persists or replaces a session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete forgets a session. Unknown IDs are ignored.
	Delete(ctx context.Context, id string) error
}

type memory struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*Session)}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
