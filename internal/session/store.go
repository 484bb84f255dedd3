// Package session provides bounded per-session conversation history.
// The orchestration core only reads a tail of it; eviction keeps each
// session capped at a fixed number of turns.
package session

import (
	"context"
	"sync"

	"github.com/quorumai/quorum/internal/models"
)

// DefaultMaxTurns is the per-session history cap.
const DefaultMaxTurns = 50

// Store is the contract the orchestration core consumes. A missing or
// empty session is not an error: Tail returns an empty slice.
type Store interface {
	// Tail returns up to k of the most recent turns, oldest first.
	Tail(ctx context.Context, sessionID string, k int) ([]models.Turn, error)
	// Append adds turns to the session, evicting the oldest beyond the cap.
	Append(ctx context.Context, sessionID string, turns ...models.Turn) error
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]models.Turn
	maxTurns int
}

// NewMemoryStore creates an in-memory store. maxTurns <= 0 uses the
// default cap.
func NewMemoryStore(maxTurns int) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &MemoryStore{
		sessions: make(map[string][]models.Turn),
		maxTurns: maxTurns,
	}
}

func (s *MemoryStore) Tail(_ context.Context, sessionID string, k int) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	if k <= 0 || len(turns) == 0 {
		return nil, nil
	}
	if len(turns) > k {
		turns = turns[len(turns)-k:]
	}
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := append(s.sessions[sessionID], turns...)
	if len(updated) > s.maxTurns {
		updated = updated[len(updated)-s.maxTurns:]
	}
	s.sessions[sessionID] = updated
	return nil
}

// Len reports the number of turns stored for a session.
func (s *MemoryStore) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}
