package snipe

import (
	"sync"

	"remark-bot/pkg/remark"
)

// Store holds per-message state histories keyed by message id.
//
// Histories are append-only: Record only ever appends past the snapshot
// length, so snapshots stay valid read-only views while new states arrive.
type Store struct {
	mu        sync.Mutex
	histories map[string]remark.MessageHistory
}

// NewStore creates an empty versioned message store.
func NewStore() *Store {
	return &Store{
		histories: make(map[string]remark.MessageHistory),
	}
}

// Record appends one recorded state to the history of messageID, creating the
// history when the id is not yet tracked.
func (s *Store) Record(messageID string, state remark.MessageState) {
	if messageID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.histories[messageID] = append(s.histories[messageID], state)
}

// Get returns the current history for messageID.
func (s *Store) Get(messageID string) (remark.MessageHistory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, found := s.histories[messageID]

	return history, found
}

// Snapshot returns a point-in-time copy of the outer map. Histories are shared
// with the store and must be treated as read-only by callers.
func (s *Store) Snapshot() map[string]remark.MessageHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]remark.MessageHistory, len(s.histories))
	for messageID, history := range s.histories {
		snapshot[messageID] = history
	}

	return snapshot
}

// Remove drops the history for messageID and reports whether one was present.
// Removing an absent id is a no-op.
func (s *Store) Remove(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found := s.histories[messageID]
	if found {
		delete(s.histories, messageID)
	}

	return found
}

// Len returns the number of tracked message ids.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.histories)
}

// Clear drops every tracked history.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.histories = make(map[string]remark.MessageHistory)
}
