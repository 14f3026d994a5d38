package session

import (
	"sync"

	"sessionrelay/pkg/types"
)

// Store is the in-memory session registry keyed by session ID
// ARCHITECTURAL DISCOVERY: Records are copied on the way in and on the way
// out so no caller ever holds a pointer into the map
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	nextSeq  uint64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*types.Session),
	}
}

// Put inserts or wholesale-replaces the record with the same ID.
// A record without an arrival sequence is a new creation and receives the
// next one; a record carrying a sequence keeps it.
func (s *Store) Put(record *types.Session) {
	if record == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := record.Clone()
	if stored.Seq == 0 {
		s.nextSeq++
		stored.Seq = s.nextSeq
	}
	s.sessions[stored.ID] = stored
}

// Get returns a copy of the record for id
func (s *Store) Get(id string) (*types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// All returns copies of every record in unspecified order
func (s *Store) All() []*types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*types.Session, 0, len(s.sessions))
	for _, record := range s.sessions {
		result = append(result, record.Clone())
	}
	return result
}

// Len returns the number of records, completed ones included
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
