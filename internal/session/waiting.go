package session

import (
	"sort"

	"sessionrelay/pkg/types"
)

// Waiting derives the waiting queue from the store contents.
// FUNCTIONAL DISCOVERY: Never cached; every call filters and sorts a fresh
// snapshot, ordered by creation time with arrival order breaking ties
func (s *Store) Waiting() []*types.Session {
	return waitingQueue(s.All())
}

func waitingQueue(records []*types.Session) []*types.Session {
	waiting := make([]*types.Session, 0, len(records))
	for _, record := range records {
		if record.IsWaiting() {
			waiting = append(waiting, record)
		}
	}

	sort.SliceStable(waiting, func(i, j int) bool {
		a, b := waiting[i], waiting[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
	return waiting
}
