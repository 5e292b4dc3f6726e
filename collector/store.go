package collector

import (
	"sync/atomic"

	"proclens/models"
)

// Store holds the latest snapshot. The collector is the only writer;
// any number of readers may Load concurrently and always get a complete
// snapshot, possibly one tick old.
type Store struct {
	current atomic.Pointer[models.Snapshot]
}

func NewStore() *Store {
	return &Store{}
}

// Load returns the latest snapshot, or an empty one before the first tick.
// Callers must not modify it.
func (s *Store) Load() *models.Snapshot {
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return &models.Snapshot{}
}

// Publish replaces the current snapshot
func (s *Store) Publish(snap *models.Snapshot) {
	s.current.Store(snap)
}
