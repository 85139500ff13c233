package queue

import (
	"sync"
	"time"
)

// Store is a mutex-guarded in-memory collection of job records, keyed by ID
// and ordered by insertion. All reads return copies; mutation happens only
// inside Update (or the claim path), so a record handed to a caller is a
// snapshot, never a live reference into the store.
//
// Store sizes stay small — bounded by concurrently active jobs plus
// not-yet-swept terminal records — so secondary lookups are linear scans.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string // insertion order of job IDs
}

// Stats is a point-in-time count of records by status.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Insert adds a new record. It fails with an AlreadyExistsError when the ID
// is already present.
func (s *Store) Insert(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; ok {
		return &AlreadyExistsError{ID: j.ID}
	}
	cp := j
	s.jobs[j.ID] = &cp
	s.order = append(s.order, j.ID)
	return nil
}

// Get returns a snapshot of the record, if present.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// FindByResource returns the first record (in insertion order) whose
// resource key matches. Callers keep at most one live job per resource, but
// the store does not enforce that; with multiple matches the oldest wins.
func (s *Store) FindByResource(key string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if j, ok := s.jobs[id]; ok && j.ResourceKey == key {
			return *j, true
		}
	}
	return Job{}, false
}

// FindLiveByResource returns the first non-terminal (pending or processing)
// record for the resource key. Producers use it to refuse double-queuing a
// resource that already has work in flight.
func (s *Store) FindLiveByResource(key string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if j, ok := s.jobs[id]; ok && j.ResourceKey == key && !j.Status.IsTerminal() {
			return *j, true
		}
	}
	return Job{}, false
}

// ClaimNextPending atomically claims the oldest pending job whose backoff
// window has elapsed: it flips the record to processing, stamps ProcessedAt,
// and returns a snapshot. The pending→processing transition is the claim
// marker, so two workers racing on the same record cannot both win.
func (s *Store) ClaimNextPending(now time.Time) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		j, ok := s.jobs[id]
		if !ok || j.Status != StatusPending {
			continue
		}
		if !j.NextEligibleAt.IsZero() && j.NextEligibleAt.After(now) {
			continue
		}
		j.Status = StatusProcessing
		j.ProcessedAt = now
		return *j, true
	}
	return Job{}, false
}

// Update applies mutate to the record under the store lock. Returns false
// when the record no longer exists (e.g. swept while a worker held a
// snapshot).
func (s *Store) Update(id string, mutate func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	mutate(j)
	return true
}

// Delete removes a record.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	s.compactOrder()
	return true
}

// SweepExpired removes every record whose ExpiresAt is at or before now and
// returns the number removed. Records with a zero ExpiresAt never expire.
// Processing records are skipped even when expired: a worker still owns them.
func (s *Store) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, j := range s.jobs {
		if j.ExpiresAt.IsZero() || j.ExpiresAt.After(now) {
			continue
		}
		if j.Status == StatusProcessing {
			continue
		}
		delete(s.jobs, id)
		removed++
	}
	if removed > 0 {
		s.compactOrder()
	}
	return removed
}

// Stats counts records by status.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.jobs)}
	for _, j := range s.jobs {
		switch j.Status {
		case StatusPending:
			st.Pending++
		case StatusProcessing:
			st.Processing++
		case StatusCompleted:
			st.Completed++
		case StatusFailed:
			st.Failed++
		}
	}
	return st
}

// compactOrder drops order entries whose records are gone. Caller holds the
// write lock.
func (s *Store) compactOrder() {
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.jobs[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
}
