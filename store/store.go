// Package store holds the decoded records of one database in memory.
//
// The append log is the source of truth; this store is the queryable form
// rebuilt from it. Deletes are tombstones so that the graph layer can keep
// deleted nodes navigable, and records with an expiry stay present until a
// compacting rebuild drops them.
package store

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/engram/record"
)

// Store is an in-memory record map with tombstone and expiry tracking.
// It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	records    map[uint64]record.Record
	tombstones *roaring64.Bitmap

	// expiries tracks the ExpiresAt of live records that carry one, so
	// counting never scans records without a TTL.
	expiries map[uint64]int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records:    make(map[uint64]record.Record),
		tombstones: roaring64.New(),
		expiries:   make(map[uint64]int64),
	}
}

// Put inserts or replaces the record under its ID. Replacing a tombstoned
// id revives it.
func (s *Store) Put(rec record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec
	s.tombstones.Remove(rec.ID)

	if rec.ExpiresAt != 0 {
		s.expiries[rec.ID] = rec.ExpiresAt
	} else {
		delete(s.expiries, rec.ID)
	}
}

// Get retrieves the record for id regardless of tombstone or expiry state.
func (s *Store) Get(id uint64) (record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	return rec, ok
}

// GetLive retrieves the record for id if it is neither tombstoned nor
// expired at now (Unix nanoseconds).
func (s *Store) GetLive(id uint64, now int64) (record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tombstones.Contains(id) {
		return record.Record{}, false
	}

	rec, ok := s.records[id]
	if !ok || rec.Expired(now) {
		return record.Record{}, false
	}

	return rec, true
}

// Live reports whether id exists, is not tombstoned and has not expired.
func (s *Store) Live(id uint64, now int64) bool {
	_, ok := s.GetLive(id, now)
	return ok
}

// MarkDeleted tombstones id. Reports whether the id existed and was not
// already tombstoned; expiry does not factor in here, callers decide
// whether deleting an expired record is meaningful.
func (s *Store) MarkDeleted(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false
	}
	if s.tombstones.Contains(id) {
		return false
	}

	s.tombstones.Add(id)
	delete(s.expiries, id)

	return true
}

// Deleted reports whether id is tombstoned.
func (s *Store) Deleted(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tombstones.Contains(id)
}

// Len counts the records that are live at now: present, not tombstoned,
// not expired.
func (s *Store) Len(now int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records) - int(s.tombstones.GetCardinality())
	for _, expiresAt := range s.expiries {
		if now >= expiresAt {
			n--
		}
	}

	return n
}

// Total counts all records including tombstoned and expired ones.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Range calls fn for every record, tombstoned and expired included, until
// fn returns false. The iteration order is unspecified and fn must not
// call back into the store.
func (s *Store) Range(fn func(rec record.Record) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if !fn(rec) {
			return
		}
	}
}

// Tombstones returns a copy of the tombstone set.
func (s *Store) Tombstones() *roaring64.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tombstones.Clone()
}
