// Package store implements the streak record store: an in-memory map
// sharded by user id with per-user locking and write-through SQLite
// persistence.
//
// Same-user requests are serialized end-to-end by the user's mutex;
// different users only contend on the brief shard lookup. Writes are
// staged inside a view and committed (database first, then memory) only
// when the whole request callback succeeds, so a request never leaves a
// partial transition set behind.
package store

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/streakforge/streakd/internal/domain"
	"github.com/streakforge/streakd/internal/infra/sqlite"
)

const shardCount = 32

type shard struct {
	mu    sync.Mutex
	users map[string]*userEntry
}

type userEntry struct {
	mu      sync.Mutex
	records map[string]domain.StreakRecord
}

// Store is a concurrency-safe keyed streak record store.
type Store struct {
	shards [shardCount]shard
	db     *sqlite.DB // nil for a memory-only store (tests)
}

// New creates a store backed by db, warmed with every persisted record.
func New(db *sqlite.DB) (*Store, error) {
	s := NewMemory()
	s.db = db

	existing, err := db.LoadStreaks()
	if err != nil {
		return nil, fmt.Errorf("load streaks: %w", err)
	}
	for user, recs := range existing {
		e := s.entry(user)
		for typ, rec := range recs {
			e.records[typ] = rec
		}
	}
	return s, nil
}

// NewMemory creates a store with no persistence.
func NewMemory() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].users = make(map[string]*userEntry)
	}
	return s
}

func (s *Store) entry(userID string) *userEntry {
	h := fnv.New32a()
	h.Write([]byte(userID))
	sh := &s.shards[h.Sum32()%shardCount]

	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.users[userID]
	if !ok {
		e = &userEntry{records: make(map[string]domain.StreakRecord)}
		sh.users[userID] = e
	}
	return e
}

// Update runs fn inside the user's exclusive critical section. Staged puts
// commit atomically after fn returns nil: the database transaction first,
// then memory. Any error discards the staged writes.
func (s *Store) Update(userID string, fn func(domain.RecordView) error) error {
	if userID == "" {
		return domain.ErrUserIDEmpty
	}

	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	view := &recordView{base: e.records, staged: make(map[string]domain.StreakRecord)}
	if err := fn(view); err != nil {
		return err
	}
	if len(view.staged) == 0 {
		return nil
	}

	if s.db != nil {
		if err := s.db.UpsertStreaks(userID, view.staged); err != nil {
			return fmt.Errorf("persist streaks: %w", err)
		}
	}
	for typ, rec := range view.staged {
		e.records[typ] = rec
	}
	return nil
}

// Snapshot returns a copy of the user's records.
func (s *Store) Snapshot(userID string) (map[string]domain.StreakRecord, error) {
	if userID == "" {
		return nil, domain.ErrUserIDEmpty
	}

	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]domain.StreakRecord, len(e.records))
	for typ, rec := range e.records {
		out[typ] = rec
	}
	return out, nil
}

// recordView stages writes over a user's committed records.
type recordView struct {
	base   map[string]domain.StreakRecord
	staged map[string]domain.StreakRecord
}

func (v *recordView) Get(activityType string) (domain.StreakRecord, bool) {
	if rec, ok := v.staged[activityType]; ok {
		return rec, true
	}
	rec, ok := v.base[activityType]
	return rec, ok
}

func (v *recordView) Put(activityType string, rec domain.StreakRecord) {
	v.staged[activityType] = rec
}

func (v *recordView) Types() []string {
	seen := make(map[string]bool, len(v.base)+len(v.staged))
	for typ := range v.base {
		seen[typ] = true
	}
	for typ := range v.staged {
		seen[typ] = true
	}
	types := make([]string, 0, len(seen))
	for typ := range seen {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
