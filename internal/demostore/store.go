// Package demostore provides a small in-memory, optionally file-backed
// record store used by the CLI's search and subscribe demos: enough of
// a map implementation to exercise full-text search and predicate-query
// subscriptions without a real storage backend.
package demostore

import (
	"sync"

	"github.com/kvmesh/livefts/internal/predicate"
)

// ChangeListener is notified after every Put or Delete, the same shape a
// real map implementation would use to drive FTS indexing and predicate
// diffing off of its own mutation path. old is nil on a fresh insert, so
// a listener doing field-level diffing can tell an insert from a replace.
type ChangeListener interface {
	OnSet(mapName, key string, rec predicate.Record, old *predicate.Record)
	OnRemove(mapName, key string, old predicate.Record)
}

// Store is a RecordSource backed by a plain map, safe for concurrent
// use, that fans out every mutation to its registered listeners.
type Store struct {
	mapName string

	mu        sync.RWMutex
	records   map[string]predicate.Record
	listeners []ChangeListener
}

// New builds an empty Store for mapName.
func New(mapName string) *Store {
	return &Store{mapName: mapName, records: make(map[string]predicate.Record)}
}

// AddListener registers l to be notified of future mutations. It is not
// called retroactively for records already in the store; callers that
// need an initial snapshot should read it via Keys/GetRecord first, the
// same ordering EnableSearch and Registry.Register already expect.
func (s *Store) AddListener(l ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Keys implements predicate.RecordSource.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}

// GetRecord implements predicate.RecordSource.
func (s *Store) GetRecord(key string) (predicate.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Put inserts or replaces a record, keyed by rec.Key, and notifies every
// listener. old is nil when the key was not previously present.
func (s *Store) Put(rec predicate.Record) {
	s.mu.Lock()
	prev, existed := s.records[rec.Key]
	s.records[rec.Key] = rec
	listeners := append([]ChangeListener(nil), s.listeners...)
	s.mu.Unlock()

	var old *predicate.Record
	if existed {
		old = &prev
	}
	for _, l := range listeners {
		l.OnSet(s.mapName, rec.Key, rec, old)
	}
}

// Delete removes a record by key, a no-op if absent, and notifies every
// listener with the removed record when it was actually present.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	prev, existed := s.records[key]
	delete(s.records, key)
	listeners := append([]ChangeListener(nil), s.listeners...)
	s.mu.Unlock()

	if !existed {
		return
	}
	for _, l := range listeners {
		l.OnRemove(s.mapName, key, prev)
	}
}

// Len reports how many records are currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
