// Package memory provides an in-memory record store for development and
// server-mode dry runs.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
)

// RecordStore keeps records in insertion order.
type RecordStore struct {
	mu      sync.RWMutex
	records []crawler.Record
	index   map[string]int
	closed  bool
}

var _ crawler.RecordStore = (*RecordStore)(nil)

// NewRecordStore constructs an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{index: make(map[string]int)}
}

// Append stores a copy of r. Duplicate source links are ignored.
func (s *RecordStore) Append(_ context.Context, r crawler.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("record store is closed")
	}
	if _, exists := s.index[r.SourceLink]; exists {
		return nil
	}
	r.Images = append([]string(nil), r.Images...)
	s.index[r.SourceLink] = len(s.records)
	s.records = append(s.records, r)
	return nil
}

// Keys returns the stored source links.
func (s *RecordStore) Keys(context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make(map[string]struct{}, len(s.index))
	for link := range s.index {
		keys[link] = struct{}{}
	}
	return keys, nil
}

// Records returns a snapshot of everything stored.
func (s *RecordStore) Records() []crawler.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Close marks the store closed; records stay readable.
func (s *RecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
