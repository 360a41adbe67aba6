// Package table holds scanned records and renders them as display rows
// and ';'-delimited CSV.
package table

import (
	"sync"

	"github.com/image-inspector/backend/internal/models"
)

// Store accumulates records in arrival order. Exactly one goroutine
// appends or clears; any number may read.
type Store struct {
	mu      sync.RWMutex
	records []models.ImageMetadata
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a batch of records to the end of the store.
func (s *Store) Append(batch []models.ImageMetadata) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	s.records = append(s.records, batch...)
	s.mu.Unlock()
}

// Clear drops every record. Used on a full folder reload.
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a copy of every record.
func (s *Store) Records() []models.ImageMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ImageMetadata, len(s.records))
	copy(out, s.records)
	return out
}

// Page returns up to limit records starting at offset, and the total
// record count. A limit of 0 or less returns everything after offset.
func (s *Store) Page(offset, limit int) ([]models.ImageMetadata, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.records)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []models.ImageMetadata{}, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	out := make([]models.ImageMetadata, end-offset)
	copy(out, s.records[offset:end])
	return out, total
}
