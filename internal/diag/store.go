package diag

import (
	"sync"
	"time"

	"github.com/dshills/lintstorm/internal/document"
)

// entry holds the live diagnostic set for one document.
type entry struct {
	diagnostics []Diagnostic
	updatedAt   time.Time
	errors      int
	warnings    int
}

// Store keeps the most recent diagnostic set per document identity.
//
// A document's stored set always reflects the most recently completed,
// non-superseded analysis run; callers replace a set wholesale with Set and
// remove it with Delete when the document closes. Store is safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	entries  map[document.ID]*entry
	onChange func(id document.ID, diagnostics []Diagnostic)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithChangeHandler sets a callback invoked after every Set and Delete. The
// callback receives a copy of the new set (nil after a delete) and runs
// outside the store's lock.
func WithChangeHandler(fn func(id document.ID, diagnostics []Diagnostic)) StoreOption {
	return func(s *Store) {
		s.onChange = fn
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[document.ID]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set replaces the diagnostic set for a document.
func (s *Store) Set(id document.ID, diagnostics []Diagnostic) {
	e := &entry{
		diagnostics: make([]Diagnostic, len(diagnostics)),
		updatedAt:   time.Now(),
	}
	copy(e.diagnostics, diagnostics)
	for _, d := range diagnostics {
		switch d.Severity {
		case SeverityError:
			e.errors++
		case SeverityWarning:
			e.warnings++
		}
	}

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()

	s.notify(id, e.diagnostics)
}

// Delete removes a document's diagnostic set. Deleting an absent entry is a
// no-op and produces no notification.
func (s *Store) Delete(id document.ID) {
	s.mu.Lock()
	_, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if ok {
		s.notify(id, nil)
	}
}

// Get returns a copy of the diagnostic set for a document.
func (s *Store) Get(id document.ID) []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	out := make([]Diagnostic, len(e.diagnostics))
	copy(out, e.diagnostics)
	return out
}

// Has reports whether a document has a stored set.
func (s *Store) Has(id document.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Count returns the number of documents with stored diagnostics.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Summary aggregates counts across all stored sets.
type Summary struct {
	Files    int
	Errors   int
	Warnings int
}

// Summarize returns aggregate counts for every stored document.
func (s *Store) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Files: len(s.entries)}
	for _, e := range s.entries {
		sum.Errors += e.errors
		sum.Warnings += e.warnings
	}
	return sum
}

// Clear removes all stored diagnostics without notifications. Used at
// teardown when no consumer remains.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[document.ID]*entry)
	s.mu.Unlock()
}

// notify invokes the change handler outside the lock.
func (s *Store) notify(id document.ID, diagnostics []Diagnostic) {
	if s.onChange == nil {
		return
	}
	var out []Diagnostic
	if diagnostics != nil {
		out = make([]Diagnostic, len(diagnostics))
		copy(out, diagnostics)
	}
	s.onChange(id, out)
}
