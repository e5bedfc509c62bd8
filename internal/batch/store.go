// Package batch runs a set of invoice documents through the pipeline
// sequentially and keeps the per-document outcomes available for the HTTP
// surface and the exporters.
package batch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/panabill/invoice-extractor/constants"
	"github.com/panabill/invoice-extractor/internal/flatten"
)

// Outcome is the terminal state of one document in a run.
type Outcome struct {
	DocID       uuid.UUID
	Filename    string
	Status      constants.DocStatus
	FailureKind constants.FailureKind
	Reason      string
	ProcessedAt time.Time
}

// Succeeded reports whether the document produced a flat record.
func (o Outcome) Succeeded() bool { return o.Status == constants.DocStatusSucceeded }

// Store holds run results in memory. The orchestrator writes, the HTTP
// handlers and exporters read; all methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	order    []uuid.UUID
	outcomes map[uuid.UUID]Outcome
	records  map[uuid.UUID]*flatten.FlatRecord
	previews map[uuid.UUID]string
}

func NewStore() *Store {
	return &Store{
		outcomes: make(map[uuid.UUID]Outcome),
		records:  make(map[uuid.UUID]*flatten.FlatRecord),
		previews: make(map[uuid.UUID]string),
	}
}

// Put records the outcome of one document, keeping first-seen order.
func (s *Store) Put(o Outcome, rec *flatten.FlatRecord, preview string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.outcomes[o.DocID]; !seen {
		s.order = append(s.order, o.DocID)
	}
	s.outcomes[o.DocID] = o
	if rec != nil {
		s.records[o.DocID] = rec
	}
	if preview != "" {
		s.previews[o.DocID] = preview
	}
}

// Outcomes returns every outcome in processing order.
func (s *Store) Outcomes() []Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Outcome, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.outcomes[id])
	}
	return out
}

// Outcome looks up one document by id.
func (s *Store) Outcome(id uuid.UUID) (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outcomes[id]
	return o, ok
}

// Record returns the flat record of a succeeded document.
func (s *Store) Record(id uuid.UUID) (*flatten.FlatRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// Preview returns the stored converted-text preview for a document.
func (s *Store) Preview(id uuid.UUID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.previews[id]
	return p, ok
}

// Succeeded returns the outcomes that produced records, in processing order.
func (s *Store) Succeeded() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes() {
		if o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}
