package enrich

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/maps-enrich/internal/model"
)

// Stats accumulates outcome counts across workers.
type Stats struct {
	mu        sync.Mutex
	counts    map[model.Status]int
	processed int
}

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{counts: make(map[model.Status]int)}
}

// Add counts one outcome.
func (s *Stats) Add(status model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[status]++
	s.processed++
}

// Processed returns the number of outcomes counted.
func (s *Stats) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// Counts returns a copy of the per-status counts.
func (s *Stats) Counts() map[model.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.Status]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Summary describes a finished enrichment run.
type Summary struct {
	RunID       string               `json:"run_id"`
	Processed   int                  `json:"processed"`
	Counts      map[model.Status]int `json:"counts"`
	Pages       int                  `json:"pages"`
	LastID      string               `json:"last_id,omitempty"`
	Interrupted bool                 `json:"interrupted,omitempty"`
	Duration    time.Duration        `json:"duration"`
}

// Fields renders the summary as log fields, one per status.
func (s Summary) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.Int("processed", s.Processed),
		zap.Int("pages", s.Pages),
		zap.String("last_id", s.LastID),
		zap.Bool("interrupted", s.Interrupted),
		zap.Duration("duration", s.Duration),
	}
	for _, st := range model.AllStatuses {
		fields = append(fields, zap.Int(string(st), s.Counts[st]))
	}
	return fields
}

// Searches counts outcomes that reached the search step. Retries are not
// included.
func (s Summary) Searches() int {
	return s.Counts[model.StatusEnriched] + s.Counts[model.StatusNoResult] +
		s.Counts[model.StatusSanityCheck] + s.Counts[model.StatusError]
}
