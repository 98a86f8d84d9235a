// File: internal/backtrace/recorder.go
//
// Package backtrace keeps the append-only audit trail of a repair run: every
// attempt, its verdict, and any classifier exchange that informed it.
package backtrace

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entropydec/gsrb/api/schemas"
)

// Recorder accumulates backtrace entries for one run. Appends preserve call
// order; entries are never mutated or removed. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	runID   string
	entries []schemas.BacktraceEntry
}

// NewRecorder starts an empty trail under a fresh run identifier.
func NewRecorder() *Recorder {
	return &Recorder{runID: uuid.NewString()}
}

// RunID returns the identifier shared by all entries of this run.
func (r *Recorder) RunID() string {
	return r.runID
}

// Append records one repair attempt. The timestamp is set here so ordering
// and wall-clock agree.
func (r *Recorder) Append(stepIndex int, action schemas.RecordedAction, verdict schemas.RepairVerdict, exchange *schemas.LLMExchange, screenshot []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, schemas.BacktraceEntry{
		StepIndex:  stepIndex,
		Action:     action.Clone(),
		Verdict:    verdict,
		Timestamp:  time.Now().UTC(),
		Exchange:   exchange,
		Screenshot: screenshot,
	})
}

// Export returns a copy of the trail in append order. Callers may hold the
// result across further appends.
func (r *Recorder) Export() []schemas.BacktraceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schemas.BacktraceEntry(nil), r.entries...)
}

// Len reports the number of recorded attempts.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Summarize aggregates the trail by verdict kind.
func (r *Recorder) Summarize() schemas.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := schemas.RunSummary{RunID: r.runID, Total: len(r.entries)}
	for _, e := range r.entries {
		switch e.Verdict.Kind {
		case schemas.VerdictResolved:
			s.Resolved++
		case schemas.VerdictAmbiguous:
			s.Ambiguous++
		case schemas.VerdictUnresolvable:
			s.Unresolvable++
		}
	}
	return s
}
