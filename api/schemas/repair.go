// File: api/schemas/repair.go
package schemas

import "time"

// ScoreBreakdown records the contribution of each attribute signal to a
// candidate's total score. Values are the normalized sub-scores in [0,1],
// before weighting, so an audit trail can show which signal carried a match.
type ScoreBreakdown struct {
	Identifier   float64 `json:"identifier"`
	Text         float64 `json:"text"`
	Type         float64 `json:"type"`
	Geometry     float64 `json:"geometry"`
	AncestorPath float64 `json:"ancestor_path"`
	// ContextBonus is the flat bonus applied when the candidate's parent
	// matches the recorded parent container.
	ContextBonus float64 `json:"context_bonus,omitempty"`
}

// AlignmentCandidate pairs the recorded target with one live element,
// scored in [0,1]. Ephemeral: produced per repair attempt.
type AlignmentCandidate struct {
	Element   *ElementNode     `json:"-"`
	Target    TargetAttributes `json:"target"`
	Score     float64          `json:"score"`
	Breakdown ScoreBreakdown   `json:"breakdown"`

	// Tie-break keys, captured at scoring time so the ordering is auditable.
	CenterDistance float64 `json:"center_distance"`
	DepthDiff      int     `json:"depth_diff"`
	OrdinalDiff    int     `json:"ordinal_diff"`
	FlatIndex      int     `json:"flat_index"`
}

// VerdictKind enumerates repair outcomes.
type VerdictKind string

const (
	VerdictResolved     VerdictKind = "resolved"
	VerdictAmbiguous    VerdictKind = "ambiguous"
	VerdictUnresolvable VerdictKind = "unresolvable"
)

// RepairVerdict is the engine's outcome for one repair attempt. Failure is
// encoded as data, never as a panic or raised error.
type RepairVerdict struct {
	Kind VerdictKind `json:"kind"`

	// Resolved fields.
	Winner     *AlignmentCandidate `json:"winner,omitempty"`
	Confidence float64             `json:"confidence,omitempty"`
	Repaired   *RecordedAction     `json:"repaired,omitempty"`

	// Ambiguous field: the near-tied top candidates, best first.
	Candidates []AlignmentCandidate `json:"candidates,omitempty"`

	// Unresolvable field.
	Reason string `json:"reason,omitempty"`

	// DisambiguatorUsed marks verdicts that consulted the external classifier.
	DisambiguatorUsed bool `json:"disambiguator_used,omitempty"`
}

// LLMExchange is the query/response pair of one classifier consultation,
// preserved verbatim for audit.
type LLMExchange struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response,omitempty"`
	Err      string `json:"error,omitempty"`
}

// BacktraceEntry is one append-only audit record of a repair attempt.
type BacktraceEntry struct {
	StepIndex int            `json:"step_index"`
	Action    RecordedAction `json:"action"`
	Verdict   RepairVerdict  `json:"verdict"`
	Timestamp time.Time      `json:"timestamp"`
	Exchange  *LLMExchange   `json:"llm_exchange,omitempty"`
	// Screenshot is optional PNG evidence captured at repair time.
	Screenshot []byte `json:"screenshot,omitempty"`
}

// RunSummary aggregates a run's backtrace by verdict kind.
type RunSummary struct {
	RunID        string `json:"run_id"`
	Total        int    `json:"total"`
	Resolved     int    `json:"resolved"`
	Ambiguous    int    `json:"ambiguous"`
	Unresolvable int    `json:"unresolvable"`
}
