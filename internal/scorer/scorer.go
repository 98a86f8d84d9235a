// File: internal/scorer/scorer.go
//
// Package scorer computes attribute-level similarity between UI elements.
// Scores are pure functions of the two attribute bundles: symmetric,
// deterministic, and independent of any other node in either tree.
package scorer

import (
	"regexp"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/config"
)

// resourceIDPattern strips the "package:id/" prefix from Android resource
// identifiers, so an application-id rename alone does not break id equality.
var resourceIDPattern = regexp.MustCompile(`^(?:[A-Za-z][A-Za-z\d_]*)(?:\.[A-Za-z][A-Za-z\d_]*)*:id/(.*)$`)

// StripResourceID returns the bare identifier name without its package prefix.
func StripResourceID(id string) string {
	if m := resourceIDPattern.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	return id
}

// Attributes is the neutral attribute view both live nodes and detached
// recorded targets project into for scoring.
type Attributes struct {
	ResourceID   string
	Class        string
	Text         string
	Bounds       schemas.Rect
	AncestorPath []string
}

// FromNode projects a live element into its scorable attributes.
func FromNode(n *schemas.ElementNode) Attributes {
	return Attributes{
		ResourceID:   n.ResourceID,
		Class:        n.Class,
		Text:         n.Text,
		Bounds:       n.Bounds,
		AncestorPath: n.AncestorPath,
	}
}

// FromTarget projects a recorded target bundle into its scorable attributes.
func FromTarget(t *schemas.TargetAttributes) Attributes {
	return Attributes{
		ResourceID:   t.ResourceID,
		Class:        t.Class,
		Text:         t.Text,
		Bounds:       t.Bounds,
		AncestorPath: t.AncestorPath,
	}
}

// Scorer weighs independently normalized attribute sub-scores into a total
// in [0,1]. One Scorer is built per snapshot pair; the screen diagonal
// normalizes geometric distance.
type Scorer struct {
	weights  config.WeightsConfig
	sum      float64
	diagonal float64
}

// New builds a Scorer for the given weights and screen bounds. Overridden
// weights are renormalized by their sum, so the total stays in [0,1].
func New(cfg config.ScorerConfig, screen schemas.Rect) *Scorer {
	diag := screen.Diagonal()
	if diag <= 0 {
		// Degenerate screen bounds; fall back to a common portrait panel so
		// geometry still discriminates rather than dividing by zero.
		diag = (schemas.Rect{X1: 1080, Y1: 1920}).Diagonal()
	}
	return &Scorer{weights: cfg.Weights, sum: cfg.Weights.Sum(), diagonal: diag}
}

// Score returns the weighted similarity of two attribute bundles together
// with the per-signal breakdown. Symmetric in its arguments.
func (s *Scorer) Score(a, b Attributes) (float64, schemas.ScoreBreakdown) {
	bd := schemas.ScoreBreakdown{
		Identifier:   identifierScore(a.ResourceID, b.ResourceID),
		Text:         textScore(a.Text, b.Text),
		Type:         typeScore(a.Class, b.Class),
		Geometry:     s.geometryScore(a.Bounds, b.Bounds),
		AncestorPath: ancestorScore(a.AncestorPath, b.AncestorPath),
	}
	total := (s.weights.Identifier*bd.Identifier +
		s.weights.Text*bd.Text +
		s.weights.Type*bd.Type +
		s.weights.Geometry*bd.Geometry +
		s.weights.AncestorPath*bd.AncestorPath) / s.sum
	return clamp01(total), bd
}

// identifierScore: equality is strong evidence, inequality strong
// counter-evidence. Absence on either side stays neutral, since poorly
// instrumented apps omit ids entirely and the other signals have to carry
// the match.
func identifierScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0.5
	}
	if strings.EqualFold(StripResourceID(a), StripResourceID(b)) {
		return 1.0
	}
	return 0.0
}

// textScore normalizes edit distance by the longer string. WagnerFischer
// counts byte-level edits, so the cap is in bytes too; multi-byte text keeps
// a meaningful ratio instead of clamping to zero.
func textScore(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	dist := smetrics.WagnerFischer(a, b, 1, 1, 1)
	return clamp01(1.0 - float64(dist)/float64(max))
}

func typeScore(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return 0.0
}

func (s *Scorer) geometryScore(a, b schemas.Rect) float64 {
	return clamp01(1.0 - a.CenterDistance(b)/s.diagonal)
}

// ancestorScore is the fraction of matching class names at corresponding
// depths, capped to the shorter path.
func ancestorScore(a, b []string) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 1.0
	}
	matched := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			matched++
		}
	}
	return float64(matched) / float64(n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
