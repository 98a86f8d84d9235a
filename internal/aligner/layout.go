// File: internal/aligner/layout.go
package aligner

import (
	"go.uber.org/zap"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/scorer"
)

// LeafPair binds one leaf of the old layout to its counterpart in the new
// one, with the score that justified the pairing.
type LeafPair struct {
	Old   *schemas.ElementNode
	New   *schemas.ElementNode
	Score float64
}

// LayoutDiff is the outcome of a full-tree alignment between two layouts.
// Score is the fraction of old leaves that found a certain or plausible
// counterpart; Match reports whether both captures show the same logical
// screen under the configured threshold.
type LayoutDiff struct {
	Matched         []LeafPair
	Possible        []LeafPair
	UnmatchedBefore []*schemas.ElementNode
	UnmatchedAfter  []*schemas.ElementNode
	Score           float64
	Match           bool
}

// AlignTrees aligns every leaf of the before layout against the after layout.
// Pairing runs in two passes: a "sure" pass claims leaves whose best
// counterpart is unique and scores above the sure threshold, then a
// "possible" pass pairs the remainder greedily above the score floor,
// promoting pairs with a uniquely shared identifier or text. Each after-leaf
// is claimed at most once.
func (a *Aligner) AlignTrees(before, after *schemas.Snapshot) LayoutDiff {
	var diff LayoutDiff
	if before == nil || after == nil || before.Root == nil || after.Root == nil {
		return diff
	}

	oldLeaves := leaves(before)
	newLeaves := leaves(after)
	if len(oldLeaves) == 0 {
		diff.UnmatchedAfter = newLeaves
		diff.Score = 1.0
		diff.Match = diff.Score >= a.cfg.LayoutMatchThreshold
		return diff
	}

	sc := scorer.New(a.scorerCfg, after.ScreenBounds())
	claimed := make(map[*schemas.ElementNode]bool, len(newLeaves))

	type scored struct {
		leaf  *schemas.ElementNode
		score float64
	}
	best := func(old *schemas.ElementNode) (scored, scored) {
		var first, second scored
		oa := scorer.FromNode(old)
		for _, nl := range newLeaves {
			if claimed[nl] {
				continue
			}
			s, _ := sc.Score(oa, scorer.FromNode(nl))
			if s > first.score || first.leaf == nil {
				second = first
				first = scored{leaf: nl, score: s}
			} else if s > second.score || second.leaf == nil {
				second = scored{leaf: nl, score: s}
			}
		}
		return first, second
	}

	// Sure pass: iterate until no new certain pairing appears, since each
	// claim can make a previously contested leaf unique.
	pending := append([]*schemas.ElementNode(nil), oldLeaves...)
	for {
		progressed := false
		var remaining []*schemas.ElementNode
		for _, old := range pending {
			first, second := best(old)
			sure := first.leaf != nil &&
				first.score >= a.cfg.SureThreshold &&
				(second.leaf == nil || second.score < a.cfg.SureThreshold)
			if sure {
				claimed[first.leaf] = true
				diff.Matched = append(diff.Matched, LeafPair{Old: old, New: first.leaf, Score: first.score})
				progressed = true
				continue
			}
			remaining = append(remaining, old)
		}
		pending = remaining
		if !progressed {
			break
		}
	}

	// Possible pass: greedy above the floor. Sharing a unique identifier or
	// non-empty text with the counterpart promotes the pair to matched.
	for _, old := range pending {
		first, _ := best(old)
		if first.leaf == nil || first.score < a.scorerCfg.MinScoreFloor {
			diff.UnmatchedBefore = append(diff.UnmatchedBefore, old)
			continue
		}
		claimed[first.leaf] = true
		pair := LeafPair{Old: old, New: first.leaf, Score: first.score}
		if sharesStableKey(old, first.leaf) {
			diff.Matched = append(diff.Matched, pair)
		} else {
			diff.Possible = append(diff.Possible, pair)
		}
	}

	for _, nl := range newLeaves {
		if !claimed[nl] {
			diff.UnmatchedAfter = append(diff.UnmatchedAfter, nl)
		}
	}

	diff.Score = float64(len(diff.Matched)+len(diff.Possible)) / float64(len(oldLeaves))
	diff.Match = diff.Score >= a.cfg.LayoutMatchThreshold

	a.logger.Debug("layouts aligned",
		zap.Int("old_leaves", len(oldLeaves)),
		zap.Int("new_leaves", len(newLeaves)),
		zap.Int("matched", len(diff.Matched)),
		zap.Int("possible", len(diff.Possible)),
		zap.Float64("score", diff.Score),
		zap.Bool("match", diff.Match))
	return diff
}

func sharesStableKey(a, b *schemas.ElementNode) bool {
	if a.ResourceID != "" && scorer.StripResourceID(a.ResourceID) == scorer.StripResourceID(b.ResourceID) {
		return true
	}
	return a.Text != "" && a.Text == b.Text
}

func leaves(s *schemas.Snapshot) []*schemas.ElementNode {
	var out []*schemas.ElementNode
	for _, n := range s.Flatten() {
		if n.Leaf() {
			out = append(out, n)
		}
	}
	return out
}
