// File: internal/aligner/aligner.go
//
// Package aligner pairs recorded targets with live elements, and whole
// layouts with each other. It owns candidate generation, ranking and the
// deterministic tie-break order; verdicts are the planner's business.
package aligner

import (
	"sort"

	"go.uber.org/zap"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/config"
	"github.com/entropydec/gsrb/internal/scorer"
)

// Aligner ranks live elements against recorded targets. Stateless between
// calls; safe for concurrent use.
type Aligner struct {
	scorerCfg config.ScorerConfig
	cfg       config.AlignerConfig
	logger    *zap.Logger
}

// New builds an Aligner with the given scorer and aligner settings.
func New(scorerCfg config.ScorerConfig, cfg config.AlignerConfig, logger *zap.Logger) *Aligner {
	return &Aligner{scorerCfg: scorerCfg, cfg: cfg, logger: logger.Named("aligner")}
}

// AlignTarget scores the recorded target against every plausible element of
// the live snapshot and returns the surviving candidates, best first. The
// ordering is fully deterministic: score descending, then center distance,
// depth difference, ordinal difference, and finally flat traversal index.
func (a *Aligner) AlignTarget(target *schemas.TargetAttributes, live *schemas.Snapshot) []schemas.AlignmentCandidate {
	if target == nil || live == nil || live.Root == nil {
		return nil
	}

	sc := scorer.New(a.scorerCfg, live.ScreenBounds())
	want := scorer.FromTarget(target)
	flat := live.Flatten()

	pool := prefilter(target, flat)

	cands := make([]schemas.AlignmentCandidate, 0, len(pool))
	for _, pe := range pool {
		total, bd := sc.Score(want, scorer.FromNode(pe.node))
		if bonus := a.contextBonus(target, pe.node); bonus > 0 {
			bd.ContextBonus = bonus
			total += bonus
			if total > 1 {
				total = 1
			}
		}
		// The floor cuts after the bonus: a container match may rescue a
		// borderline candidate, but never a hopeless one from zero.
		if total < a.scorerCfg.MinScoreFloor {
			continue
		}
		cands = append(cands, schemas.AlignmentCandidate{
			Element:        pe.node,
			Target:         *schemas.CaptureTarget(pe.node),
			Score:          total,
			Breakdown:      bd,
			CenterDistance: target.Bounds.CenterDistance(pe.node.Bounds),
			DepthDiff:      abs(target.Depth - pe.node.Depth),
			OrdinalDiff:    abs(target.Ordinal - pe.node.Ordinal),
			FlatIndex:      pe.index,
		})
	}

	sortCandidates(cands)

	a.logger.Debug("target aligned",
		zap.Int("pool", len(pool)),
		zap.Int("candidates", len(cands)))
	return cands
}

type poolEntry struct {
	node  *schemas.ElementNode
	index int
}

// prefilter narrows the candidate pool to leaf elements sharing the target's
// class or bare identifier. Recorded targets are interactable widgets, which
// the dump always shows as leaves; containers never enter the pool. When no
// leaf shares class or id (a redesign renamed both), every leaf stays in
// play.
func prefilter(target *schemas.TargetAttributes, flat []*schemas.ElementNode) []poolEntry {
	wantID := scorer.StripResourceID(target.ResourceID)
	var narrowed, all []poolEntry
	for i, n := range flat {
		if !n.Leaf() {
			continue
		}
		all = append(all, poolEntry{node: n, index: i})
		if n.Class == target.Class ||
			(wantID != "" && scorer.StripResourceID(n.ResourceID) == wantID) {
			narrowed = append(narrowed, poolEntry{node: n, index: i})
		}
	}
	if len(narrowed) > 0 {
		return narrowed
	}
	return all
}

// contextBonus rewards a candidate whose parent container matches the
// recorded parent by id or class.
func (a *Aligner) contextBonus(target *schemas.TargetAttributes, n *schemas.ElementNode) float64 {
	if n.Parent == nil {
		return 0
	}
	if target.ParentResourceID != "" &&
		scorer.StripResourceID(n.Parent.ResourceID) == scorer.StripResourceID(target.ParentResourceID) {
		return a.cfg.ContextBonus
	}
	if target.ParentClass != "" && n.Parent.Class == target.ParentClass {
		return a.cfg.ContextBonus
	}
	return 0
}

func sortCandidates(cands []schemas.AlignmentCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := cands[i], cands[j]
		if ci.Score != cj.Score {
			return ci.Score > cj.Score
		}
		if ci.CenterDistance != cj.CenterDistance {
			return ci.CenterDistance < cj.CenterDistance
		}
		if ci.DepthDiff != cj.DepthDiff {
			return ci.DepthDiff < cj.DepthDiff
		}
		if ci.OrdinalDiff != cj.OrdinalDiff {
			return ci.OrdinalDiff < cj.OrdinalDiff
		}
		return ci.FlatIndex < cj.FlatIndex
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
