// File: internal/planner/planner.go
//
// Package planner turns a ranked candidate list into a repair verdict. Pure
// decision logic: no I/O, no device, no classifier. Failure is data here,
// never an error return.
package planner

import (
	"go.uber.org/zap"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/config"
)

// Planner applies the resolution policy to ranked candidates.
type Planner struct {
	cfg    config.DisambiguatorConfig
	logger *zap.Logger
}

// New builds a Planner. The top-k width comes from the disambiguator
// settings so ambiguous verdicts surface the same candidates the classifier
// was shown.
func New(cfg config.DisambiguatorConfig, logger *zap.Logger) *Planner {
	return &Planner{cfg: cfg, logger: logger.Named("planner")}
}

// Plan produces the verdict for one action. resolvedIndex is the classifier's
// pick into cands, or -1 when the classifier did not run or deferred;
// disambiguatorUsed records whether a consultation was attempted at all.
//
// Empty candidates are a structural mismatch. A classifier pick resolves
// outright. A strictly leading score resolves to the leader however small
// the gap: the ambiguity margin only gates the classifier consultation, and
// the ranking's tie-break keys already make the leader deterministic. Only
// an exact top-2 score tie stays ambiguous, with the top-k surfaced for
// review.
func (p *Planner) Plan(action schemas.RecordedAction, cands []schemas.AlignmentCandidate, resolvedIndex int, disambiguatorUsed bool) schemas.RepairVerdict {
	if len(cands) == 0 {
		p.logger.Debug("no structural match for action", zap.String("kind", string(action.Kind)))
		return schemas.RepairVerdict{
			Kind:              schemas.VerdictUnresolvable,
			Reason:            "no element in the current layout matches the recorded target",
			DisambiguatorUsed: disambiguatorUsed,
		}
	}

	if resolvedIndex >= 0 && resolvedIndex < len(cands) {
		return p.resolved(action, cands, resolvedIndex, disambiguatorUsed)
	}

	if len(cands) == 1 || cands[0].Score > cands[1].Score {
		return p.resolved(action, cands, 0, disambiguatorUsed)
	}

	top := cands
	if len(top) > p.cfg.TopK {
		top = top[:p.cfg.TopK]
	}
	p.logger.Debug("exact score tie left ambiguous",
		zap.Float64("top_score", top[0].Score),
		zap.Float64("runner_up", top[1].Score))
	return schemas.RepairVerdict{
		Kind:              schemas.VerdictAmbiguous,
		Candidates:        append([]schemas.AlignmentCandidate(nil), top...),
		DisambiguatorUsed: disambiguatorUsed,
	}
}

func (p *Planner) resolved(action schemas.RecordedAction, cands []schemas.AlignmentCandidate, idx int, disambiguatorUsed bool) schemas.RepairVerdict {
	winner := cands[idx]
	repaired := action.Clone()
	repaired.Target = schemas.CaptureTarget(winner.Element)
	return schemas.RepairVerdict{
		Kind:              schemas.VerdictResolved,
		Winner:            &winner,
		Confidence:        winner.Score,
		Repaired:          &repaired,
		DisambiguatorUsed: disambiguatorUsed,
	}
}
