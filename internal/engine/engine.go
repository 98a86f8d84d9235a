// File: internal/engine/engine.go
//
// Package engine orchestrates one repair run: align the recorded target
// against the live layout, consult the tie-breaker when the ranking is too
// close, plan the verdict, and record everything in the backtrace. The
// engine itself is synchronous; parallelism lives in the batch runner, one
// engine per script.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/aligner"
	"github.com/entropydec/gsrb/internal/backtrace"
	"github.com/entropydec/gsrb/internal/config"
	"github.com/entropydec/gsrb/internal/disambiguator"
	"github.com/entropydec/gsrb/internal/planner"
	"github.com/entropydec/gsrb/internal/script"
	"github.com/entropydec/gsrb/internal/snapshot"
)

// ErrNoDriver is returned by replay operations when no device is attached.
var ErrNoDriver = errors.New("no device driver configured")

// Engine repairs one script at a time against one device.
type Engine struct {
	cfg      *config.Config
	aligner  *aligner.Aligner
	disamb   *disambiguator.Disambiguator
	planner  *planner.Planner
	recorder *backtrace.Recorder
	driver   schemas.DeviceDriver
	capturer schemas.ScreenCapturer
	logger   *zap.Logger
}

// New wires an Engine from its collaborators. client, driver and capturer
// may each be nil: a nil client disables the tie-breaker, a nil driver
// limits the engine to offline alignment, a nil capturer skips evidence.
func New(cfg *config.Config, client schemas.LLMClient, driver schemas.DeviceDriver, capturer schemas.ScreenCapturer, logger *zap.Logger) *Engine {
	logger = logger.Named("engine")
	return &Engine{
		cfg:      cfg,
		aligner:  aligner.New(cfg.Scorer, cfg.Aligner, logger),
		disamb:   disambiguator.New(client, cfg.Disambiguator, cfg.LLM, logger),
		planner:  planner.New(cfg.Disambiguator, logger),
		recorder: backtrace.NewRecorder(),
		driver:   driver,
		capturer: capturer,
		logger:   logger,
	}
}

// Recorder exposes the run's backtrace.
func (e *Engine) Recorder() *backtrace.Recorder {
	return e.recorder
}

// DiffLayouts aligns two full layouts leaf by leaf.
func (e *Engine) DiffLayouts(before, after *schemas.Snapshot) aligner.LayoutDiff {
	return e.aligner.AlignTrees(before, after)
}

// RepairAction attempts to re-locate one action's target in the current
// layout. before is the recorded-time snapshot when available; it only
// informs drift logging, never the verdict. Every targeted attempt is
// appended to the backtrace; targetless kinds pass through unrecorded.
func (e *Engine) RepairAction(ctx context.Context, stepIndex int, action schemas.RecordedAction, before, after *schemas.Snapshot) schemas.RepairVerdict {
	if !action.Kind.RequiresTarget() || action.Target == nil {
		repaired := action.Clone()
		return schemas.RepairVerdict{
			Kind:       schemas.VerdictResolved,
			Confidence: 1.0,
			Repaired:   &repaired,
		}
	}

	if before != nil {
		if diff := e.aligner.AlignTrees(before, after); !diff.Match {
			e.logger.Warn("Layout drifted beyond the match threshold; repair confidence may suffer.",
				zap.Int("step", stepIndex),
				zap.Float64("layout_score", diff.Score))
		}
	}

	cands := e.aligner.AlignTarget(action.Target, after)

	var exchange *schemas.LLMExchange
	resolvedIdx := -1
	used := false
	if e.disamb.ShouldInvoke(cands) {
		used = true
		decision := e.disamb.Disambiguate(ctx, action.Target, cands)
		exchange = decision.Exchange
		if !decision.Deferred {
			resolvedIdx = decision.Index
		}
	}

	verdict := e.planner.Plan(action, cands, resolvedIdx, used)

	var shot []byte
	if e.capturer != nil && e.cfg.Engine.AttachScreenshots {
		var err error
		if shot, err = e.capturer.Screenshot(ctx); err != nil {
			e.logger.Warn("Screenshot capture failed; recording attempt without evidence.", zap.Error(err))
			shot = nil
		}
	}

	e.recorder.Append(stepIndex, action, verdict, exchange, shot)
	e.logger.Info("repair attempt recorded",
		zap.Int("step", stepIndex),
		zap.String("kind", string(action.Kind)),
		zap.String("verdict", string(verdict.Kind)),
		zap.Float64("confidence", verdict.Confidence))
	return verdict
}

// RepairScript replays a recorded script on the live device, repairing each
// step whose target no longer matches exactly. The replay stops at the first
// step that cannot be resolved; the partial repaired script and the verdict
// trail remain available. A nil error with an incomplete script means the
// failure is encoded in the backtrace, not that something broke.
func (e *Engine) RepairScript(ctx context.Context, b *script.Bundle) (*schemas.Script, error) {
	if e.driver == nil {
		return nil, ErrNoDriver
	}

	out := &schemas.Script{Package: b.Script.Package}

	for i, action := range b.Script.Actions {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if !action.Kind.RequiresTarget() {
			if err := e.execute(ctx, action); err != nil {
				return out, fmt.Errorf("step %d (%s): %w", i, action.Kind, err)
			}
			out.Actions = append(out.Actions, action.Clone())
			continue
		}

		raw, err := e.driver.DumpHierarchy(ctx)
		if err != nil {
			return out, fmt.Errorf("step %d: dumping hierarchy: %w", i, err)
		}
		live, err := snapshot.Parse(raw, "")
		if err != nil {
			return out, fmt.Errorf("step %d: %w", i, err)
		}

		// Unchanged screen: the live layout still equals the recorded-time
		// capture, so the recorded locator is valid as-is and no repair
		// attempt is needed.
		if rec := b.BeforeSnapshots[i]; rec != nil && snapshot.Equal(rec, live) {
			e.logger.Debug("screen unchanged since recording", zap.Int("step", i))
			if err := e.execute(ctx, action); err != nil {
				return out, fmt.Errorf("step %d (%s): %w", i, action.Kind, err)
			}
			out.Actions = append(out.Actions, action.Clone())
			continue
		}

		// Exact fast path: the recorded target still exists verbatim.
		if el := findExact(action.Target, live); el != nil {
			repaired := action.Clone()
			repaired.Target = schemas.CaptureTarget(el)
			if err := e.execute(ctx, repaired); err != nil {
				return out, fmt.Errorf("step %d (%s): %w", i, action.Kind, err)
			}
			out.Actions = append(out.Actions, repaired)
			continue
		}

		verdict := e.RepairAction(ctx, i, action, b.BeforeSnapshots[i], live)
		if verdict.Kind != schemas.VerdictResolved {
			e.logger.Warn("Replay stopped: step could not be resolved.",
				zap.Int("step", i),
				zap.String("verdict", string(verdict.Kind)))
			return out, nil
		}
		if err := e.execute(ctx, *verdict.Repaired); err != nil {
			return out, fmt.Errorf("step %d (%s): %w", i, action.Kind, err)
		}
		out.Actions = append(out.Actions, *verdict.Repaired)
	}
	return out, nil
}

// execute performs one action on the device and lets the UI settle before
// the next dump. Assertions are satisfied by alignment alone and touch
// nothing.
func (e *Engine) execute(ctx context.Context, action schemas.RecordedAction) error {
	if err := e.perform(ctx, action); err != nil {
		return err
	}
	if action.Kind != schemas.ActionAssert {
		Settle(ctx)
	}
	return nil
}

func (e *Engine) perform(ctx context.Context, action schemas.RecordedAction) error {
	switch action.Kind {
	case schemas.ActionTap:
		x, y := tapPoint(action.Target)
		return e.driver.Tap(ctx, x, y)
	case schemas.ActionLongTap:
		x, y := tapPoint(action.Target)
		return e.driver.LongTap(ctx, x, y)
	case schemas.ActionInputText:
		x, y := tapPoint(action.Target)
		return e.driver.InputText(ctx, x, y, action.Parameters["text"])
	case schemas.ActionSwipe:
		return e.driver.Swipe(ctx,
			paramInt(action, "fx"), paramInt(action, "fy"),
			paramInt(action, "tx"), paramInt(action, "ty"))
	case schemas.ActionBack:
		return e.driver.Back(ctx)
	case schemas.ActionAssert:
		return nil
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

// findExact returns the live element whose id, class and text all equal the
// recorded target, provided exactly one such element exists.
func findExact(target *schemas.TargetAttributes, live *schemas.Snapshot) *schemas.ElementNode {
	var found *schemas.ElementNode
	for _, n := range live.Flatten() {
		if n.ResourceID == target.ResourceID && n.Class == target.Class && n.Text == target.Text {
			if found != nil {
				return nil
			}
			found = n
		}
	}
	return found
}

func tapPoint(t *schemas.TargetAttributes) (int, int) {
	cx, cy := t.Bounds.Center()
	return int(cx), int(cy)
}

func paramInt(action schemas.RecordedAction, key string) int {
	var v int
	fmt.Sscanf(action.Parameters[key], "%d", &v)
	return v
}

// settleDelay is how long the device is given to settle after an action
// before the next hierarchy dump. Kept short; dumps are the slow part.
const settleDelay = 500 * time.Millisecond

// Settle blocks for the settle delay or until ctx is done.
func Settle(ctx context.Context) {
	t := time.NewTimer(settleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
