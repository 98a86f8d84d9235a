// File: internal/engine/batch.go
package engine

import (
	"context"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/config"
	"github.com/entropydec/gsrb/internal/device"
	"github.com/entropydec/gsrb/internal/script"
)

// ScriptResult is the outcome of one script's repair inside a batch.
type ScriptResult struct {
	Path         string             `json:"path"`
	RepairedPath string             `json:"repaired_path,omitempty"`
	Summary      schemas.RunSummary `json:"summary"`
	Err          string             `json:"error,omitempty"`
	Skipped      bool               `json:"skipped,omitempty"`
}

// BatchReport aggregates a whole batch run.
type BatchReport struct {
	Results []ScriptResult `json:"results"`
}

// BatchRunner repairs many scripts concurrently, one engine and one device
// agent per worker slot. Cancellation stops launching new scripts; scripts
// already in flight run to completion under their own timeout.
type BatchRunner struct {
	cfg    *config.Config
	client schemas.LLMClient
	logger *zap.Logger
}

// NewBatchRunner builds a runner. client may be nil; the tie-breaker is then
// disabled for every script.
func NewBatchRunner(cfg *config.Config, client schemas.LLMClient, logger *zap.Logger) *BatchRunner {
	return &BatchRunner{cfg: cfg, client: client, logger: logger.Named("batch")}
}

// Run repairs the given script bundles. The concurrency limit is the
// configured slot count, capped by the number of available device agents.
// The returned report covers every input path, including skipped ones.
func (r *BatchRunner) Run(ctx context.Context, paths []string) (*BatchReport, error) {
	slots := r.cfg.Engine.BatchConcurrency
	if n := len(r.cfg.Device.AgentURLs); n < slots {
		r.logger.Warn("Fewer device agents than worker slots; capping concurrency.",
			zap.Int("slots", slots), zap.Int("agents", n))
		slots = n
	}

	agents := make(chan string, slots)
	for i := 0; i < slots; i++ {
		agents <- r.cfg.Device.AgentURLs[i]
	}

	results := make([]ScriptResult, len(paths))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(slots)

	for i, path := range paths {
		// Cancellation semantics: no new slots after ctx is done.
		if ctx.Err() != nil {
			results[i] = ScriptResult{Path: path, Skipped: true}
			continue
		}
		i, path := i, path
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				results[i] = ScriptResult{Path: path, Skipped: true}
				mu.Unlock()
				return nil
			}

			agentURL := <-agents
			defer func() { agents <- agentURL }()

			// In-flight scripts finish even after batch cancellation, bounded
			// only by the per-script timeout.
			runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Engine.ScriptTimeout)
			defer cancel()

			res := r.repairOne(runCtx, path, agentURL)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return &BatchReport{Results: results}, nil
}

func (r *BatchRunner) repairOne(ctx context.Context, path, agentURL string) ScriptResult {
	res := ScriptResult{Path: path}
	logger := r.logger.With(zap.String("script", filepath.Base(path)), zap.String("agent", agentURL))

	bundle, err := script.LoadBundle(path)
	if err != nil {
		res.Err = err.Error()
		logger.Error("Failed to load script bundle.", zap.Error(err))
		return res
	}

	drv := device.NewClient(agentURL, r.cfg.Device, logger)
	eng := New(r.cfg, r.client, drv, drv, logger)

	repaired, err := eng.RepairScript(ctx, bundle)
	res.Summary = eng.Recorder().Summarize()
	if err != nil {
		res.Err = err.Error()
		logger.Error("Script repair aborted.", zap.Error(err))
		return res
	}

	if out, err := bundle.SaveRepaired(repaired); err != nil {
		res.Err = err.Error()
		logger.Error("Failed to persist repaired script.", zap.Error(err))
	} else {
		res.RepairedPath = out
	}

	logger.Info("Script repair finished.",
		zap.Int("resolved", res.Summary.Resolved),
		zap.Int("ambiguous", res.Summary.Ambiguous),
		zap.Int("unresolvable", res.Summary.Unresolvable))
	return res
}
