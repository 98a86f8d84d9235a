// File: internal/disambiguator/disambiguator.go
//
// Package disambiguator consults an external language model when the top
// alignment candidates score too close to call. The classifier is advisory:
// every failure mode (disabled, timeout, malformed reply, out-of-range
// choice) defers back to the deterministic pipeline instead of failing the
// repair.
package disambiguator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/config"
	"github.com/entropydec/gsrb/internal/llmutil"
	"github.com/entropydec/gsrb/internal/snapshot"
)

const systemPrompt = `You resolve ambiguous UI element matches for automated test repair.
You are given the element a test step was recorded against, and a numbered list
of candidate elements from the current screen. Pick the candidate most likely to
be the same logical widget the recording referred to.
Respond with JSON only: {"choice": <number>}. Use {"choice": -1} if no candidate
is a plausible counterpart.`

// Decision is the outcome of one classifier consultation. Deferred means the
// pipeline should fall back to its deterministic ordering; Index is only
// meaningful when Deferred is false.
type Decision struct {
	Index    int
	Deferred bool
	Exchange *schemas.LLMExchange
}

// Disambiguator wraps the LLM collaborator behind the advisory contract.
type Disambiguator struct {
	client schemas.LLMClient
	cfg    config.DisambiguatorConfig
	temp   float32
	logger *zap.Logger
}

// New builds a Disambiguator. A nil client is valid and makes every
// consultation defer immediately.
func New(client schemas.LLMClient, cfg config.DisambiguatorConfig, llmCfg config.LLMConfig, logger *zap.Logger) *Disambiguator {
	return &Disambiguator{
		client: client,
		cfg:    cfg,
		temp:   llmCfg.Temperature,
		logger: logger.Named("disambiguator"),
	}
}

// ShouldInvoke reports whether the candidate ranking is too close to decide
// deterministically: at least two candidates with a top-2 score gap inside
// the ambiguity margin.
func (d *Disambiguator) ShouldInvoke(cands []schemas.AlignmentCandidate) bool {
	if !d.cfg.Enabled || d.client == nil || len(cands) < 2 {
		return false
	}
	return cands[0].Score-cands[1].Score < d.cfg.AmbiguityMargin
}

// Disambiguate asks the classifier to pick among the top-k candidates. The
// call is bounded by the configured timeout; the verbatim exchange is always
// returned for the backtrace, even on failure.
func (d *Disambiguator) Disambiguate(ctx context.Context, target *schemas.TargetAttributes, cands []schemas.AlignmentCandidate) Decision {
	if d.client == nil || len(cands) == 0 {
		return Decision{Deferred: true}
	}

	top := cands
	if len(top) > d.cfg.TopK {
		top = top[:d.cfg.TopK]
	}

	prompt := d.buildPrompt(target, top)
	exchange := &schemas.LLMExchange{Prompt: prompt}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	resp, err := d.client.GenerateResponse(callCtx, schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		Options: schemas.GenerationOptions{
			Temperature:     d.temp,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		exchange.Err = err.Error()
		d.logger.Warn("Classifier unreachable; deferring to deterministic ordering.", zap.Error(err))
		return Decision{Deferred: true, Exchange: exchange}
	}
	exchange.Response = resp

	type choicePayload struct {
		Choice int `json:"choice"`
	}
	parsed, err := llmutil.ParseJSONResponse[choicePayload](resp)
	if err != nil {
		exchange.Err = err.Error()
		d.logger.Warn("Classifier reply unparseable; deferring.", zap.Error(err))
		return Decision{Deferred: true, Exchange: exchange}
	}

	if parsed.Choice < 0 || parsed.Choice >= len(top) {
		d.logger.Info("Classifier declined to pick a candidate.", zap.Int("choice", parsed.Choice))
		return Decision{Deferred: true, Exchange: exchange}
	}

	d.logger.Info("Classifier resolved ambiguity.",
		zap.Int("choice", parsed.Choice),
		zap.Float64("score", top[parsed.Choice].Score))
	return Decision{Index: parsed.Choice, Exchange: exchange}
}

func (d *Disambiguator) buildPrompt(target *schemas.TargetAttributes, top []schemas.AlignmentCandidate) string {
	var b strings.Builder
	b.WriteString("Recorded element:\n  ")
	b.WriteString(snapshot.DigestTarget(target))
	b.WriteString("\n\nCandidates:\n")
	for i, c := range top {
		fmt.Fprintf(&b, "  %d: %s (score %.3f)\n", i, snapshot.Digest(c.Element), c.Score)
	}
	return b.String()
}
