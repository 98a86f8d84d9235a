package disambiguator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/config"
)

// stubClient returns a canned response or error and records the request.
type stubClient struct {
	response string
	err      error
	delay    time.Duration
	lastReq  schemas.GenerationRequest
	calls    int
}

func (s *stubClient) GenerateResponse(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	s.calls++
	s.lastReq = req
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.response, s.err
}

func testDisambiguator(client schemas.LLMClient) *Disambiguator {
	cfg := config.NewDefaultConfig()
	cfg.Disambiguator.Enabled = true
	cfg.Disambiguator.Timeout = 200 * time.Millisecond
	return New(client, cfg.Disambiguator, cfg.LLM, zap.NewNop())
}

func candidates(scores ...float64) []schemas.AlignmentCandidate {
	out := make([]schemas.AlignmentCandidate, len(scores))
	for i, s := range scores {
		out[i] = schemas.AlignmentCandidate{
			Element: &schemas.ElementNode{Class: "android.widget.button", Text: "OK"},
			Target:  schemas.TargetAttributes{Class: "android.widget.button", Text: "OK"},
			Score:   s,
		}
	}
	return out
}

func target() *schemas.TargetAttributes {
	return &schemas.TargetAttributes{Class: "android.widget.button", Text: "OK"}
}

func TestShouldInvoke(t *testing.T) {
	tests := []struct {
		name   string
		cands  []schemas.AlignmentCandidate
		enable bool
		client schemas.LLMClient
		want   bool
	}{
		{"near tie", candidates(0.80, 0.78), true, &stubClient{}, true},
		{"clear leader", candidates(0.90, 0.60), true, &stubClient{}, false},
		{"single candidate", candidates(0.90), true, &stubClient{}, false},
		{"no candidates", nil, true, &stubClient{}, false},
		{"disabled", candidates(0.80, 0.78), false, &stubClient{}, false},
		{"nil client", candidates(0.80, 0.78), true, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDisambiguator(tt.client)
			if !tt.enable {
				d.cfg.Enabled = false
			}
			assert.Equal(t, tt.want, d.ShouldInvoke(tt.cands))
		})
	}
}

func TestDisambiguatePicksCandidate(t *testing.T) {
	client := &stubClient{response: `{"choice": 1}`}
	d := testDisambiguator(client)

	dec := d.Disambiguate(context.Background(), target(), candidates(0.80, 0.79, 0.78))

	assert.False(t, dec.Deferred)
	assert.Equal(t, 1, dec.Index)
	require.NotNil(t, dec.Exchange)
	assert.Equal(t, `{"choice": 1}`, dec.Exchange.Response)
	assert.True(t, client.lastReq.Options.ForceJSONFormat)
}

func TestDisambiguateHandlesFencedReply(t *testing.T) {
	client := &stubClient{response: "```json\n{\"choice\": 0}\n```"}
	d := testDisambiguator(client)

	dec := d.Disambiguate(context.Background(), target(), candidates(0.80, 0.79))

	assert.False(t, dec.Deferred)
	assert.Equal(t, 0, dec.Index)
}

func TestDisambiguateDefersOnError(t *testing.T) {
	client := &stubClient{err: errors.New("boom")}
	d := testDisambiguator(client)

	dec := d.Disambiguate(context.Background(), target(), candidates(0.80, 0.79))

	assert.True(t, dec.Deferred)
	require.NotNil(t, dec.Exchange)
	assert.Contains(t, dec.Exchange.Err, "boom")
}

func TestDisambiguateDefersOnTimeout(t *testing.T) {
	client := &stubClient{response: `{"choice": 0}`, delay: time.Second}
	d := testDisambiguator(client)

	start := time.Now()
	dec := d.Disambiguate(context.Background(), target(), candidates(0.80, 0.79))

	assert.True(t, dec.Deferred)
	assert.Less(t, time.Since(start), time.Second, "timeout must cut the call short")
}

func TestDisambiguateDefersOnMalformedReply(t *testing.T) {
	client := &stubClient{response: "the second one looks right"}
	d := testDisambiguator(client)

	dec := d.Disambiguate(context.Background(), target(), candidates(0.80, 0.79))

	assert.True(t, dec.Deferred)
	require.NotNil(t, dec.Exchange)
	assert.NotEmpty(t, dec.Exchange.Err)
}

func TestDisambiguateDefersOnOutOfRangeChoice(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"declined", `{"choice": -1}`},
		{"beyond top-k", `{"choice": 7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDisambiguator(&stubClient{response: tt.response})
			dec := d.Disambiguate(context.Background(), target(), candidates(0.80, 0.79))
			assert.True(t, dec.Deferred)
		})
	}
}

func TestDisambiguateNilClientDefersImmediately(t *testing.T) {
	d := testDisambiguator(nil)
	dec := d.Disambiguate(context.Background(), target(), candidates(0.80, 0.79))
	assert.True(t, dec.Deferred)
	assert.Nil(t, dec.Exchange)
}

func TestDisambiguateRespectsTopK(t *testing.T) {
	client := &stubClient{response: `{"choice": 0}`}
	d := testDisambiguator(client)

	d.Disambiguate(context.Background(), target(), candidates(0.80, 0.79, 0.78, 0.77, 0.76))

	assert.Contains(t, client.lastReq.UserPrompt, "2:")
	assert.NotContains(t, client.lastReq.UserPrompt, "3:", "prompt lists at most top_k candidates")
}
