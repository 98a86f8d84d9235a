package aligner

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/config"
	"github.com/entropydec/gsrb/internal/snapshot"
)

func testAligner(t *testing.T) *Aligner {
	t.Helper()
	cfg := config.NewDefaultConfig()
	return New(cfg.Scorer, cfg.Aligner, zap.NewNop())
}

func parseXML(t *testing.T, xml string) *schemas.Snapshot {
	t.Helper()
	snap, err := snapshot.Parse(xml, "")
	require.NoError(t, err)
	return snap
}

func node(class, id, text, bounds string, children ...string) string {
	inner := ""
	for _, c := range children {
		inner += c
	}
	return fmt.Sprintf(`<node class=%q resource-id=%q text=%q bounds=%q package="com.example.app">%s</node>`,
		class, id, text, bounds, inner)
}

func screen(children ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><hierarchy rotation="0">` +
		node("android.widget.FrameLayout", "", "", "[0,0][1080,1920]", children...) +
		`</hierarchy>`
}

func findByID(t *testing.T, s *schemas.Snapshot, id string) *schemas.ElementNode {
	t.Helper()
	for _, n := range s.Flatten() {
		if n.ResourceID == id {
			return n
		}
	}
	t.Fatalf("no node with id %q", id)
	return nil
}

func TestAlignTargetExactMatchScoresOne(t *testing.T) {
	a := testAligner(t)
	before := parseXML(t, screen(
		node("android.widget.Button", "com.example.app:id/login_btn", "Log in", "[100,800][500,900]"),
	))
	after := parseXML(t, screen(
		node("android.widget.Button", "com.example.app:id/login_btn", "Log in", "[100,800][500,900]"),
	))
	target := schemas.CaptureTarget(findByID(t, before, "com.example.app:id/login_btn"))

	cands := a.AlignTarget(target, after)

	require.NotEmpty(t, cands)
	assert.Equal(t, 1.0, cands[0].Score)
	assert.Equal(t, "com.example.app:id/login_btn", cands[0].Element.ResourceID)
}

func TestAlignTargetSurvivesIdentifierRename(t *testing.T) {
	a := testAligner(t)
	before := parseXML(t, screen(
		node("android.widget.LinearLayout", "com.example.app:id/form", "", "[0,700][1080,1000]",
			node("android.widget.Button", "com.example.app:id/login_btn", "Log in", "[100,800][500,900]"),
		),
	))
	after := parseXML(t, screen(
		node("android.widget.LinearLayout", "com.example.app:id/form", "", "[0,700][1080,1000]",
			node("android.widget.Button", "com.example.app:id/signin_btn", "Log in", "[100,800][500,900]"),
		),
	))
	target := schemas.CaptureTarget(findByID(t, before, "com.example.app:id/login_btn"))

	cands := a.AlignTarget(target, after)

	require.NotEmpty(t, cands)
	assert.Equal(t, "com.example.app:id/signin_btn", cands[0].Element.ResourceID)
	assert.GreaterOrEqual(t, cands[0].Score, 0.6, "text, type, geometry and context must carry the rename")
	assert.Positive(t, cands[0].Breakdown.ContextBonus, "same parent container should add the bonus")
}

func TestAlignTargetOrdersTwinsByDistance(t *testing.T) {
	a := testAligner(t)
	before := parseXML(t, screen(
		node("android.widget.Button", "", "OK", "[10,10][50,30]"),
	))
	// Two attribute-identical twins; only geometry separates them.
	after := parseXML(t, screen(
		node("android.widget.Button", "", "OK", "[10,200][50,230]"),
		node("android.widget.Button", "", "OK", "[10,10][50,30]"),
	))
	target := schemas.CaptureTarget(before.Root.Children[0])

	cands := a.AlignTarget(target, after)

	require.Len(t, cands, 2)
	assert.Equal(t, schemas.Rect{X0: 10, Y0: 10, X1: 50, Y1: 30}, cands[0].Element.Bounds,
		"the twin at the recorded position ranks first")
	assert.Greater(t, cands[1].CenterDistance, cands[0].CenterDistance)
}

func TestAlignTargetDeterministic(t *testing.T) {
	a := testAligner(t)
	before := parseXML(t, screen(
		node("android.widget.Button", "", "OK", "[10,10][50,30]"),
	))
	after := parseXML(t, screen(
		node("android.widget.Button", "", "OK", "[10,10][50,30]"),
		node("android.widget.Button", "", "OK", "[10,10][50,30]"),
		node("android.widget.Button", "", "OK", "[10,10][50,30]"),
	))
	target := schemas.CaptureTarget(before.Root.Children[0])

	first := a.AlignTarget(target, after)
	require.Len(t, first, 3)
	ignoreLiveNodes := cmpopts.IgnoreFields(schemas.AlignmentCandidate{}, "Element")
	for i := 0; i < 10; i++ {
		again := a.AlignTarget(target, after)
		if diff := cmp.Diff(first, again, ignoreLiveNodes); diff != "" {
			t.Fatalf("ranking changed between runs (-first +again):\n%s", diff)
		}
	}
	// Perfect twins fall back to traversal order.
	assert.Less(t, first[0].FlatIndex, first[1].FlatIndex)
	assert.Less(t, first[1].FlatIndex, first[2].FlatIndex)
}

func TestAlignTargetFloorCutsHopelessCandidates(t *testing.T) {
	a := testAligner(t)
	before := parseXML(t, screen(
		node("android.widget.Button", "com.example.app:id/login_btn", "Log in", "[100,800][500,900]"),
	))
	after := parseXML(t, screen(
		node("android.widget.ImageView", "com.example.app:id/hero_image", "", "[0,0][1080,600]"),
	))
	target := schemas.CaptureTarget(findByID(t, before, "com.example.app:id/login_btn"))

	cands := a.AlignTarget(target, after)

	for _, c := range cands {
		assert.GreaterOrEqual(t, c.Score, 0.3)
	}
}

func TestAlignTargetNilInputs(t *testing.T) {
	a := testAligner(t)
	after := parseXML(t, screen(node("android.widget.Button", "", "OK", "[10,10][50,30]")))

	assert.Nil(t, a.AlignTarget(nil, after))
	assert.Nil(t, a.AlignTarget(&schemas.TargetAttributes{Class: "android.widget.button"}, nil))
}
