package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entropydec/gsrb/api/schemas"
)

const sampleDump = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <node class="android.widget.FrameLayout" resource-id="" text="" bounds="[0,0][1080,1920]" package="com.example.app">
    <node class="android.widget.LinearLayout" resource-id="com.example.app:id/form" text="" bounds="[0,700][1080,1000]" package="com.example.app">
      <node class="android.widget.Button" resource-id="com.example.app:id/login_btn" text="  Log   in " bounds="[100,800][500,900]" package="com.example.app"/>
      <node class="android.widget.ImageButton" resource-id="com.example.app:id/mic" text="" content-desc="Voice input" bounds="[600,800][700,900]" package="com.example.app"/>
    </node>
  </node>
  <node class="android.widget.FrameLayout" resource-id="" text="" bounds="[0,0][1080,60]" package="com.android.systemui"/>
</hierarchy>`

func TestParseSampleDump(t *testing.T) {
	snap, err := Parse(sampleDump, "1.2.3")
	require.NoError(t, err)
	require.NotNil(t, snap.Root)

	assert.Equal(t, "1.2.3", snap.AppVersion)
	assert.False(t, snap.CapturedAt.IsZero())
	assert.Equal(t, schemas.Rect{X1: 1080, Y1: 1920}, snap.ScreenBounds())

	flat := snap.Flatten()
	require.Len(t, flat, 4, "system UI windows are dropped")

	button := flat[2]
	assert.Equal(t, "android.widget.button", button.Class, "classes are lower-cased")
	assert.Equal(t, "Log in", button.Text, "whitespace is collapsed")
	assert.Equal(t, schemas.Rect{X0: 100, Y0: 800, X1: 500, Y1: 900}, button.Bounds)
	assert.Equal(t, 2, button.Depth)
	assert.Equal(t, 0, button.Ordinal)
	assert.Equal(t, []string{"android.widget.framelayout", "android.widget.linearlayout"}, button.AncestorPath)
	assert.Same(t, flat[1], button.Parent)

	mic := flat[3]
	assert.Equal(t, "Voice input", mic.Text, "content-desc backs empty text")
	assert.Equal(t, 1, mic.Ordinal)
}

func TestParseMalformedDumps(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"not xml", "this is not xml <<<"},
		{"no hierarchy element", `<?xml version="1.0"?><other/>`},
		{"no application window", `<hierarchy><node class="x" bounds="[0,0][1,1]" package="com.android.systemui"/></hierarchy>`},
		{"empty hierarchy", `<hierarchy/>`},
		{
			"two roots",
			`<hierarchy>` +
				`<node class="a" bounds="[0,0][1,1]" package="com.example.app"/>` +
				`<node class="b" bounds="[0,0][1,1]" package="com.example.app"/>` +
				`</hierarchy>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.xml, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseBounds(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want schemas.Rect
	}{
		{"plain", "[0,0][1080,1920]", schemas.Rect{X1: 1080, Y1: 1920}},
		{"offsets", "[100,800][500,900]", schemas.Rect{X0: 100, Y0: 800, X1: 500, Y1: 900}},
		{"inner spaces", "[10, 20][30, 40]", schemas.Rect{X0: 10, Y0: 20, X1: 30, Y1: 40}},
		{"garbage", "bounds?", schemas.Rect{}},
		{"empty", "", schemas.Rect{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBounds(tt.in))
		})
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "Log in", NormalizeText("  Log \n  in "))
	assert.Equal(t, "", NormalizeText("   "))
}

func TestEqual(t *testing.T) {
	a, err := Parse(sampleDump, "")
	require.NoError(t, err)
	b, err := Parse(sampleDump, "other-version")
	require.NoError(t, err)

	assert.True(t, Equal(a, b), "version tags do not affect structural equality")

	b.Root.Children[0].Children[0].Text = "Sign in"
	assert.False(t, Equal(a, b))

	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(a, nil))
}

func TestValidateRejectsBrokenParentLink(t *testing.T) {
	snap, err := Parse(sampleDump, "")
	require.NoError(t, err)
	require.NoError(t, Validate(snap))

	snap.Root.Children[0].Parent = nil
	err = Validate(snap)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDigest(t *testing.T) {
	snap, err := Parse(sampleDump, "")
	require.NoError(t, err)
	button := snap.Flatten()[2]

	d := Digest(button)
	assert.Contains(t, d, "login_btn")
	assert.Contains(t, d, "Log in")
	assert.Contains(t, d, "[100,800][500,900]")

	dt := DigestTarget(schemas.CaptureTarget(button))
	assert.Equal(t, d, dt)
	assert.Equal(t, "<no target>", DigestTarget(nil))
}
