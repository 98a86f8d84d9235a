// File: internal/snapshot/snapshot.go
//
// Package snapshot turns raw device hierarchy dumps (uiautomator XML) into
// the normalized, immutable Snapshot model the rest of the engine works on.
package snapshot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/entropydec/gsrb/api/schemas"
)

// ErrMalformed marks a dump that violates the tree invariants (no root,
// multiple roots, unparseable structure). Fatal for the current repair
// attempt only; batch runs continue with sibling scripts.
var ErrMalformed = errors.New("malformed snapshot")

// boundsPattern matches the uiautomator bounds encoding "[x0,y0][x1,y1]".
var boundsPattern = regexp.MustCompile(`^\s*\[(\d+)\s*,\s*(\d+)\]\[(\d+)\s*,\s*(\d+)\]\s*$`)

var spacePattern = regexp.MustCompile(`\s+`)

// systemPackages are window sources that never belong to the app under test.
var systemPackages = map[string]bool{
	"com.android.systemui": true,
}

// NormalizeText trims and collapses internal whitespace. Empty results stay
// empty so absence and presence are distinguishable downstream.
func NormalizeText(s string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
}

// NormalizeClass lower-cases and trims a class name so type comparison is
// stable across captures.
func NormalizeClass(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseBounds decodes the "[x0,y0][x1,y1]" bounds attribute. The zero Rect is
// returned for anything unparseable, matching how capture-side glitches were
// treated by the recorder.
func ParseBounds(s string) schemas.Rect {
	m := boundsPattern.FindStringSubmatch(s)
	if m == nil {
		return schemas.Rect{}
	}
	atoi := func(v string) int {
		n, _ := strconv.Atoi(v)
		return n
	}
	return schemas.Rect{X0: atoi(m[1]), Y0: atoi(m[2]), X1: atoi(m[3]), Y1: atoi(m[4])}
}

// Parse converts a raw uiautomator hierarchy dump into a normalized Snapshot.
// System-UI windows are discarded. The result must contain exactly one root
// node; anything else is ErrMalformed.
func Parse(xml string, appVersion string) (*schemas.Snapshot, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	hierarchy := doc.SelectElement("hierarchy")
	if hierarchy == nil {
		return nil, fmt.Errorf("%w: missing hierarchy element", ErrMalformed)
	}

	var roots []*schemas.ElementNode
	for _, el := range hierarchy.SelectElements("node") {
		if systemPackages[el.SelectAttrValue("package", "")] {
			continue
		}
		roots = append(roots, buildNode(el, nil, 0, len(roots)))
	}

	switch len(roots) {
	case 0:
		return nil, fmt.Errorf("%w: no application window in dump", ErrMalformed)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %d root nodes, want exactly one", ErrMalformed, len(roots))
	}

	snap := &schemas.Snapshot{
		Root:       roots[0],
		CapturedAt: time.Now().UTC(),
		AppVersion: appVersion,
	}
	if err := Validate(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func buildNode(el *etree.Element, parent *schemas.ElementNode, depth, ordinal int) *schemas.ElementNode {
	n := &schemas.ElementNode{
		ResourceID: NormalizeText(el.SelectAttrValue("resource-id", "")),
		Class:      NormalizeClass(el.SelectAttrValue("class", "")),
		Text:       NormalizeText(el.SelectAttrValue("text", "")),
		Bounds:     ParseBounds(el.SelectAttrValue("bounds", "")),
		Depth:      depth,
		Ordinal:    ordinal,
		Parent:     parent,
	}
	// Accessibility descriptions carry the visible label for icon-only
	// widgets; fold them into the text signal when no text is present.
	if n.Text == "" {
		n.Text = NormalizeText(el.SelectAttrValue("content-desc", ""))
	}
	if parent != nil {
		n.AncestorPath = append(append([]string(nil), parent.AncestorPath...), parent.Class)
	}
	for i, child := range el.SelectElements("node") {
		n.Children = append(n.Children, buildNode(child, n, depth+1, i))
	}
	return n
}

// Validate checks the structural invariants of a snapshot: a single root and
// consistent parent links, no cycles. Violations are ErrMalformed.
func Validate(s *schemas.Snapshot) error {
	if s == nil || s.Root == nil {
		return fmt.Errorf("%w: nil snapshot", ErrMalformed)
	}
	if s.Root.Parent != nil {
		return fmt.Errorf("%w: root has a parent", ErrMalformed)
	}
	seen := make(map[*schemas.ElementNode]bool)
	var walk func(n *schemas.ElementNode) error
	walk = func(n *schemas.ElementNode) error {
		if seen[n] {
			return fmt.Errorf("%w: node reachable twice", ErrMalformed)
		}
		seen[n] = true
		for _, c := range n.Children {
			if c.Parent != n {
				return fmt.Errorf("%w: broken parent link at depth %d", ErrMalformed, c.Depth)
			}
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(s.Root)
}

// Equal reports whether two snapshots describe attribute-identical trees.
// Capture timestamps and version tags are ignored; only structure and
// normalized attributes count.
func Equal(a, b *schemas.Snapshot) bool {
	if a == nil || b == nil {
		return a == b
	}
	return nodeEqual(a.Root, b.Root)
}

func nodeEqual(a, b *schemas.ElementNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ResourceID != b.ResourceID || a.Class != b.Class || a.Text != b.Text || a.Bounds != b.Bounds {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !nodeEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// Digest renders a node's key attributes as a compact single line, used in
// logs and in the disambiguator prompt.
func Digest(n *schemas.ElementNode) string {
	return fmt.Sprintf("class=%q id=%q text=%q bounds=[%d,%d][%d,%d]",
		n.Class, n.ResourceID, n.Text,
		n.Bounds.X0, n.Bounds.Y0, n.Bounds.X1, n.Bounds.Y1)
}

// DigestTarget is Digest for a detached recorded-target bundle.
func DigestTarget(t *schemas.TargetAttributes) string {
	if t == nil {
		return "<no target>"
	}
	return fmt.Sprintf("class=%q id=%q text=%q bounds=[%d,%d][%d,%d]",
		t.Class, t.ResourceID, t.Text,
		t.Bounds.X0, t.Bounds.Y0, t.Bounds.X1, t.Bounds.Y1)
}
