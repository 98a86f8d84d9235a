// File: api/schemas/snapshot.go
package schemas

import (
	"math"
	"time"
)

// Rect is a screen rectangle in absolute pixel coordinates,
// top-left (X0, Y0) to bottom-right (X1, Y1).
type Rect struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int { return r.X1 - r.X0 }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int { return r.Y1 - r.Y0 }

// Center returns the geometric center of the rectangle.
func (r Rect) Center() (float64, float64) {
	return float64(r.X0+r.X1) / 2, float64(r.Y0+r.Y1) / 2
}

// Diagonal returns the length of the rectangle's diagonal.
func (r Rect) Diagonal() float64 {
	return math.Hypot(float64(r.Width()), float64(r.Height()))
}

// CenterDistance returns the Euclidean distance between the centers of two rectangles.
func (r Rect) CenterDistance(other Rect) float64 {
	ax, ay := r.Center()
	bx, by := other.Center()
	return math.Hypot(ax-bx, ay-by)
}

// IsZero reports whether the rectangle is the empty zero rectangle.
func (r Rect) IsZero() bool { return r == Rect{} }

// ElementNode is one normalized node of a captured UI hierarchy.
// Identity is only stable within its own Snapshot; cross-snapshot identity is
// always recomputed from attributes.
type ElementNode struct {
	// ResourceID is the normalized resource identifier, empty when the app did
	// not instrument the element. The "package:id/" prefix is preserved here;
	// comparisons strip it.
	ResourceID string `json:"resource_id,omitempty"`
	// Class is the widget class name, lower-cased during normalization.
	Class string `json:"class"`
	// Text is the visible text, whitespace-collapsed; empty means absent.
	Text   string `json:"text,omitempty"`
	Bounds Rect   `json:"bounds"`

	// Depth is the distance from the snapshot root (root = 0).
	Depth int `json:"depth"`
	// Ordinal is the index among the node's siblings in capture order.
	Ordinal int `json:"ordinal"`
	// AncestorPath holds the class names of all ancestors, root first.
	AncestorPath []string `json:"ancestor_path,omitempty"`

	Parent   *ElementNode   `json:"-"`
	Children []*ElementNode `json:"children,omitempty"`
}

// Leaf reports whether the node has no children.
func (n *ElementNode) Leaf() bool { return len(n.Children) == 0 }

// Snapshot is one immutable UI tree captured at a point in time.
type Snapshot struct {
	Root       *ElementNode `json:"root"`
	CapturedAt time.Time    `json:"captured_at"`
	// AppVersion is an opaque version tag supplied by the capture side.
	AppVersion string `json:"app_version,omitempty"`
}

// Flatten returns every node of the snapshot in deterministic depth-first,
// sibling-order-preserving traversal order.
func (s *Snapshot) Flatten() []*ElementNode {
	if s == nil || s.Root == nil {
		return nil
	}
	var out []*ElementNode
	var walk func(n *ElementNode)
	walk = func(n *ElementNode) {
		out = append(out, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(s.Root)
	return out
}

// ScreenBounds returns the bounds of the snapshot root, the best available
// approximation of the device screen.
func (s *Snapshot) ScreenBounds() Rect {
	if s == nil || s.Root == nil {
		return Rect{}
	}
	return s.Root.Bounds
}
