// File: api/schemas/script.go
package schemas

// ActionKind identifies the type of a recorded interaction.
type ActionKind string

const (
	ActionTap       ActionKind = "tap"
	ActionLongTap   ActionKind = "long_tap"
	ActionInputText ActionKind = "input_text"
	ActionSwipe     ActionKind = "swipe"
	ActionAssert    ActionKind = "assert"
	ActionBack      ActionKind = "back"
)

// AllActionKinds lists every supported action kind, in a stable order.
var AllActionKinds = []ActionKind{
	ActionTap, ActionLongTap, ActionInputText, ActionSwipe, ActionAssert, ActionBack,
}

// RequiresTarget reports whether actions of this kind address a specific
// element. Swipe and back are coordinate/key driven and carry no target.
func (k ActionKind) RequiresTarget() bool {
	switch k {
	case ActionSwipe, ActionBack:
		return false
	default:
		return true
	}
}

// TargetAttributes is the full attribute bundle of the element an action was
// recorded against. It is a value copy, never a live pointer: the tree it was
// captured from may no longer exist at repair time.
type TargetAttributes struct {
	ResourceID   string   `json:"resource_id,omitempty"`
	Class        string   `json:"class"`
	Text         string   `json:"text,omitempty"`
	Bounds       Rect     `json:"bounds"`
	Depth        int      `json:"depth"`
	Ordinal      int      `json:"ordinal"`
	AncestorPath []string `json:"ancestor_path,omitempty"`

	// Parent context, used by the aligner's container bonus.
	ParentResourceID string `json:"parent_resource_id,omitempty"`
	ParentClass      string `json:"parent_class,omitempty"`
}

// CaptureTarget copies the attributes of a live node into a detached bundle.
func CaptureTarget(n *ElementNode) *TargetAttributes {
	if n == nil {
		return nil
	}
	t := &TargetAttributes{
		ResourceID:   n.ResourceID,
		Class:        n.Class,
		Text:         n.Text,
		Bounds:       n.Bounds,
		Depth:        n.Depth,
		Ordinal:      n.Ordinal,
		AncestorPath: append([]string(nil), n.AncestorPath...),
	}
	if n.Parent != nil {
		t.ParentResourceID = n.Parent.ResourceID
		t.ParentClass = n.Parent.Class
	}
	return t
}

// RecordedAction is one step of a persisted interaction script. Immutable;
// repairs always operate on copies.
type RecordedAction struct {
	Kind   ActionKind        `json:"kind"`
	Target *TargetAttributes `json:"target,omitempty"`
	// Parameters carries kind-specific extras, e.g. "text" for input_text or
	// "fx"/"fy"/"tx"/"ty" for swipe.
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Clone returns a deep copy of the action.
func (a RecordedAction) Clone() RecordedAction {
	out := RecordedAction{Kind: a.Kind}
	if a.Target != nil {
		t := *a.Target
		t.AncestorPath = append([]string(nil), a.Target.AncestorPath...)
		out.Target = &t
	}
	if a.Parameters != nil {
		out.Parameters = make(map[string]string, len(a.Parameters))
		for k, v := range a.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}

// Script is an ordered sequence of recorded actions for one app package.
type Script struct {
	Package string           `json:"package,omitempty"`
	Actions []RecordedAction `json:"actions"`
}
