package backtrace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entropydec/gsrb/api/schemas"
)

func tapAction(id string) schemas.RecordedAction {
	return schemas.RecordedAction{
		Kind:   schemas.ActionTap,
		Target: &schemas.TargetAttributes{ResourceID: id, Class: "android.widget.button"},
	}
}

func verdict(kind schemas.VerdictKind) schemas.RepairVerdict {
	return schemas.RepairVerdict{Kind: kind}
}

func TestRecorderPreservesAppendOrder(t *testing.T) {
	r := NewRecorder()

	r.Append(0, tapAction("a"), verdict(schemas.VerdictResolved), nil, nil)
	r.Append(1, tapAction("b"), verdict(schemas.VerdictAmbiguous), nil, nil)
	r.Append(2, tapAction("c"), verdict(schemas.VerdictUnresolvable), nil, nil)

	entries := r.Export()
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i, e.StepIndex)
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.False(t, entries[1].Timestamp.Before(entries[0].Timestamp))
	assert.False(t, entries[2].Timestamp.Before(entries[1].Timestamp))
}

func TestRecorderExportIsACopy(t *testing.T) {
	r := NewRecorder()
	r.Append(0, tapAction("a"), verdict(schemas.VerdictResolved), nil, nil)

	first := r.Export()
	r.Append(1, tapAction("b"), verdict(schemas.VerdictResolved), nil, nil)

	assert.Len(t, first, 1, "earlier export must not grow")
	assert.Len(t, r.Export(), 2)

	// Mutating the export leaves the recorder untouched.
	first[0].StepIndex = 99
	assert.Equal(t, 0, r.Export()[0].StepIndex)
}

func TestRecorderAppendClonesAction(t *testing.T) {
	r := NewRecorder()
	action := tapAction("a")
	r.Append(0, action, verdict(schemas.VerdictResolved), nil, nil)

	action.Target.ResourceID = "mutated"

	assert.Equal(t, "a", r.Export()[0].Action.Target.ResourceID)
}

func TestRecorderSummarize(t *testing.T) {
	r := NewRecorder()
	r.Append(0, tapAction("a"), verdict(schemas.VerdictResolved), nil, nil)
	r.Append(1, tapAction("b"), verdict(schemas.VerdictResolved), nil, nil)
	r.Append(2, tapAction("c"), verdict(schemas.VerdictAmbiguous), nil, nil)
	r.Append(3, tapAction("d"), verdict(schemas.VerdictUnresolvable), nil, nil)

	s := r.Summarize()
	assert.Equal(t, r.RunID(), s.RunID)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Resolved)
	assert.Equal(t, 1, s.Ambiguous)
	assert.Equal(t, 1, s.Unresolvable)
}

func TestRecorderRunIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewRecorder().RunID(), NewRecorder().RunID())
}

func TestRecorderConcurrentAppends(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Append(i, tapAction("a"), verdict(schemas.VerdictResolved), nil, nil)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
