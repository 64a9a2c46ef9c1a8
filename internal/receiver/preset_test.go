package receiver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
)

func TestPresetSet_Apply(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg, _, _ := newRegistry(t)
	manual, err := reg.Register(ctx, spec("com.x.MANUAL", "M"))
	require.NoError(t, err)

	set := receiver.NewPresetSet(reg)
	require.NoError(t, set.Apply(ctx, []receiver.Preset{
		{ID: "a", Spec: spec("com.x.A", "EA", "X")},
		{ID: "b", Spec: spec("com.x.B", "EB", "X")},
	}))
	assert.Equal(t, 3, reg.Len())
	first := set.Handles()
	require.Len(t, first, 2)

	rcv, ok := reg.Get(first["a"])
	require.True(t, ok)
	assert.Equal(t, "preset:a", rcv.Source())

	// a changes, b goes away, c is new.
	require.NoError(t, set.Apply(ctx, []receiver.Preset{
		{ID: "a", Spec: spec("com.x.A", "EA", "X", "Y")},
		{ID: "c", Spec: spec("com.x.C", "EC")},
	}))
	second := set.Handles()
	assert.Len(t, second, 2)
	assert.NotEqual(t, first["a"], second["a"])
	_, stillThere := reg.Get(first["b"])
	assert.False(t, stillThere)
	_, manualKept := reg.Get(manual)
	assert.True(t, manualKept, "receivers outside the set are untouched")
	assert.Equal(t, 3, reg.Len())

	// Re-applying the same list is a no-op.
	require.NoError(t, set.Apply(ctx, []receiver.Preset{
		{ID: "a", Spec: spec("com.x.A", "EA", "X", "Y")},
		{ID: "c", Spec: spec("com.x.C", "EC")},
	}))
	assert.Equal(t, second, set.Handles())
}

func TestPresetSet_ReportsFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg, _, _ := newRegistry(t)
	set := receiver.NewPresetSet(reg)

	err := set.Apply(ctx, []receiver.Preset{
		{ID: "good", Spec: spec("com.x.A", "E")},
		{ID: "bad", Spec: spec("bad filter", "E")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preset bad")
	assert.Equal(t, 1, reg.Len())
	assert.Contains(t, set.Handles(), "good")
}
