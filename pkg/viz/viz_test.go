package viz

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/teleprompter-sync/pkg/state"
)

func TestRenderSnapshot(t *testing.T) {
	snap := state.Default(nil, nil)
	snap, _ = snap.WithItemAdded("i1", "healing", "Pray for Ann", "", 0)
	snap, _ = snap.WithItemAdded("i2", "family", "The Jones family", "", 0)

	var buff bytes.Buffer
	require.NoError(t, RenderSnapshot(snap, &buff))
	out := buff.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "Pray for Ann")
	assert.Contains(t, out, "Prayer Requests")
}

func TestRenderToTemp(t *testing.T) {
	path, err := RenderToTemp(state.Default(nil, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(path) })
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
