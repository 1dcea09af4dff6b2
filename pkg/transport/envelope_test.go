package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/teleprompter-sync/pkg/state"
)

func TestEnvelopeEncodeDecode(t *testing.T) {
	snap := state.Default(nil, nil)
	snap, _ = snap.WithItemAdded("i1", "healing", "Pray for Ann", "", 5)

	raw, err := Encode(NewStateUpdate("origin-a", snap))
	require.NoError(t, err)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeStateUpdate, env.Type)
	assert.Equal(t, "origin-a", env.Origin)
	assert.True(t, state.Equal(snap, env.State))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":       `{`,
		"not an object":  `[1,2]`,
		"missing state":  `{"type":"STATE_UPDATE","origin":"a"}`,
		"wrong type":     `{"type":"HELLO","origin":"a","state":{}}`,
		"partial state":  `{"type":"STATE_UPDATE","origin":"a","state":{"activeTabId":"prayers"}}`,
		"speed too high": `{"type":"STATE_UPDATE","origin":"a","state":{"activeTabId":"p","displayTabId":"p","tabs":[],"categories":[],"items":[],"scrollSpeed":101,"autoScrolling":false,"fontSize":"lg"}}`,
		"bad font":       `{"type":"STATE_UPDATE","origin":"a","state":{"activeTabId":"p","displayTabId":"p","tabs":[],"categories":[],"items":[],"scrollSpeed":1,"autoScrolling":false,"fontSize":"9xl"}}`,
		"item sans text": `{"type":"STATE_UPDATE","origin":"a","state":{"activeTabId":"p","displayTabId":"p","tabs":[],"categories":[],"items":[{"id":"i","categoryId":"c"}],"scrollSpeed":1,"autoScrolling":false,"fontSize":"lg"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	raw := `{"type":"STATE_UPDATE","origin":"a","extra":1,"state":{"activeTabId":"p","displayTabId":"p","tabs":[],"categories":[],"items":[],"scrollSpeed":1,"autoScrolling":true,"fontSize":"xl","theme":"dark"}}`
	env, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.True(t, env.State.AutoScrolling)
	assert.Equal(t, state.FontSizeExtraLarge, env.State.FontSize)
}

func TestDecodeSnapshot(t *testing.T) {
	snap := state.Default(nil, nil)
	snap.ScrollSpeed = 70
	raw, err := state.Marshal(snap)
	require.NoError(t, err)

	got, err := DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.True(t, state.Equal(snap, got))

	for name, raw := range map[string]string{
		"not json":      `{"scrollSpeed":`,
		"partial":       `{"scrollSpeed":500,"fontSize":"huge"}`,
		"an envelope":   string(mustEncode(t, NewStateUpdate("a", snap))),
		"speed too low": `{"activeTabId":"p","displayTabId":"p","tabs":[],"categories":[],"items":[],"scrollSpeed":-1,"autoScrolling":false,"fontSize":"lg"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func mustEncode(t *testing.T, env Envelope) []byte {
	t.Helper()
	raw, err := Encode(env)
	require.NoError(t, err)
	return raw
}
