package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	slot, err := Open("", "")
	require.NoError(t, err)
	assert.Nil(t, slot)

	slot, err = Open("memory://", "")
	require.NoError(t, err)
	assert.IsType(t, &MemorySlot{}, slot)

	slot, err = Open(filepath.Join(dir, "state.json"), "")
	require.NoError(t, err)
	require.IsType(t, &FileSlot{}, slot)
	assert.Equal(t, filepath.Join(dir, "state.json"), slot.(*FileSlot).Path())

	slot, err = Open("file://"+filepath.Join(dir, "other.json"), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "other.json"), slot.(*FileSlot).Path())

	slot, err = Open("sqlite://"+filepath.Join(dir, "state.db"), "main")
	require.NoError(t, err)
	require.IsType(t, &SQLSlot{}, slot)
	assert.Equal(t, "sqlite3", slot.(*SQLSlot).driver)
	assert.Equal(t, "main", slot.(*SQLSlot).name)

	slot, err = Open("postgres://user:pw@localhost/db?sslmode=disable", "")
	require.NoError(t, err)
	require.IsType(t, &SQLSlot{}, slot)
	assert.Equal(t, DefaultSlotName, slot.(*SQLSlot).name)
	assert.Equal(t, "$2", slot.(*SQLSlot).bind(2))

	_, err = Open("s3://bucket/key", "")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = Open("sqlite://", "")
	assert.ErrorIs(t, err, ErrInvalidDSN)
}

func exerciseSlot(t *testing.T, slot Slot) {
	t.Helper()
	ctx := context.Background()

	raw, err := slot.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, raw, "empty slot")

	require.NoError(t, slot.Save(ctx, []byte(`{"v":1}`)))
	require.NoError(t, slot.Save(ctx, []byte(`{"v":2}`)))
	raw, err = slot.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(raw))
	require.NoError(t, slot.Close())
}

func TestMemorySlot(t *testing.T) {
	exerciseSlot(t, NewMemorySlot())
}

func TestFileSlot(t *testing.T) {
	exerciseSlot(t, NewFileSlot(filepath.Join(t.TempDir(), "nested", "state.json")))
}

func TestSQLiteSlot(t *testing.T) {
	exerciseSlot(t, NewSQLiteSlot(filepath.Join(t.TempDir(), "state.db"), DefaultSlotName))
}

func TestSQLiteSlotsAreKeyedByName(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	a := NewSQLiteSlot(path, "a")
	b := NewSQLiteSlot(path, "b")
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Save(ctx, []byte("first")))
	raw, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, raw)

	require.NoError(t, b.Save(ctx, []byte("second")))
	raw, err = a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", string(raw))
}

func TestFileSlotWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()
	slot := NewFileSlot(filepath.Join(dir, "state.json"))
	writer := NewFileSlot(filepath.Join(dir, "state.json"))

	ch, err := slot.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, writer.Save(ctx, []byte("hello")))
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("no watch signal after write")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSQLiteSlotSurvivesCancelledFirstCall(t *testing.T) {
	slot := NewSQLiteSlot(filepath.Join(t.TempDir(), "state.db"), DefaultSlotName)
	defer slot.Close()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, slot.Save(cancelled, []byte("lost")))

	ctx := context.Background()
	require.NoError(t, slot.Save(ctx, []byte("kept")))
	raw, err := slot.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(raw))
}
