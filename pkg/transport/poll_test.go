package transport

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/teleprompter-sync/pkg/state"
	"github.com/astromechza/teleprompter-sync/pkg/storage"
)

func saveSnapshot(t *testing.T, slot storage.Slot, snap state.Snapshot) {
	t.Helper()
	raw, err := state.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, slot.Save(context.Background(), raw))
}

func TestPollAvailability(t *testing.T) {
	assert.False(t, NewPollAdapter(nil, PollOptions{}).Available(), "no slot")

	slot := storage.NewMemorySlot()
	assert.True(t, NewPollAdapter(slot, PollOptions{}).Available())
	assert.False(t, NewPollAdapter(slot, PollOptions{FallbackFor: NewBus().Adapter("x")}).Available(),
		"bus available, poller stands down")

	var noBus *Bus
	assert.True(t, NewPollAdapter(slot, PollOptions{FallbackFor: noBus.Adapter("x")}).Available())
}

func TestPollEmitsForeignWrites(t *testing.T) {
	slot := storage.NewMemorySlot()
	initial := state.Default(nil, nil)
	saveSnapshot(t, slot, initial)

	p := NewPollAdapter(slot, PollOptions{Interval: 10 * time.Millisecond})
	rec := &recorder{}
	p.OnReceive(rec.receive)
	require.NoError(t, p.Start())
	defer p.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.all(), "starting contents are not news")

	changed := initial
	changed.FontSize = state.FontSizeSmall
	saveSnapshot(t, slot, changed)

	require.Eventually(t, func() bool {
		env, ok := rec.last()
		return ok && env.State.FontSize == state.FontSizeSmall
	}, time.Second, 5*time.Millisecond)
	env, _ := rec.last()
	assert.Equal(t, SlotOrigin, env.Origin)
	assert.Len(t, rec.all(), 1, "unchanged bytes are reported once")
}

// gatedSlot parks the next Load after it has read, once armed, until
// released.
type gatedSlot struct {
	*storage.MemorySlot

	mu      sync.Mutex
	armed   bool
	parked  chan struct{}
	release chan struct{}
}

func newGatedSlot() *gatedSlot {
	return &gatedSlot{
		MemorySlot: storage.NewMemorySlot(),
		parked:     make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (g *gatedSlot) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
}

func (g *gatedSlot) Load(ctx context.Context) ([]byte, error) {
	raw, err := g.MemorySlot.Load(ctx)
	g.mu.Lock()
	armed := g.armed
	g.armed = false
	g.mu.Unlock()
	if armed {
		close(g.parked)
		<-g.release
	}
	return raw, err
}

// saveOwn persists snap the way the coordinator does.
func saveOwn(t *testing.T, p *PollAdapter, slot storage.Slot, snap state.Snapshot) {
	t.Helper()
	raw, err := state.Marshal(snap)
	require.NoError(t, err)
	done := p.TrackWrite(raw)
	require.NoError(t, slot.Save(context.Background(), raw))
	done()
	require.NoError(t, p.Send(NewStateUpdate("me", snap)))
}

func TestPollSkipsOwnWrites(t *testing.T) {
	slot := storage.NewMemorySlot()
	p := NewPollAdapter(slot, PollOptions{Interval: time.Hour})
	rec := &recorder{}
	p.OnReceive(rec.receive)
	require.NoError(t, p.Start())
	defer p.Close()

	saveOwn(t, p, slot, state.Default(nil, nil))
	p.check(context.Background())
	assert.Empty(t, rec.all())
}

func TestPollDropsReadsOverlappingOwnSave(t *testing.T) {
	slot := newGatedSlot()
	p := NewPollAdapter(slot, PollOptions{Interval: time.Hour})
	rec := &recorder{}
	p.OnReceive(rec.receive)
	require.NoError(t, p.Start())
	defer p.Close()

	first := state.Default(nil, nil)
	first.ScrollSpeed = 10
	saveOwn(t, p, slot, first)

	slot.arm()
	checked := make(chan struct{})
	go func() {
		defer close(checked)
		p.check(context.Background())
	}()
	select {
	case <-slot.parked:
	case <-time.After(5 * time.Second):
		t.Fatal("read never started")
	}

	second := first
	second.ScrollSpeed = 20
	saveOwn(t, p, slot, second)
	close(slot.release)
	<-checked

	p.check(context.Background())
	assert.Empty(t, rec.all(), "neither the stale read nor our latest save is news")
}

func TestPollSeesForeignWriteRightAfterOwnSave(t *testing.T) {
	slot := storage.NewMemorySlot()
	p := NewPollAdapter(slot, PollOptions{Interval: time.Hour})
	rec := &recorder{}
	p.OnReceive(rec.receive)
	require.NoError(t, p.Start())
	defer p.Close()

	mine := state.Default(nil, nil)
	raw, err := state.Marshal(mine)
	require.NoError(t, err)
	done := p.TrackWrite(raw)
	require.NoError(t, slot.Save(context.Background(), raw))
	done()

	theirs := mine
	theirs.FontSize = state.FontSizeHuge
	saveSnapshot(t, slot, theirs)

	require.NoError(t, p.Send(NewStateUpdate("me", mine)))
	p.check(context.Background())
	env, ok := rec.last()
	require.True(t, ok, "foreign write delivered")
	assert.Equal(t, state.FontSizeHuge, env.State.FontSize)
}

func TestPollDiscardsMalformedSlot(t *testing.T) {
	slot := storage.NewMemorySlot()
	p := NewPollAdapter(slot, PollOptions{Interval: time.Hour})
	rec := &recorder{}
	p.OnReceive(rec.receive)
	require.NoError(t, p.Start())
	defer p.Close()

	require.NoError(t, slot.Save(context.Background(), []byte(`{"scrollSpeed":500,"fontSize":"huge"}`)))
	p.check(context.Background())
	require.NoError(t, slot.Save(context.Background(), []byte(`{not json`)))
	p.check(context.Background())
	assert.Empty(t, rec.all())

	good := state.Default(nil, nil)
	good.ScrollSpeed = 30
	saveSnapshot(t, slot, good)
	p.check(context.Background())
	env, ok := rec.last()
	require.True(t, ok)
	assert.Equal(t, 30, env.State.ScrollSpeed)
}

func TestPollCloseWaitsForWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	p := NewPollAdapter(storage.NewFileSlot(path), PollOptions{Interval: time.Hour})
	require.NoError(t, p.Start())
	require.NotNil(t, p.wake)
	require.NoError(t, p.Close())

	select {
	case _, ok := <-p.wake:
		assert.False(t, ok, "watch channel closed once Close returns")
	default:
		t.Fatal("watch channel still open after Close")
	}
}

func TestPollWakesOnFileWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	p := NewPollAdapter(storage.NewFileSlot(path), PollOptions{Interval: time.Hour})
	rec := &recorder{}
	p.OnReceive(rec.receive)
	require.NoError(t, p.Start())
	defer p.Close()

	snap := state.Default(nil, nil)
	snap.AutoScrolling = true
	saveSnapshot(t, storage.NewFileSlot(path), snap)

	require.Eventually(t, func() bool {
		env, ok := rec.last()
		return ok && env.State.AutoScrolling
	}, 5*time.Second, 10*time.Millisecond)
}
