package transport

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/astromechza/teleprompter-sync/pkg/state"
	"github.com/astromechza/teleprompter-sync/pkg/storage"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	// SlotOrigin tags envelopes read back from the persisted slot, whose
	// writer is unknown.
	SlotOrigin = "slot"
)

type PollOptions struct {
	Interval time.Duration
	// FallbackFor makes the poller available only while that adapter is not.
	FallbackFor Adapter
	Logger      *slog.Logger
}

// WriteTracker is implemented by adapters that read back the slot the
// coordinator persists to. TrackWrite is called with the bytes about to be
// saved; the returned func is called once the save has returned.
type WriteTracker interface {
	TrackWrite(raw []byte) (done func())
}

// PollAdapter watches the persisted slot for writes made by other processes.
// It never writes the slot itself: persistence belongs to the coordinator.
type PollAdapter struct {
	slot storage.Slot
	opts PollOptions

	mu       sync.Mutex
	recv     func(Envelope)
	lastSeen []byte
	// writes counts saves begun or finished by this process; writing counts
	// the ones still in flight. A read overlapping either is stale.
	writes  uint64
	writing int

	cancel context.CancelFunc
	wake   <-chan struct{}
	wg     sync.WaitGroup
}

func NewPollAdapter(slot storage.Slot, opts PollOptions) *PollAdapter {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &PollAdapter{slot: slot, opts: opts}
}

func (p *PollAdapter) Name() string {
	return "poll"
}

func (p *PollAdapter) Available() bool {
	if p.slot == nil {
		return false
	}
	return p.opts.FallbackFor == nil || !p.opts.FallbackFor.Available()
}

func (p *PollAdapter) OnReceive(fn func(Envelope)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recv = fn
}

func (p *PollAdapter) Start() error {
	if !p.Available() {
		return ErrUnavailable
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	if raw, err := p.slot.Load(ctx); err != nil {
		p.opts.Logger.Warn("initial slot read failed", "err", err)
	} else {
		p.setSeen(raw)
	}

	var wake <-chan struct{}
	if w, ok := p.slot.(storage.Watchable); ok {
		if ch, err := w.Watch(ctx); err != nil {
			p.opts.Logger.Warn("slot watch unavailable, polling only", "err", err)
		} else {
			wake = ch
		}
	}
	p.wake = wake

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(p.opts.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				p.check(ctx)
			case _, ok := <-wake:
				if !ok {
					wake = nil
					continue
				}
				p.check(ctx)
			}
		}
	}()
	return nil
}

// Send records the serialised snapshot as already seen, so a later read of
// the same bytes is not handed back. The slot itself is never re-read here.
func (p *PollAdapter) Send(env Envelope) error {
	if p.cancel == nil {
		return ErrNotConnected
	}
	raw, err := state.Marshal(env.State)
	if err != nil {
		return err
	}
	p.setSeen(raw)
	return nil
}

// TrackWrite marks raw as this process's own and holds back reads that
// overlap the save, since they may return older contents.
func (p *PollAdapter) TrackWrite(raw []byte) func() {
	p.mu.Lock()
	p.writes++
	p.writing++
	p.lastSeen = raw
	p.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.writes++
			p.writing--
		})
	}
}

// Close stops polling and waits for the poll loop and the slot watcher.
func (p *PollAdapter) Close() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	if p.wake != nil {
		for range p.wake {
		}
	}
	return nil
}

func (p *PollAdapter) check(ctx context.Context) {
	p.mu.Lock()
	if p.writing > 0 {
		p.mu.Unlock()
		return
	}
	writes := p.writes
	p.mu.Unlock()

	raw, err := p.slot.Load(ctx)
	if err != nil {
		p.opts.Logger.Warn("slot poll failed", "err", err)
		return
	}
	p.mu.Lock()
	if p.writing > 0 || p.writes != writes {
		// raced one of our own saves; the next check re-reads
		p.mu.Unlock()
		return
	}
	if raw == nil || bytes.Equal(raw, p.lastSeen) {
		p.mu.Unlock()
		return
	}
	p.lastSeen = raw
	recv := p.recv
	p.mu.Unlock()

	snapshot, err := DecodeSnapshot(raw)
	if err != nil {
		p.opts.Logger.Warn("discarding malformed slot contents", "err", err)
		return
	}
	if recv != nil {
		recv(NewStateUpdate(SlotOrigin, snapshot))
	}
}

func (p *PollAdapter) setSeen(raw []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = raw
}
