package transport

import (
	"context"
	"sync"
)

// Bus is a set of named broadcast channels shared by everything in one
// process, the way a browser origin shares its broadcast channels between
// tabs. A message posted by one member reaches every other member of the
// same channel and never the poster.
type Bus struct {
	mu       sync.Mutex
	channels map[string]map[*BusAdapter]struct{}
}

func NewBus() *Bus {
	return &Bus{channels: make(map[string]map[*BusAdapter]struct{})}
}

// Adapter returns a new, not yet joined, member of the named channel. A nil
// bus yields an unavailable adapter.
func (b *Bus) Adapter(channel string) *BusAdapter {
	return &BusAdapter{bus: b, channel: channel, signal: make(chan struct{}, 1)}
}

func (b *Bus) join(a *BusAdapter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.channels[a.channel]
	if !ok {
		members = make(map[*BusAdapter]struct{})
		b.channels[a.channel] = members
	}
	members[a] = struct{}{}
}

func (b *Bus) leave(a *BusAdapter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels[a.channel], a)
	if len(b.channels[a.channel]) == 0 {
		delete(b.channels, a.channel)
	}
}

func (b *Bus) post(from *BusAdapter, env Envelope) {
	b.mu.Lock()
	targets := make([]*BusAdapter, 0, len(b.channels[from.channel]))
	for member := range b.channels[from.channel] {
		if member != from {
			targets = append(targets, member)
		}
	}
	b.mu.Unlock()
	for _, t := range targets {
		t.deliver(env)
	}
}

// BusAdapter delivers through a mailbox that keeps only the newest envelope:
// a slow receiver skips straight to the latest state.
type BusAdapter struct {
	bus     *Bus
	channel string

	mu      sync.Mutex
	recv    func(Envelope)
	pending *Envelope
	signal  chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (a *BusAdapter) Name() string {
	return "broadcast"
}

func (a *BusAdapter) Available() bool {
	return a != nil && a.bus != nil
}

func (a *BusAdapter) OnReceive(fn func(Envelope)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recv = fn
}

func (a *BusAdapter) Start() error {
	if !a.Available() {
		return ErrUnavailable
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.bus.join(a)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.signal:
				a.mu.Lock()
				env, recv := a.pending, a.recv
				a.pending = nil
				a.mu.Unlock()
				if env != nil && recv != nil {
					recv(*env)
				}
			}
		}
	}()
	return nil
}

func (a *BusAdapter) Send(env Envelope) error {
	if !a.Available() {
		return ErrUnavailable
	}
	env.State = env.State.Clone()
	a.bus.post(a, env)
	return nil
}

func (a *BusAdapter) Close() error {
	if !a.Available() || a.cancel == nil {
		return nil
	}
	a.bus.leave(a)
	a.cancel()
	a.wg.Wait()
	return nil
}

func (a *BusAdapter) deliver(env Envelope) {
	a.mu.Lock()
	a.pending = &env
	a.mu.Unlock()
	select {
	case a.signal <- struct{}{}:
	default:
	}
}
