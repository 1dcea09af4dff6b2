package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/astromechza/teleprompter-sync/pkg/state"
	"github.com/astromechza/teleprompter-sync/pkg/storage"
	"github.com/astromechza/teleprompter-sync/pkg/transport"
)

const persistTimeout = 5 * time.Second

type Options struct {
	// Origin overrides the random per-process origin id.
	Origin string
	Logger *slog.Logger
}

// Coordinator keeps one process's Store converged with its peers. Local
// changes are persisted and sent on every live adapter; inbound envelopes
// replace the snapshot wholesale, so the last one applied wins.
type Coordinator struct {
	store    *state.Store
	slot     storage.Slot
	adapters []transport.Adapter
	origin   string
	logger   *slog.Logger

	mu      sync.Mutex
	live    []transport.Adapter
	started bool
	closed  bool
	// touched is set by the first change after Start
	touched bool
}

// New wires a coordinator. adapters are in preference order; slot may be nil
// to run without persistence.
func New(store *state.Store, slot storage.Slot, adapters []transport.Adapter, opts Options) *Coordinator {
	if opts.Origin == "" {
		opts.Origin = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		store:    store,
		slot:     slot,
		adapters: adapters,
		origin:   opts.Origin,
		logger:   opts.Logger.With("origin", opts.Origin),
	}
}

// Load picks the starting snapshot: the persisted one when the slot holds a
// readable snapshot, otherwise defaults.
func Load(ctx context.Context, slot storage.Slot, defaults state.Snapshot, logger *slog.Logger) state.Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	if slot == nil {
		return defaults
	}
	raw, err := slot.Load(ctx)
	if err != nil {
		logger.Warn("failed to read persisted snapshot, using defaults", "err", err)
		return defaults
	}
	if raw == nil {
		return defaults
	}
	snapshot, err := state.Unmarshal(raw, defaults)
	if err != nil {
		logger.Warn("failed to parse persisted snapshot, using defaults", "err", err)
		return defaults
	}
	return snapshot
}

func (c *Coordinator) Origin() string {
	return c.origin
}

func (c *Coordinator) Store() *state.Store {
	return c.store
}

// Live returns the names of the adapters selected at Start.
func (c *Coordinator) Live() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.live))
	for _, a := range c.live {
		names = append(names, a.Name())
	}
	return names
}

// Start checks every adapter's availability once, starts the available ones
// and hooks the store. Adapters that fail to start are skipped.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("coordinator already started")
	}
	c.started = true
	c.mu.Unlock()

	// the hook takes c.mu under the store lock, so it is installed while
	// c.mu is free and before anything can arrive
	c.store.OnChange(c.publish)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.adapters {
		if !a.Available() {
			c.logger.Info("transport unavailable", "transport", a.Name())
			continue
		}
		a.OnReceive(c.receive)
		if p, ok := a.(transport.Primer); ok {
			p.Prime(c.currentEnvelope)
		}
		if err := a.Start(); err != nil {
			c.logger.Warn("transport failed to start", "transport", a.Name(), "err", err)
			continue
		}
		c.logger.Info("transport started", "transport", a.Name())
		c.live = append(c.live, a)
	}
	return nil
}

// Close stops every live adapter and waits for them.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	live := c.live
	c.live = nil
	c.mu.Unlock()

	c.store.OnChange(nil)
	var errs []error
	for _, a := range live {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// currentEnvelope is pushed when a transport connects. Peers adopt it
// wholesale, so joining with the untouched startup snapshot is worth a
// warning.
func (c *Coordinator) currentEnvelope() transport.Envelope {
	c.mu.Lock()
	touched := c.touched
	c.mu.Unlock()
	if !touched {
		c.logger.Warn("announcing startup snapshot on join, connected peers will adopt it in place of their own")
	}
	return transport.NewStateUpdate(c.origin, c.store.Snapshot())
}

// publish runs under the store lock for every change. Everything is
// persisted; only local changes go out on the adapters.
func (c *Coordinator) publish(snapshot state.Snapshot, src state.Source) {
	c.mu.Lock()
	c.touched = true
	c.mu.Unlock()
	c.persist(snapshot)
	if src != state.SourceLocal {
		return
	}
	env := transport.NewStateUpdate(c.origin, snapshot)
	c.mu.Lock()
	live := c.live
	c.mu.Unlock()
	for _, a := range live {
		if err := a.Send(env); err != nil {
			c.logger.Debug("send dropped", "transport", a.Name(), "err", err)
		}
	}
}

// receive applies an inbound envelope unless it is our own or changes
// nothing. Applied snapshots are never re-sent.
func (c *Coordinator) receive(env transport.Envelope) {
	if env.Type != transport.TypeStateUpdate {
		c.logger.Debug("ignoring envelope", "type", env.Type)
		return
	}
	if env.Origin == c.origin {
		return
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if c.store.Replace(env.State) {
		c.logger.Debug("applied remote snapshot", "from", env.Origin)
	}
}

func (c *Coordinator) persist(snapshot state.Snapshot) {
	if c.slot == nil {
		return
	}
	raw, err := state.Marshal(snapshot)
	if err != nil {
		c.logger.Error("failed to encode snapshot", "err", err)
		return
	}
	c.mu.Lock()
	live := c.live
	c.mu.Unlock()
	for _, a := range live {
		if t, ok := a.(transport.WriteTracker); ok {
			defer t.TrackWrite(raw)()
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.slot.Save(ctx, raw); err != nil {
		c.logger.Warn("failed to persist snapshot", "err", err)
	}
}
