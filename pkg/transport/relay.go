package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	relayWriteWait  = 10 * time.Second
	relayPingPeriod = 25 * time.Second
)

type RelayOptions struct {
	// URL of the relay server. http(s) URLs are rewritten to ws(s). Empty
	// leaves the adapter disabled.
	URL           string
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	Dialer        *websocket.Dialer
	Logger        *slog.Logger
}

// RelayAdapter keeps a websocket open to the relay server, reconnecting with
// linear backoff. Sends made while the link is down are dropped; the push of
// the current state on every successful connect replaces them.
type RelayAdapter struct {
	url  string
	opts RelayOptions

	mu       sync.Mutex
	state    ConnState
	conn     *websocket.Conn
	recv     func(Envelope)
	current  func() Envelope
	onChange func(ConnState)

	writeMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRelayAdapter(opts RelayOptions) *RelayAdapter {
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = DefaultReconnectBase
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = DefaultReconnectMax
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &RelayAdapter{url: relayURL(opts.URL), opts: opts, state: StateDisabled}
	if r.url != "" {
		r.state = StateDisconnected
	}
	return r
}

func relayURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String()
}

func (r *RelayAdapter) Name() string {
	return "relay"
}

func (r *RelayAdapter) Available() bool {
	return r.url != ""
}

func (r *RelayAdapter) OnReceive(fn func(Envelope)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recv = fn
}

func (r *RelayAdapter) Prime(current func() Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = current
}

// OnStateChange registers fn to observe every link state change.
func (r *RelayAdapter) OnStateChange(fn func(ConnState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *RelayAdapter) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *RelayAdapter) Start() error {
	if !r.Available() {
		return ErrUnavailable
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.connectContinuously(ctx)
	}()
	return nil
}

func (r *RelayAdapter) Send(env Envelope) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return r.write(conn, env)
}

func (r *RelayAdapter) Close() error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.mu.Lock()
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.mu.Unlock()
	r.wg.Wait()
	return nil
}

func (r *RelayAdapter) connectContinuously(ctx context.Context) {
	attempt := 0
	for {
		r.fire(EventDial)
		conn, _, err := r.opts.Dialer.DialContext(ctx, r.url, nil)
		if err != nil {
			r.fire(EventHandshakeFailed)
			if ctx.Err() != nil {
				return
			}
			attempt++
			delay := Backoff(attempt, r.opts.ReconnectBase, r.opts.ReconnectMax)
			r.opts.Logger.Warn("relay connect failed", "url", r.url, "err", err, "retry_in", delay)
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		attempt = 0
		r.mu.Lock()
		r.conn = conn
		current := r.current
		r.mu.Unlock()
		r.fire(EventHandshakeOK)
		r.opts.Logger.Info("relay connected", "url", r.url)

		if current != nil {
			if err := r.write(conn, current()); err != nil {
				r.opts.Logger.Warn("relay initial push failed", "err", err)
			}
		}

		r.readUntilClosed(ctx, conn)

		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()
		_ = conn.Close()
		r.fire(EventDropped)
		if ctx.Err() != nil {
			return
		}
		attempt++
		delay := Backoff(attempt, r.opts.ReconnectBase, r.opts.ReconnectMax)
		r.opts.Logger.Warn("relay disconnected", "url", r.url, "retry_in", delay)
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

func (r *RelayAdapter) readUntilClosed(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(relayPingPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-t.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(relayWriteWait)); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		mt, p, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				r.opts.Logger.Debug("relay read ended", "err", err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		env, err := Decode(p)
		if err != nil {
			r.opts.Logger.Warn("discarding relay message", "err", err)
			continue
		}
		r.mu.Lock()
		recv := r.recv
		r.mu.Unlock()
		if recv != nil {
			recv(env)
		}
	}
}

func (r *RelayAdapter) write(conn *websocket.Conn, env Envelope) error {
	raw, err := Encode(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (r *RelayAdapter) fire(e ConnEvent) {
	r.mu.Lock()
	prev := r.state
	r.state = Transition(prev, e)
	next, onChange := r.state, r.onChange
	r.mu.Unlock()
	if next != prev && onChange != nil {
		onChange(next)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
