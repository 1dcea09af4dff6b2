package transport

import "errors"

var (
	ErrUnavailable  = errors.New("transport unavailable")
	ErrNotConnected = errors.New("transport not connected")
)

// Adapter is one channel carrying envelopes between processes. Availability
// is decided once, when the coordinator starts.
type Adapter interface {
	Name() string
	Available() bool
	// OnReceive sets the callback for inbound envelopes. It must be called
	// before Start.
	OnReceive(fn func(Envelope))
	Start() error
	// Send is fire and forget. Adapters drop what they cannot deliver.
	Send(env Envelope) error
	Close() error
}

// Primer is implemented by adapters that push the current state whenever
// their link comes up.
type Primer interface {
	Prime(current func() Envelope)
}
