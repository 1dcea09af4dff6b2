package transport

import "time"

type ConnState int

const (
	StateDisabled ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type ConnEvent int

const (
	// EventDial starts a connection attempt once any backoff has elapsed.
	EventDial ConnEvent = iota
	EventHandshakeOK
	EventHandshakeFailed
	EventDropped
)

func (e ConnEvent) String() string {
	switch e {
	case EventDial:
		return "dial"
	case EventHandshakeOK:
		return "handshake-ok"
	case EventHandshakeFailed:
		return "handshake-failed"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Transition is the relay link state machine. Disabled is terminal; events
// that make no sense in a state leave it unchanged.
func Transition(s ConnState, e ConnEvent) ConnState {
	switch s {
	case StateConnecting:
		switch e {
		case EventHandshakeOK:
			return StateConnected
		case EventHandshakeFailed, EventDropped:
			return StateDisconnected
		}
	case StateConnected:
		if e == EventDropped {
			return StateDisconnected
		}
	case StateDisconnected:
		if e == EventDial {
			return StateConnecting
		}
	}
	return s
}

const (
	DefaultReconnectBase = time.Second
	DefaultReconnectMax  = 10 * time.Second
)

// Backoff is the wait before reconnect attempt n (1-based): n times base,
// capped at ceiling.
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		return 0
	}
	if base <= 0 || int64(attempt) >= int64(ceiling/base) {
		return ceiling
	}
	return time.Duration(attempt) * base
}
