package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// DefaultSlotName is the name the snapshot is persisted under.
const DefaultSlotName = "church-teleprompter-state"

var (
	ErrUnsupportedScheme = errors.New("unsupported storage scheme")
	ErrInvalidDSN        = errors.New("invalid storage dsn")
)

// Slot is a single named location holding the latest serialised snapshot.
// Save overwrites the whole value; readers never see a partial write.
type Slot interface {
	// Load returns nil with no error when nothing has been saved yet.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

// Watchable is implemented by slots that can signal writes made by other
// processes without being polled.
type Watchable interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Open builds a slot from a DSN:
//
//	memory://                in-process only
//	file:///path/state.json  JSON file, also a bare path
//	sqlite:///path/state.db  sqlite database
//	postgres://…             postgres database
//
// An empty DSN returns a nil slot and no error: persistence is disabled.
func Open(dsn, name string) (Slot, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil
	}
	if name = strings.TrimSpace(name); name == "" {
		name = DefaultSlotName
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDSN, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "memory", "mem":
		return NewMemorySlot(), nil
	case "", "file":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewFileSlot(path), nil
	case "sqlite", "sqlite3":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLiteSlot(path, name), nil
	case "postgres", "postgresql":
		return NewPostgresSlot(dsn, name), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, parsed.Scheme)
	}
}

func dsnPath(parsed *url.URL, raw string) (string, error) {
	if parsed.Scheme == "" {
		return raw, nil
	}
	path := parsed.Host + parsed.Path
	if path == "" {
		path = parsed.Opaque
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: no path in %q", ErrInvalidDSN, raw)
	}
	return path, nil
}

type MemorySlot struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (m *MemorySlot) Load(context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte{}, m.data...), nil
}

func (m *MemorySlot) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte{}, data...)
	return nil
}

func (m *MemorySlot) Close() error {
	return nil
}
