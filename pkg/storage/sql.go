package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	slotTableName    = "prompter_slots"
	sqlSlotOpTimeout = 5 * time.Second
)

// SQLSlot stores the snapshot as one row keyed by slot name. The table is
// created on first use.
type SQLSlot struct {
	driver string
	dsn    string
	name   string
	// bind renders the n-th (1-based) query placeholder for the driver.
	bind func(n int) string

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewSQLiteSlot(path, name string) *SQLSlot {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	return &SQLSlot{
		driver: "sqlite3",
		dsn:    dsn,
		name:   name,
		bind:   func(int) string { return "?" },
	}
}

func NewPostgresSlot(dsn, name string) *SQLSlot {
	return &SQLSlot{
		driver: "postgres",
		dsn:    dsn,
		name:   name,
		bind:   func(n int) string { return fmt.Sprintf("$%d", n) },
	}
}

func (s *SQLSlot) Load(ctx context.Context) ([]byte, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlSlotOpTimeout)
	defer cancel()

	var content string
	err := s.db.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT content FROM %s WHERE name = %s`, slotTableName, s.bind(1)),
		s.name,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query slot: %w", err)
	}
	return []byte(content), nil
}

func (s *SQLSlot) Save(ctx context.Context, data []byte) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlSlotOpTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (name, content, updated_at)
		VALUES (%s, %s, CURRENT_TIMESTAMP)
		ON CONFLICT (name)
		DO UPDATE SET content = excluded.content, updated_at = CURRENT_TIMESTAMP`,
		slotTableName, s.bind(1), s.bind(2),
	)
	if _, err := s.db.ExecContext(ctx, query, s.name, string(data)); err != nil {
		return fmt.Errorf("failed to persist slot: %w", err)
	}
	return nil
}

func (s *SQLSlot) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ensureReady opens the database and creates the table once. The setup is
// bounded by its own timeout, not the caller's ctx, since a failure sticks
// for the life of the slot.
func (s *SQLSlot) ensureReady() error {
	s.initOnce.Do(func() {
		db, err := sql.Open(s.driver, s.dsn)
		if err != nil {
			s.initErr = fmt.Errorf("failed to open %s: %w", s.driver, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), sqlSlotOpTimeout)
		defer cancel()
		if _, err := db.ExecContext(ctx, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
				name TEXT NOT NULL PRIMARY KEY,
				content TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`, slotTableName,
		)); err != nil {
			_ = db.Close()
			s.initErr = fmt.Errorf("failed to ensure slot table: %w", err)
			return
		}
		s.db = db
	})
	return s.initErr
}
