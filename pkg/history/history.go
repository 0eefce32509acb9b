// Package history keeps an optional sqlite ledger of digest runs, useful
// for troubleshooting skipped or failed schedules. Ledger failures are
// diagnostics-only and never affect the run outcome.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

//go:embed schema.sql
var schema string

// Run is one recorded invocation with its bucket counters
type Run struct {
	ID            int64     `db:"id"`
	Slot          string    `db:"slot"`
	Mode          string    `db:"mode"`
	Outcome       string    `db:"outcome"`
	Missed        int       `db:"missed"`
	DueToday      int       `db:"due_today"`
	DueTomorrow   int       `db:"due_tomorrow"`
	DueSoon       int       `db:"due_soon"`
	NewItems      int       `db:"new_items"`
	Announcements int       `db:"announcements"`
	Detail        string    `db:"detail"`
	CreatedAt     time.Time `db:"created_at"`
}

// DB wraps the ledger database connection
type DB struct {
	conn *sqlx.DB
}

// New opens the ledger at path, creating the schema when missing
func New(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&mode=rwc", path))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the ledger connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Record appends one run row, retrying on sqlite lock contention
func (d *DB) Record(ctx context.Context, r Run) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO runs (slot, mode, outcome, missed, due_today, due_tomorrow, due_soon, new_items, announcements, detail)
			VALUES (:slot, :mode, :outcome, :missed, :due_today, :due_tomorrow, :due_soon, :new_items, :announcements, :detail)
		`
		if _, err := d.conn.NamedExecContext(ctx, query, r); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("record run: %w", err)}
		}
		return nil
	}, &criticalError{})
}

// Last returns the most recent run, nil when the ledger is empty
func (d *DB) Last(ctx context.Context) (*Run, error) {
	var run Run
	err := d.conn.GetContext(ctx, &run, "SELECT * FROM runs ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last run: %w", err)
	}
	return &run, nil
}

// BySlot returns the runs recorded for one logical slot, oldest first.
// More than one row per slot means the scheduler fired twice.
func (d *DB) BySlot(ctx context.Context, slot string) ([]Run, error) {
	var runs []Run
	if err := d.conn.SelectContext(ctx, &runs, "SELECT * FROM runs WHERE slot = ? ORDER BY id", slot); err != nil {
		return nil, fmt.Errorf("get runs for slot %q: %w", slot, err)
	}
	return runs, nil
}
