package evidence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports a ledger lookup for an unknown capture id.
var ErrNotFound = errors.New("capture not found")

// Entry is one recorded capture. The PNG lives on disk under File; the
// ledger row is the index auditors query when assembling a package.
type Entry struct {
	ID       string
	Service  string
	Resource string
	Region   string
	Tab      string
	Account  string
	File     string
	Width    int
	Height   int
	Segments int
	Stamped  bool
	Warning  string
	TakenAt  time.Time
}

// Ledger indexes captured evidence in SQLite next to the artifacts.
type Ledger struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open initializes the ledger database at the given path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ledger := &Ledger{db: db}
	if err := ledger.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return ledger, nil
}

func (l *Ledger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS captures (
		id TEXT PRIMARY KEY,
		service TEXT NOT NULL,
		resource TEXT,
		region TEXT NOT NULL,
		tab TEXT,
		account TEXT,
		file TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		segments INTEGER NOT NULL,
		stamped INTEGER NOT NULL,
		warning TEXT,
		taken_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_captures_service ON captures(service);
	CREATE INDEX IF NOT EXISTS idx_captures_taken ON captures(taken_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create captures table: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts one capture row.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO captures (id, service, resource, region, tab, account,
			file, width, height, segments, stamped, warning, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Service, e.Resource, e.Region, e.Tab, e.Account,
		e.File, e.Width, e.Height, e.Segments, e.Stamped, e.Warning,
		e.TakenAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record capture %s: %w", e.ID, err)
	}
	return nil
}

// Get returns the entry for a capture id.
func (l *Ledger) Get(ctx context.Context, id string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	row := l.db.QueryRowContext(ctx, `
		SELECT id, service, resource, region, tab, account, file,
			width, height, segments, stamped, warning, taken_at
		FROM captures WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// List returns entries newest first, optionally filtered by service.
func (l *Ledger) List(ctx context.Context, service string) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query := `
		SELECT id, service, resource, region, tab, account, file,
			width, height, segments, stamped, warning, taken_at
		FROM captures`
	var args []interface{}
	if service != "" {
		query += " WHERE service = ?"
		args = append(args, service)
	}
	query += " ORDER BY taken_at DESC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var takenAt string
	err := row.Scan(&e.ID, &e.Service, &e.Resource, &e.Region, &e.Tab,
		&e.Account, &e.File, &e.Width, &e.Height, &e.Segments,
		&e.Stamped, &e.Warning, &takenAt)
	if err != nil {
		return Entry{}, err
	}
	if t, perr := time.Parse(time.RFC3339, takenAt); perr == nil {
		e.TakenAt = t
	}
	return e, nil
}
