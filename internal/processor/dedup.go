package processor

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Dedup tracks command ids that have already been handled, so a command
// whose delete failed is skipped on the next listing pass instead of
// re-executed. It is injected into the Processor so dequeue behavior is
// testable without a live storage backend.
type Dedup interface {
	Seen(id string) bool
	Mark(id string) error
	Close() error
}

// MemoryDedup is the default processed-set: in-process memory only, so
// its guarantee spans a single processor lifetime.
type MemoryDedup struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemoryDedup creates an empty in-memory processed-set.
func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{ids: make(map[string]struct{})}
}

func (d *MemoryDedup) Seen(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.ids[id]
	return ok
}

func (d *MemoryDedup) Mark(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[id] = struct{}{}
	return nil
}

func (d *MemoryDedup) Close() error { return nil }

const dedupSchema = `
CREATE TABLE IF NOT EXISTS processed_commands (
    id TEXT PRIMARY KEY,
    processed_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// SQLiteDedup is a durable processed-set that survives processor
// restarts. Use it when the execution environment restarts the daemon
// but the mailbox container may still hold commands whose deletes failed.
type SQLiteDedup struct {
	db *sql.DB
}

// NewSQLiteDedup opens (or creates) the processed-set database at path.
func NewSQLiteDedup(path string) (*SQLiteDedup, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open dedup db: %w", err)
	}
	if _, err := db.Exec(dedupSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply dedup schema: %w", err)
	}
	return &SQLiteDedup{db: db}, nil
}

func (d *SQLiteDedup) Seen(id string) bool {
	var one int
	err := d.db.QueryRow(`SELECT 1 FROM processed_commands WHERE id = ?`, id).Scan(&one)
	return err == nil
}

func (d *SQLiteDedup) Mark(id string) error {
	_, err := d.db.Exec(`INSERT OR IGNORE INTO processed_commands (id) VALUES (?)`, id)
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	return nil
}

func (d *SQLiteDedup) Close() error {
	return d.db.Close()
}
