package tasks

import (
    "database/sql"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    "github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// LedgerDir holds bookkeeping files under the base directory. Its leading dot
// keeps it out of the lane listing.
const LedgerDir = ".kanban"

// TrashEntry remembers where a trashed file came from.
type TrashEntry struct {
    ID        string    `json:"id"`
    Name      string    `json:"name"`
    Title     string    `json:"title"`
    Lane      string    `json:"lane"`
    Reason    string    `json:"reason"`
    TrashedAt time.Time `json:"trashed_at"`
}

// Ledger is a small sqlite table keyed by the file name inside Trash.
type Ledger struct {
    db *sql.DB
}

// LedgerPath is the default ledger location for a base directory.
func LedgerPath(baseDir string) string {
    return filepath.Join(baseDir, LedgerDir, "trash.db")
}

func OpenLedger(path string) (*Ledger, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return nil, fmt.Errorf("ledger dir: %w", err)
    }
    db, err := sql.Open("sqlite", path)
    if err != nil { return nil, err }
    db.SetMaxOpenConns(1)
    _, _ = db.Exec("PRAGMA busy_timeout=5000")
    _, _ = db.Exec("PRAGMA journal_mode=WAL")
    const schema = `CREATE TABLE IF NOT EXISTS trash (
        name TEXT PRIMARY KEY,
        id TEXT NOT NULL,
        title TEXT NOT NULL,
        lane TEXT NOT NULL,
        reason TEXT NOT NULL DEFAULT '',
        trashed_at INTEGER NOT NULL
    )`
    if _, err := db.Exec(schema); err != nil {
        db.Close()
        return nil, fmt.Errorf("ledger schema: %w", err)
    }
    return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Record inserts or replaces the entry for e.Name.
func (l *Ledger) Record(e TrashEntry) error {
    if e.ID == "" { e.ID = uuid.NewString() }
    if e.TrashedAt.IsZero() { e.TrashedAt = time.Now() }
    _, err := l.db.Exec(`INSERT INTO trash(name, id, title, lane, reason, trashed_at) VALUES(?, ?, ?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET id=excluded.id, title=excluded.title, lane=excluded.lane, reason=excluded.reason, trashed_at=excluded.trashed_at`,
        e.Name, e.ID, e.Title, e.Lane, e.Reason, e.TrashedAt.UnixMilli())
    return err
}

// Lookup returns the entry for a Trash file name; ok is false when none exists.
func (l *Ledger) Lookup(name string) (TrashEntry, bool, error) {
    row := l.db.QueryRow("SELECT name, id, title, lane, reason, trashed_at FROM trash WHERE name = ?", name)
    e, err := scanEntry(row)
    if errors.Is(err, sql.ErrNoRows) { return TrashEntry{}, false, nil }
    if err != nil { return TrashEntry{}, false, err }
    return e, true, nil
}

func (l *Ledger) Forget(name string) error {
    _, err := l.db.Exec("DELETE FROM trash WHERE name = ?", name)
    return err
}

// Clear drops every entry and returns how many there were.
func (l *Ledger) Clear() (int64, error) {
    res, err := l.db.Exec("DELETE FROM trash")
    if err != nil { return 0, err }
    return res.RowsAffected()
}

// All returns every entry, newest first.
func (l *Ledger) All() ([]TrashEntry, error) {
    rows, err := l.db.Query("SELECT name, id, title, lane, reason, trashed_at FROM trash ORDER BY trashed_at DESC, name")
    if err != nil { return nil, err }
    defer rows.Close()
    var out []TrashEntry
    for rows.Next() {
        e, err := scanEntry(rows)
        if err != nil { return nil, err }
        out = append(out, e)
    }
    return out, rows.Err()
}

type scanner interface {
    Scan(dest ...any) error
}

func scanEntry(s scanner) (TrashEntry, error) {
    var e TrashEntry
    var ms int64
    if err := s.Scan(&e.Name, &e.ID, &e.Title, &e.Lane, &e.Reason, &ms); err != nil {
        return TrashEntry{}, err
    }
    e.TrashedAt = time.UnixMilli(ms)
    return e, nil
}
