package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp     TEXT NOT NULL,
	action        TEXT NOT NULL,
	module        TEXT NOT NULL,
	detail        TEXT NOT NULL,
	entity_id     TEXT NOT NULL,
	entity_type   TEXT NOT NULL,
	actor_id      TEXT NOT NULL,
	metadata      TEXT NOT NULL DEFAULT '{}',
	previous_hash TEXT NOT NULL,
	hash          TEXT NOT NULL
);
`

// SQLiteRecorder persists hash-chained audit entries to a local SQLite
// database.
type SQLiteRecorder struct {
	db *sql.DB

	mu           sync.Mutex
	previousHash string
}

// OpenSQLite opens (creating if needed) the audit database at path and
// resumes the hash chain from the last stored entry.
func OpenSQLite(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing audit schema: %w", err)
	}

	last := strings.Repeat("0", 64)
	err = db.QueryRow(`SELECT hash FROM audit_log ORDER BY id DESC LIMIT 1`).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		db.Close()
		return nil, fmt.Errorf("reading audit chain head: %w", err)
	}

	return &SQLiteRecorder{db: db, previousHash: last}, nil
}

// Record appends an entry to the durable chain.
func (r *SQLiteRecorder) Record(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ActorID == "" {
		e.ActorID = Unattributed
	}
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	e.PreviousHash = r.previousHash
	e.Hash = chainHash(e.PreviousHash, e.Timestamp, e)

	metadata := "{}"
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encoding audit metadata: %w", err)
		}
		metadata = string(raw)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp, action, module, detail, entity_id, entity_type, actor_id, metadata, previous_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Timestamp, e.Action, e.Module, e.Detail, e.EntityID, e.EntityType, e.ActorID, metadata, e.PreviousHash, e.Hash)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	r.previousHash = e.Hash
	return nil
}

// Entries returns all stored entries in insertion order.
func (r *SQLiteRecorder) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp, action, module, detail, entity_id, entity_type, actor_id, metadata, previous_hash, hash
		FROM audit_log
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var metadata string
		if err := rows.Scan(&e.Timestamp, &e.Action, &e.Module, &e.Detail, &e.EntityID, &e.EntityType, &e.ActorID, &metadata, &e.PreviousHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decoding audit metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
