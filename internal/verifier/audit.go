// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verifier

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

const auditDBFile = "sessions.db"

// AuditStore records terminal sessions in SQLite. Audit rows outlive the
// in-memory sessions that Sweep reclaims.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore opens or creates the audit database at dir/sessions.db.
func NewAuditStore(dir string) (*AuditStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	dbPath := filepath.Join(dir, auditDBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		document_id TEXT,
		status TEXT NOT NULL,
		total_references INTEGER,
		verified INTEGER,
		failed INTEGER,
		started_at TEXT,
		finished_at TEXT,
		error TEXT,
		references_json TEXT
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	return &AuditStore{db: db}, nil
}

// Close releases the database connection.
func (a *AuditStore) Close() error {
	return a.db.Close()
}

// Record inserts one terminal session. Re-recording a session id replaces
// its row.
func (a *AuditStore) Record(s types.VerificationSession) error {
	var verified, failed int
	for _, ref := range s.ProcessedReferences {
		switch ref.Status {
		case types.ReferenceVerified:
			verified++
		case types.ReferenceError:
			failed++
		}
	}

	refsJSON, err := json.Marshal(s.ProcessedReferences)
	if err != nil {
		return fmt.Errorf("encoding references: %w", err)
	}

	_, err = a.db.Exec(`INSERT OR REPLACE INTO sessions
		(session_id, document_id, status, total_references, verified, failed, started_at, finished_at, error, references_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.DocumentID, string(s.Status), s.TotalReferences,
		verified, failed,
		s.StartedAt.UTC().Format(time.RFC3339),
		s.FinishedAt.UTC().Format(time.RFC3339),
		s.Error, string(refsJSON))
	if err != nil {
		return fmt.Errorf("recording session %s: %w", s.SessionID, err)
	}
	return nil
}

// PurgeExpired deletes audit rows whose session finished before the
// retention window. Returns the number of rows removed.
func (a *AuditStore) PurgeExpired(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339)
	res, err := a.db.Exec(`DELETE FROM sessions WHERE finished_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging audit rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Count returns the number of recorded sessions.
func (a *AuditStore) Count() (int, error) {
	var n int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit rows: %w", err)
	}
	return n, nil
}
