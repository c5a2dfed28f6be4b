// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

const dbFile = "ledger.db"

// Store persists ledger entries and content-addressed state snapshots.
type Store interface {
	// AppendEntry persists one ledger entry.
	AppendEntry(ctx context.Context, e types.LedgerEntry) error

	// SaveSnapshot persists a state under its content-addressed version.
	// Saving the same version twice is a no-op, versions being content
	// derived.
	SaveSnapshot(ctx context.Context, version string, s types.ResearchState) error

	// LoadEntries returns a run's entries ordered by sequence number.
	LoadEntries(ctx context.Context, runID string) ([]types.LedgerEntry, error)

	// LoadSnapshot returns the state stored under a version.
	LoadSnapshot(ctx context.Context, version string) (types.ResearchState, error)

	// Close releases the store.
	Close() error
}

// SQLiteStore is the canonical Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// RunInfo summarizes one persisted run for listing.
type RunInfo struct {
	RunID     string
	Query     string
	StartedAt time.Time
	Entries   int
}

// NewSQLiteStore opens or creates the ledger database at dir/ledger.db,
// creating the schema if it does not exist.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			query TEXT,
			started_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			seq INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			decision TEXT NOT NULL,
			outcome TEXT NOT NULL,
			result_kind TEXT,
			diagnostic TEXT,
			duration_ns INTEGER,
			prev_state_version TEXT,
			state_version TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			version TEXT PRIMARY KEY,
			body TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_run ON entries(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RegisterRun records run metadata so persisted runs can be listed.
func (s *SQLiteStore) RegisterRun(ctx context.Context, runID, query string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (run_id, query, started_at) VALUES (?, ?, ?)`,
		runID, query, startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("registering run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns every persisted run, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, r.query, r.started_at, COUNT(e.seq)
		 FROM runs r LEFT JOIN entries e ON e.run_id = r.run_id
		 GROUP BY r.run_id ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		var started string
		if err := rows.Scan(&info.RunID, &info.Query, &started, &info.Entries); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		info.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// AppendEntry persists one ledger entry. The decision is stored as a
// self-describing JSON record alongside the indexed columns.
func (s *SQLiteStore) AppendEntry(ctx context.Context, e types.LedgerEntry) error {
	decisionJSON, err := json.Marshal(e.Decision)
	if err != nil {
		return fmt.Errorf("encoding decision: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries
		 (run_id, seq, timestamp, decision, outcome, result_kind, diagnostic, duration_ns, prev_state_version, state_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Seq, e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(decisionJSON), string(e.Outcome), string(e.ResultKind),
		e.Diagnostic, int64(e.Duration), e.PrevStateVersion, e.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("inserting entry %d: %w", e.Seq, err)
	}
	return nil
}

// SaveSnapshot persists a state under its content-addressed version.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, version string, st types.ResearchState) error {
	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO snapshots (version, body) VALUES (?, ?)`,
		version, string(body),
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot %s: %w", version, err)
	}
	return nil
}

// LoadEntries returns a run's entries ordered by sequence number.
func (s *SQLiteStore) LoadEntries(ctx context.Context, runID string) ([]types.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, timestamp, decision, outcome, result_kind, diagnostic, duration_ns, prev_state_version, state_version
		 FROM entries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []types.LedgerEntry
	for rows.Next() {
		var e types.LedgerEntry
		var ts, decisionJSON, outcome, resultKind string
		var durationNs int64

		if err := rows.Scan(&e.Seq, &ts, &decisionJSON, &outcome, &resultKind,
			&e.Diagnostic, &durationNs, &e.PrevStateVersion, &e.StateVersion); err != nil {
			return nil, fmt.Errorf("scanning entry row: %w", err)
		}

		e.RunID = runID
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.Outcome = types.Outcome(outcome)
		e.ResultKind = types.ResultKind(resultKind)
		e.Duration = time.Duration(durationNs)
		if err := json.Unmarshal([]byte(decisionJSON), &e.Decision); err != nil {
			return nil, fmt.Errorf("decoding decision for entry %d: %w", e.Seq, err)
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LoadSnapshot returns the state stored under a version.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, version string) (types.ResearchState, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM snapshots WHERE version = ?`, version,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return types.ResearchState{}, fmt.Errorf("snapshot %s not found", version)
	}
	if err != nil {
		return types.ResearchState{}, fmt.Errorf("querying snapshot %s: %w", version, err)
	}

	var st types.ResearchState
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		return types.ResearchState{}, fmt.Errorf("decoding snapshot %s: %w", version, err)
	}
	return st, nil
}
