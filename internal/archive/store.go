// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive stores completed research runs in SQLite so they can be
// listed, searched, and exported after the process that produced them
// exits. Runs are written once, after they finish; the archive never feeds
// state back into a running execution.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-agent/pkg/types"
)

const dbFile = "research.db"

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Store manages the run archive database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int

	// fts reports whether the SQLite build provides FTS5. Without it
	// Search falls back to LIKE matching.
	fts bool
}

// Open opens or creates the archive at cfg.Dir/research.db and creates the
// schema if it does not exist.
func Open(cfg types.ArchiveConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "archive"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, dir: dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the archive directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			queries TEXT,
			loop_count INTEGER,
			started TEXT,
			finished TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sources (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			label TEXT,
			short_url TEXT,
			value TEXT,
			segment TEXT,
			task_id INTEGER,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='runs_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		s.fts = true
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE runs_fts USING fts5(question, answer, content=runs, content_rowid=rowid)`,
		`CREATE TRIGGER runs_ai AFTER INSERT ON runs BEGIN
			INSERT INTO runs_fts(rowid, question, answer) VALUES (new.rowid, new.question, new.answer);
		END`,
		`CREATE TRIGGER runs_ad AFTER DELETE ON runs BEGIN
			INSERT INTO runs_fts(runs_fts, rowid, question, answer) VALUES('delete', old.rowid, old.question, old.answer);
		END`,
	}
	if _, err := s.db.Exec(ftsStatements[0]); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			return nil
		}
		return fmt.Errorf("creating FTS table: %w", err)
	}
	for _, stmt := range ftsStatements[1:] {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	s.fts = true
	return nil
}

// Save writes a completed run and its cited sources. Saving a run id that
// already exists replaces it.
func (s *Store) Save(ctx context.Context, res types.Result) error {
	if res.RunID == "" {
		return errors.New("saving run: empty run id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, res.RunID); err != nil {
		return fmt.Errorf("deleting previous run: %w", err)
	}

	queriesJSON, _ := json.Marshal(res.Queries)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, question, answer, queries, loop_count, started, finished)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Question, res.Answer, string(queriesJSON), res.LoopCount,
		formatTime(res.Started), formatTime(res.Finished),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sources (run_id, position, label, short_url, value, segment, task_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, src := range res.Sources {
		if _, err := stmt.ExecContext(ctx,
			res.RunID, i, src.Label, src.ShortURL, src.Value, src.Segment, src.TaskID,
		); err != nil {
			return fmt.Errorf("inserting source %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Get returns a stored run with its sources.
func (s *Store) Get(ctx context.Context, runID string) (types.Result, error) {
	var (
		res         types.Result
		queriesJSON sql.NullString
		started     sql.NullString
		finished    sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, question, answer, queries, loop_count, started, finished FROM runs WHERE id = ?`, runID,
	).Scan(&res.RunID, &res.Question, &res.Answer, &queriesJSON, &res.LoopCount, &started, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Result{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return types.Result{}, fmt.Errorf("looking up run: %w", err)
	}
	if queriesJSON.Valid {
		json.Unmarshal([]byte(queriesJSON.String), &res.Queries)
	}
	res.Started = parseTime(started)
	res.Finished = parseTime(finished)

	rows, err := s.db.QueryContext(ctx,
		`SELECT label, short_url, value, segment, task_id FROM sources WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return types.Result{}, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var src types.Source
		if err := rows.Scan(&src.Label, &src.ShortURL, &src.Value, &src.Segment, &src.TaskID); err != nil {
			return types.Result{}, fmt.Errorf("scanning source: %w", err)
		}
		res.Sources = append(res.Sources, src)
	}
	return res, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
