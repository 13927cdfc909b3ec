// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// QueryOptions holds parameters for listing runs.
type QueryOptions struct {
	// Query is a full-text search over question and answer. Empty lists
	// the most recent runs.
	Query string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Summary is one archived run without its answer body.
type Summary struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	Question    string    `json:"question" yaml:"question"`
	LoopCount   int       `json:"loop_count" yaml:"loop_count"`
	SourceCount int       `json:"source_count" yaml:"source_count"`
	Started     time.Time `json:"started" yaml:"started"`
	Finished    time.Time `json:"finished" yaml:"finished"`
}

// List returns archived runs. Full-text queries are ranked by relevance;
// otherwise runs are listed newest first.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]Summary, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	const cols = `r.id, r.question, r.loop_count, r.started, r.finished,
		(SELECT count(*) FROM sources src WHERE src.run_id = r.id)`

	switch {
	case opts.Query != "" && s.fts:
		qb.WriteString(`SELECT ` + cols + `
			FROM runs_fts
			JOIN runs r ON r.rowid = runs_fts.rowid
			WHERE runs_fts MATCH ?
			ORDER BY runs_fts.rank`)
		args = append(args, opts.Query)
	case opts.Query != "":
		qb.WriteString(`SELECT ` + cols + `
			FROM runs r
			WHERE r.question LIKE ? OR r.answer LIKE ?
			ORDER BY r.started DESC, r.rowid DESC`)
		like := "%" + opts.Query + "%"
		args = append(args, like, like)
	default:
		qb.WriteString(`SELECT ` + cols + `
			FROM runs r
			ORDER BY r.started DESC, r.rowid DESC`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var started, finished sql.NullString
		if err := rows.Scan(&sum.RunID, &sum.Question, &sum.LoopCount, &started, &finished, &sum.SourceCount); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		sum.Started = parseTime(started)
		sum.Finished = parseTime(finished)
		out = append(out, sum)
	}
	return out, rows.Err()
}
