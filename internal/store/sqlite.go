// Package store persists the queryable artifact index in SQLite. The JSON
// files under the artifacts tree stay the source of truth; the database is
// an index that can be rebuilt from them at any time.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Artifact is one indexed extraction row.
type Artifact struct {
	SourceURL  string
	Domain     string
	TS         string
	Mountain   string
	Fatalities sql.NullInt64
	Confidence sql.NullFloat64
	Doc        map[string]any
}

// Run records one pipeline invocation.
type Run struct {
	ID         string
	Mode       string
	URLCount   int
	Status     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// SQLiteStore implements the artifact index using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS artifacts (
	source_url                  TEXT PRIMARY KEY,
	domain                      TEXT,
	ts                          TEXT,
	mountain_name               TEXT,
	num_fatalities              INTEGER,
	extraction_confidence_score REAL,
	event_id                    TEXT,
	artifact_json               TEXT
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	url_count   INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_artifacts_domain ON artifacts(domain);
CREATE INDEX IF NOT EXISTS idx_artifacts_mountain ON artifacts(mountain_name);
CREATE INDEX IF NOT EXISTS idx_artifacts_event_id ON artifacts(event_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert indexes one artifact document keyed by its source_url.
func (s *SQLiteStore) Upsert(ctx context.Context, doc map[string]any) error {
	src, _ := doc["source_url"].(string)
	if src == "" {
		return eris.New("sqlite: artifact missing source_url")
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal artifact")
	}

	ts, _ := doc["extracted_at"].(string)
	mountain, _ := doc["mountain_name"].(string)
	eventID, _ := doc["event_id"].(string)

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts
		(source_url, domain, ts, mountain_name, num_fatalities, extraction_confidence_score, event_id, artifact_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		src, domainOf(src), ts, nullIfEmpty(mountain),
		intOrNil(doc["num_fatalities"]), floatOrNil(doc["extraction_confidence_score"]),
		nullIfEmpty(eventID), string(docJSON),
	)
	return eris.Wrapf(err, "sqlite: upsert artifact %s", src)
}

// queryColumns are the columns Query accepts as equality filters.
var queryColumns = map[string]bool{
	"source_url":     true,
	"domain":         true,
	"ts":             true,
	"mountain_name":  true,
	"num_fatalities": true,
	"event_id":       true,
}

// Query returns artifacts matching every filter by equality. Nil or empty
// filters return all rows.
func (s *SQLiteStore) Query(ctx context.Context, filters map[string]any) ([]Artifact, error) {
	q := `SELECT source_url, domain, ts, mountain_name, num_fatalities, extraction_confidence_score, artifact_json FROM artifacts`
	var clauses []string
	var args []any
	for k, v := range filters {
		if !queryColumns[k] {
			return nil, eris.Errorf("sqlite: unsupported filter column %q", k)
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", k))
		args = append(args, v)
	}
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY source_url"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query artifacts")
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var mountain sql.NullString
		var docJSON sql.NullString
		if err := rows.Scan(&a.SourceURL, &a.Domain, &a.TS, &mountain, &a.Fatalities, &a.Confidence, &docJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan artifact")
		}
		a.Mountain = mountain.String
		if docJSON.Valid {
			_ = json.Unmarshal([]byte(docJSON.String), &a.Doc)
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate artifacts")
}

// StartRun records a new pipeline run and returns its id.
func (s *SQLiteStore) StartRun(ctx context.Context, mode string, urlCount int) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, url_count, status, started_at) VALUES (?, ?, ?, 'running', ?)`,
		id, mode, urlCount, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert run")
	}
	return id, nil
}

// FinishRun marks a run completed or failed.
func (s *SQLiteStore) FinishRun(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", id)
	}
	return nil
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func intOrNil(v any) any {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return nil
}

func floatOrNil(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return nil
}
