package store

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

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists design runs in a single SQLite table. Input and output
// are stored as JSON documents.
type SQLiteStore struct {
	db   *sqlx.DB
	opts options
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS design_runs (
	id          TEXT PRIMARY KEY,
	system_type TEXT NOT NULL DEFAULT 'cip-ro',
	input_json  TEXT NOT NULL,
	output_json TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS design_runs_created_at ON design_runs (created_at);
`

// Fixed-width UTC layout so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type designRunRow struct {
	ID         string `db:"id"`
	SystemType string `db:"system_type"`
	InputJSON  string `db:"input_json"`
	OutputJSON string `db:"output_json"`
	CreatedAt  string `db:"created_at"`
}

func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, run DesignRun) (DesignRun, error) {
	run = s.opts.stamp(run)
	input, err := json.Marshal(run.Input)
	if err != nil {
		return DesignRun{}, fmt.Errorf("encode input: %w", err)
	}
	output, err := json.Marshal(run.Output)
	if err != nil {
		return DesignRun{}, fmt.Errorf("encode output: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO design_runs (id, system_type, input_json, output_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.SystemType, string(input), string(output), run.CreatedAt.Format(timeLayout))
	if err != nil {
		return DesignRun{}, fmt.Errorf("insert design run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]DesignRun, error) {
	var rows []designRunRow
	err := s.db.SelectContext(ctx, &rows, `SELECT id, system_type, input_json, output_json, created_at
		FROM design_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list design runs: %w", err)
	}
	out := make([]DesignRun, 0, len(rows))
	for _, r := range rows {
		run, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (DesignRun, error) {
	var row designRunRow
	err := s.db.GetContext(ctx, &row, `SELECT id, system_type, input_json, output_json, created_at
		FROM design_runs WHERE id = ?`, strings.TrimSpace(id))
	if errors.Is(err, sql.ErrNoRows) {
		return DesignRun{}, ErrNotFound
	}
	if err != nil {
		return DesignRun{}, fmt.Errorf("get design run: %w", err)
	}
	return row.decode()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM design_runs WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete design run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete design run: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM design_runs`)
	if err != nil {
		return 0, fmt.Errorf("clear design runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear design runs: %w", err)
	}
	return int(n), nil
}

func (r designRunRow) decode() (DesignRun, error) {
	run := DesignRun{ID: r.ID, SystemType: r.SystemType}
	if err := json.Unmarshal([]byte(r.InputJSON), &run.Input); err != nil {
		return DesignRun{}, fmt.Errorf("decode input of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.OutputJSON), &run.Output); err != nil {
		return DesignRun{}, fmt.Errorf("decode output of %s: %w", r.ID, err)
	}
	ts, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return DesignRun{}, fmt.Errorf("decode created_at of %s: %w", r.ID, err)
	}
	run.CreatedAt = ts
	return run, nil
}

var _ Store = (*SQLiteStore)(nil)
