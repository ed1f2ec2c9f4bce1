package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/playback/pkg/schema"
)

// LibSQLStore implements Store on libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database. dbPath is a file URI such as
// "file:/path/to/traces.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	if !strings.HasPrefix(dbPath, "file:") && !strings.Contains(dbPath, "://") {
		dbPath = "file:" + dbPath
	}
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "open libsql").WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows, so they go through QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return schema.NewError(schema.ErrCodeStore, "migrate").WithCause(err)
	}
	return nil
}

// --- Runs ---

func (s *LibSQLStore) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "run id is required")
	}
	run.CreatedAt = timeOrNow(run.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, created_at) VALUES (?, ?, ?)`,
		run.ID, nullStr(run.Name), run.CreatedAt,
	)
	if err != nil {
		return storeError("create run", err)
	}
	return nil
}

func (s *LibSQLStore) GetRun(ctx context.Context, id string) (*Run, error) {
	r := &Run{}
	var name sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT r.id, r.name, r.created_at, (SELECT COUNT(*) FROM steps WHERE run_id = r.id)
		 FROM runs r WHERE r.id = ?`, id,
	).Scan(&r.ID, &name, &r.CreatedAt, &r.StepCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("run", id)
	}
	if err != nil {
		return nil, storeError("get run", err)
	}
	r.Name = name.String
	return r, nil
}

func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `SELECT r.id, r.name, r.created_at, (SELECT COUNT(*) FROM steps WHERE run_id = r.id) FROM runs r`
	var args []any
	if filter.Since != nil {
		query += ` WHERE r.created_at >= ?`
		args = append(args, *filter.Since)
	}
	query += ` ORDER BY r.created_at DESC, r.id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var name sql.NullString
		if err := rows.Scan(&r.ID, &name, &r.CreatedAt, &r.StepCount); err != nil {
			return nil, storeError("scan run", err)
		}
		r.Name = name.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *LibSQLStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin delete run", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM steps WHERE run_id = ?`,
		`DELETE FROM edges WHERE run_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return storeError("delete run", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return storeError("delete run", err)
	}
	if err := checkRowsAffected(res, "run", id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Steps ---

// AppendStep inserts rec with the run's next sequence number. The read of the
// current maximum and the insert share one transaction; the store holds a
// single connection, so appends to a run are serialized.
func (s *LibSQLStore) AppendStep(ctx context.Context, rec *StepRecord) error {
	if rec.NodeID == "" {
		return schema.NewError(schema.ErrCodeValidation, "step node_id is required")
	}
	attrs, err := nullableMap(rec.Attrs)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "marshal step attrs").WithNode(rec.NodeID).WithCause(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin append step", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, rec.RunID).Scan(&exists); err != nil {
		return storeError("check run", err)
	}
	if exists == 0 {
		return storeNotFound("run", rec.RunID)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM steps WHERE run_id = ?`, rec.RunID,
	).Scan(&seq); err != nil {
		return storeError("next step sequence", err)
	}

	rec.Seq = seq
	rec.RecordedAt = timeOrNow(rec.RecordedAt)
	if rec.Status == "" {
		rec.Status = schema.StepStatusSuccess
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO steps (run_id, seq, node_id, status, label, attrs, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, seq, rec.NodeID, string(rec.Status), nullStr(rec.Label), attrs, rec.RecordedAt,
	); err != nil {
		return storeError("insert step", err)
	}
	if err := tx.Commit(); err != nil {
		return storeError("commit step", err)
	}
	return nil
}

func (s *LibSQLStore) ListSteps(ctx context.Context, runID string) ([]*StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, node_id, status, label, attrs, recorded_at
		 FROM steps WHERE run_id = ? ORDER BY seq ASC`, runID,
	)
	if err != nil {
		return nil, storeError("list steps", err)
	}
	defer rows.Close()

	var out []*StepRecord
	for rows.Next() {
		r := &StepRecord{}
		var status string
		var label, attrs sql.NullString
		if err := rows.Scan(&r.RunID, &r.Seq, &r.NodeID, &status, &label, &attrs, &r.RecordedAt); err != nil {
			return nil, storeError("scan step", err)
		}
		r.Status = schema.StepStatus(status)
		r.Label = label.String
		if attrs.Valid && attrs.String != "" {
			if err := json.Unmarshal([]byte(attrs.String), &r.Attrs); err != nil {
				return nil, storeError("decode step attrs", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Edges ---

func (s *LibSQLStore) PutEdges(ctx context.Context, runID string, edges []schema.Edge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin put edges", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE run_id = ?`, runID); err != nil {
		return storeError("clear edges", err)
	}
	for i, e := range edges {
		if e.ID == "" || e.Source == "" || e.Target == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "edge %d: id, source and target are required", i)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edges (run_id, id, source, target, ord) VALUES (?, ?, ?, ?, ?)`,
			runID, e.ID, e.Source, e.Target, i,
		); err != nil {
			return storeError(fmt.Sprintf("insert edge %q", e.ID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeError("commit edges", err)
	}
	return nil
}

func (s *LibSQLStore) ListEdges(ctx context.Context, runID string) ([]schema.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, target FROM edges WHERE run_id = ? ORDER BY ord ASC`, runID,
	)
	if err != nil {
		return nil, storeError("list edges", err)
	}
	defer rows.Close()

	var out []schema.Edge
	for rows.Next() {
		var e schema.Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target); err != nil {
			return nil, storeError("scan edge", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Traces ---

func (s *LibSQLStore) RecordTrace(ctx context.Context, run *Run, steps []*StepRecord, edges []schema.Edge) error {
	if run == nil || run.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "run id is required")
	}
	run.CreatedAt = timeOrNow(run.CreatedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin record trace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, name, created_at) VALUES (?, ?, ?)`,
		run.ID, nullStr(run.Name), run.CreatedAt,
	); err != nil {
		return storeError("create run", err)
	}

	for i, rec := range steps {
		if rec.NodeID == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "step %d: node_id is required", i)
		}
		attrs, err := nullableMap(rec.Attrs)
		if err != nil {
			return schema.NewError(schema.ErrCodeValidation, "marshal step attrs").WithNode(rec.NodeID).WithCause(err)
		}
		rec.RunID = run.ID
		rec.Seq = int64(i + 1)
		rec.RecordedAt = timeOrNow(rec.RecordedAt)
		if rec.Status == "" {
			rec.Status = schema.StepStatusSuccess
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO steps (run_id, seq, node_id, status, label, attrs, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.Seq, rec.NodeID, string(rec.Status), nullStr(rec.Label), attrs, rec.RecordedAt,
		); err != nil {
			return storeError("insert step", err)
		}
	}

	for i, e := range edges {
		if e.ID == "" || e.Source == "" || e.Target == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "edge %d: id, source and target are required", i)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edges (run_id, id, source, target, ord) VALUES (?, ?, ?, ?, ?)`,
			run.ID, e.ID, e.Source, e.Target, i,
		); err != nil {
			return storeError(fmt.Sprintf("insert edge %q", e.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError("commit trace", err)
	}
	return nil
}

func (s *LibSQLStore) GetTrace(ctx context.Context, runID string) (*schema.Trace, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	recs, err := s.ListSteps(ctx, runID)
	if err != nil {
		return nil, err
	}
	edges, err := s.ListEdges(ctx, runID)
	if err != nil {
		return nil, err
	}

	tr := &schema.Trace{
		RunID: run.ID,
		Name:  run.Name,
		Steps: make([]schema.Step, 0, len(recs)),
		Edges: edges,
	}
	for _, r := range recs {
		tr.Steps = append(tr.Steps, r.Step())
	}
	return tr, nil
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.PlaybackError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func storeError(op string, err error) *schema.PlaybackError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableMap(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

var _ Store = (*LibSQLStore)(nil)
