// Package sqlstore implements storage.Driver over database/sql. The sqlite and
// postgres drivers embed it and differ only in how the connection is opened.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/report"
	"github.com/aona-labs/aona/pkg/storage"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	// SQLite uses ? placeholders.
	SQLite Dialect = iota
	// Postgres uses $n placeholders.
	Postgres
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	recipient TEXT NOT NULL,
	total_readings BIGINT NOT NULL DEFAULT 0,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS readings (
	node_id TEXT NOT NULL REFERENCES nodes(id),
	seq BIGINT NOT NULL,
	ts BIGINT NOT NULL,
	ph DOUBLE PRECISION,
	turbidity DOUBLE PRECISION,
	conductivity DOUBLE PRECISION,
	temperature DOUBLE PRECISION,
	level DOUBLE PRECISION,
	PRIMARY KEY (node_id, seq)
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	agent TEXT NOT NULL,
	started_at BIGINT NOT NULL,
	body TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Store is a database/sql backed storage.Driver.
type Store struct {
	DB      *sql.DB
	dialect Dialect
}

// New migrates db and returns a Store over it.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{DB: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders for the dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PutNode creates or updates node metadata.
func (s *Store) PutNode(ctx context.Context, node *storage.Node) error {
	if node == nil || node.ID == "" {
		return errors.New("cannot store node without id")
	}
	created := node.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	query := s.rebind(`
		INSERT INTO nodes (id, name, location, recipient, total_readings, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			recipient = excluded.recipient`)

	_, err := s.DB.ExecContext(ctx, query,
		node.ID, node.Name, node.Location, node.Recipient, created.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert node: %w", err)
	}
	return nil
}

// GetNode returns a node by id.
func (s *Store) GetNode(ctx context.Context, id string) (*storage.Node, error) {
	query := s.rebind(`SELECT id, name, location, recipient, total_readings, created_at FROM nodes WHERE id = ?`)
	n, err := scanNode(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Kind: "node", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan node: %w", err)
	}
	return n, nil
}

// ListNodes returns nodes in creation order.
func (s *Store) ListNodes(ctx context.Context) ([]*storage.Node, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, location, recipient, total_readings, created_at FROM nodes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*storage.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// AppendReading increments the node counter and stores r under it.
func (s *Store) AppendReading(ctx context.Context, nodeID string, r reading.Reading) (reading.Reading, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	err = tx.QueryRowContext(ctx,
		s.rebind(`UPDATE nodes SET total_readings = total_readings + 1 WHERE id = ? RETURNING total_readings`),
		nodeID,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return reading.Reading{}, storage.NotFoundError{Kind: "node", ID: nodeID}
	}
	if err != nil {
		return reading.Reading{}, fmt.Errorf("failed to bump reading count: %w", err)
	}

	r.Sequence = uint64(seq)
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO readings (node_id, seq, ts, ph, turbidity, conductivity, temperature, level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		nodeID, seq, r.Timestamp.UnixMilli(),
		nullFloat(r.PH), nullFloat(r.Turbidity), nullFloat(r.Conductivity),
		nullFloat(r.Temperature), nullFloat(r.Level),
	)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("failed to insert reading: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return reading.Reading{}, fmt.Errorf("failed to commit reading: %w", err)
	}
	return r, nil
}

// LatestReading returns the highest-sequence reading of a node.
func (s *Store) LatestReading(ctx context.Context, nodeID string) (*reading.Reading, error) {
	query := s.rebind(`
		SELECT seq, ts, ph, turbidity, conductivity, temperature, level
		FROM readings WHERE node_id = ? ORDER BY seq DESC LIMIT 1`)

	var (
		seq, ts                     int64
		ph, turb, cond, temp, level sql.NullFloat64
	)
	err := s.DB.QueryRowContext(ctx, query, nodeID).Scan(&seq, &ts, &ph, &turb, &cond, &temp, &level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Kind: "reading", ID: nodeID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}

	return &reading.Reading{
		Timestamp:    time.UnixMilli(ts).UTC(),
		PH:           floatPtr(ph),
		Turbidity:    floatPtr(turb),
		Conductivity: floatPtr(cond),
		Temperature:  floatPtr(temp),
		Level:        floatPtr(level),
		Sequence:     uint64(seq),
	}, nil
}

// SaveRun stores run as JSON, replacing any run with the same id.
func (s *Store) SaveRun(ctx context.Context, run *report.Run) error {
	if run == nil || run.ID == "" {
		return errors.New("cannot store run without id")
	}
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (id, agent, started_at, body) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET body = excluded.body`),
		run.ID, run.Agent, run.StartedAt.UnixMilli(), string(body))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun returns a stored run.
func (s *Store) GetRun(ctx context.Context, id string) (*report.Run, error) {
	var body string
	err := s.DB.QueryRowContext(ctx, s.rebind(`SELECT body FROM runs WHERE id = ?`), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Kind: "run", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return decodeRun(body)
}

// LatestRun returns the run with the latest start time.
func (s *Store) LatestRun(ctx context.Context) (*report.Run, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, storage.NotFoundError{Kind: "run"}
	}
	return runs[0], nil
}

// ListRuns returns runs newest first. A limit of zero or less returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*report.Run, error) {
	query := `SELECT body FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*report.Run
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := decodeRun(body)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*storage.Node, error) {
	var (
		n       storage.Node
		total   int64
		created int64
	)
	if err := row.Scan(&n.ID, &n.Name, &n.Location, &n.Recipient, &total, &created); err != nil {
		return nil, err
	}
	n.TotalReadings = uint64(total)
	n.CreatedAt = time.UnixMilli(created).UTC()
	return &n, nil
}

func decodeRun(body string) (*report.Run, error) {
	var run report.Run
	if err := json.Unmarshal([]byte(body), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
