// Package audit persists completed agent runs to Postgres so answers can be
// traced back to the queries that produced them.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxalytics/voxalytics/pkg/agent"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_runs (
        id          BIGSERIAL PRIMARY KEY,
        session_id  TEXT NOT NULL,
        question    TEXT NOT NULL,
        answer      TEXT NOT NULL,
        outcome     TEXT NOT NULL,
        warning     TEXT NOT NULL DEFAULT '',
        tool_count  INT NOT NULL DEFAULT 0,
        tool_calls  JSONB NOT NULL DEFAULT '[]'::jsonb,
        provider    TEXT NOT NULL DEFAULT '',
        model       TEXT NOT NULL DEFAULT '',
        started_at  TIMESTAMPTZ NOT NULL,
        elapsed_ms  BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS agent_runs_session_idx ON agent_runs (session_id);
`

// Store is a Postgres-backed run recorder. A nil Store is a no-op, so
// front-ends can wire it unconditionally and leave auditing off by
// configuration.
type Store struct {
	DB *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the run table exists.
func NewStore(ctx context.Context, connStr string) (*Store, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ensure schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// Record implements agent.Recorder.
func (s *Store) Record(ctx context.Context, run agent.RunLog) error {
	if s == nil || s.DB == nil {
		return nil
	}

	calls, err := json.Marshal(run.Records)
	if err != nil {
		calls = []byte("[]")
	}
	_, err = s.DB.Exec(ctx, `
        INSERT INTO agent_runs
                (session_id, question, answer, outcome, warning, tool_count,
                 tool_calls, provider, model, started_at, elapsed_ms)
        VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11);
        `,
		run.SessionID, run.Question, run.Answer, string(run.Outcome), run.Warning,
		run.ToolCount, string(calls), run.Provider, run.Model,
		run.StartedAt, run.Elapsed.Milliseconds())
	return err
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]agent.RunLog, error) {
	if s == nil || s.DB == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.DB.Query(ctx, `
        SELECT session_id, question, answer, outcome, warning, tool_count,
               tool_calls, provider, model, started_at
        FROM agent_runs
        ORDER BY id DESC
        LIMIT $1;
        `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []agent.RunLog
	for rows.Next() {
		var (
			run     agent.RunLog
			outcome string
			calls   []byte
		)
		if err := rows.Scan(&run.SessionID, &run.Question, &run.Answer, &outcome,
			&run.Warning, &run.ToolCount, &calls, &run.Provider, &run.Model,
			&run.StartedAt); err != nil {
			return nil, err
		}
		run.Outcome = agent.Outcome(outcome)
		_ = json.Unmarshal(calls, &run.Records)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	s.DB.Close()
	return nil
}
