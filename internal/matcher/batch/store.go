package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS batch_runs (
    run_id      TEXT PRIMARY KEY,
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    total       INT NOT NULL,
    passed      INT NOT NULL,
    failed      INT NOT NULL,
    errors      INT NOT NULL
);
CREATE TABLE IF NOT EXISTS batch_case_results (
    run_id     TEXT NOT NULL REFERENCES batch_runs(run_id) ON DELETE CASCADE,
    case_index INT NOT NULL,
    outcome    JSONB NOT NULL,
    passed     BOOLEAN NOT NULL,
    PRIMARY KEY (run_id, case_index)
)`

// Store persists batch reports in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "batch-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating batch tables: %w", err)
	}
	return nil
}

// SaveReport writes the run and every case outcome in one transaction.
func (s *Store) SaveReport(ctx context.Context, report Report) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO batch_runs (run_id, started_at, duration_ms, total, passed, failed, errors)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			report.RunID, report.StartedAt, report.Duration.Milliseconds(),
			report.Total, report.Passed, report.Failed, report.Errors,
		)
		if err != nil {
			return fmt.Errorf("inserting batch run: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO batch_case_results (run_id, case_index, outcome, passed) VALUES ($1, $2, $3, $4)`,
		)
		if err != nil {
			return fmt.Errorf("preparing case insert: %w", err)
		}
		defer stmt.Close()
		for _, o := range report.Outcomes {
			data, err := json.Marshal(o)
			if err != nil {
				return fmt.Errorf("marshaling case %d: %w", o.Index, err)
			}
			if _, err := stmt.ExecContext(ctx, report.RunID, o.Index, data, o.Passed); err != nil {
				return fmt.Errorf("inserting case %d: %w", o.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("batch report saved", "run_id", report.RunID, "cases", len(report.Outcomes))
	return nil
}

// LoadReport reads a saved run back, outcomes in case order.
func (s *Store) LoadReport(ctx context.Context, runID string) (Report, error) {
	report := Report{RunID: runID}
	var durationMs int64
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT started_at, duration_ms, total, passed, failed, errors FROM batch_runs WHERE run_id = $1`,
		runID,
	).Scan(&report.StartedAt, &durationMs, &report.Total, &report.Passed, &report.Failed, &report.Errors)
	if err != nil {
		return Report{}, fmt.Errorf("loading batch run %s: %w", runID, err)
	}
	report.Duration = time.Duration(durationMs) * time.Millisecond

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT outcome FROM batch_case_results WHERE run_id = $1 ORDER BY case_index`,
		runID,
	)
	if err != nil {
		return Report{}, fmt.Errorf("loading cases of %s: %w", runID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return Report{}, fmt.Errorf("scanning case row: %w", err)
		}
		var o Outcome
		if err := json.Unmarshal(data, &o); err != nil {
			return Report{}, fmt.Errorf("decoding case outcome: %w", err)
		}
		report.Outcomes = append(report.Outcomes, o)
	}
	return report, rows.Err()
}
