package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/repository/postgres"
	"github.com/jmoiron/sqlx"
)

var ErrRunNotFound = errors.New("solve run not found")

type RunRepository interface {
	SaveRun(ctx context.Context, result *domain.SolveResult) error
	GetRun(ctx context.Context, id string) (*domain.RunSummary, error)
	ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.RunSummary, error)
}

type runRepository struct {
	db *postgres.DB
}

func NewRunRepository(db *postgres.DB) RunRepository {
	return &runRepository{db: db}
}

// SaveRun stores the run header and its policy rows in one transaction.
func (r *runRepository) SaveRun(ctx context.Context, result *domain.SolveResult) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO solve_runs (id, scenario_name, scenario_hash, mode, root_value, states, decisions, duration_ms, export_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			result.RunID,
			result.ScenarioName,
			result.ScenarioHash,
			result.Mode,
			result.Value,
			result.Stats.States,
			result.Stats.Decisions,
			result.DurationMs,
			result.ExportKey,
			result.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert solve run: %w", err)
		}

		if len(result.Policy) == 0 {
			return nil
		}

		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO solve_policies (run_id, period, step, inventory, backlog, value, choices)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare policy insert: %w", err)
		}
		defer stmt.Close()

		for _, entry := range result.Policy {
			choices, err := json.Marshal(entry.Choices)
			if err != nil {
				return fmt.Errorf("failed to encode choices: %w", err)
			}
			s := entry.State
			if _, err := stmt.ExecContext(ctx, result.RunID, s.Period, s.Step, s.Inventory, s.Backlog, entry.Value, choices); err != nil {
				return fmt.Errorf("failed to insert policy row %s: %w", s, err)
			}
		}
		return nil
	})
}

func (r *runRepository) GetRun(ctx context.Context, id string) (*domain.RunSummary, error) {
	var run domain.RunSummary
	err := r.db.GetContext(ctx, &run, `
		SELECT id, scenario_name, scenario_hash, mode, root_value, states, decisions, duration_ms, export_key, created_at
		FROM solve_runs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting solve run: %w", err)
	}
	return &run, nil
}

func (r *runRepository) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.RunSummary, error) {
	query, args := buildRunListQuery(filter)

	runs := make([]domain.RunSummary, 0)
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("error listing solve runs: %w", err)
	}
	return runs, nil
}

func buildRunListQuery(filter domain.RunFilter) (string, []interface{}) {
	query := `
		SELECT id, scenario_name, scenario_hash, mode, root_value, states, decisions, duration_ms, export_key, created_at
		FROM solve_runs
		WHERE 1=1`

	var args []interface{}
	var conditions []string
	argCounter := 1

	if filter.ScenarioHash != "" {
		conditions = append(conditions, fmt.Sprintf("scenario_hash = $%d", argCounter))
		args = append(args, filter.ScenarioHash)
		argCounter++
	}

	if filter.Mode != "" {
		conditions = append(conditions, fmt.Sprintf("mode = $%d", argCounter))
		args = append(args, strings.ToLower(filter.Mode))
		argCounter++
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCounter)
	args = append(args, limit)

	return query, args
}
