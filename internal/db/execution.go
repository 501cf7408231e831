package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/staykit/staykit/internal/staykit"
)

// CreateExecution stores a new execution record.
func (d *DB) CreateExecution(ctx context.Context, r *staykit.ExecutionRecord) error {
	stepsJSON, _ := json.Marshal(r.StepResults)

	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO rule_executions (id, rule_id, subject_id, bucket, attempt, trigger_kind, status, step_results, error_message, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.RuleID, r.SubjectID, r.Bucket, r.Attempt, string(r.TriggerKind),
		string(r.Status), stepsJSON, r.ErrorMessage, r.DurationMs, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution record by ID.
func (d *DB) GetExecution(ctx context.Context, id string) (*staykit.ExecutionRecord, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT id, rule_id, subject_id, bucket, attempt, trigger_kind, status, step_results, error_message, duration_ms, created_at
		 FROM rule_executions WHERE id = $1`, id)
	r, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("execution not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return r, nil
}

// ListExecutionsByRule returns executions for one rule with pagination.
func (d *DB) ListExecutionsByRule(ctx context.Context, ruleID string, limit, offset int) ([]*staykit.ExecutionRecord, int, error) {
	var total int
	err := d.Pool.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rule_executions WHERE rule_id = $1`, ruleID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, rule_id, subject_id, bucket, attempt, trigger_kind, status, step_results, error_message, duration_ms, created_at
		 FROM rule_executions WHERE rule_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		ruleID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	result, err := collectExecutions(rows)
	return result, total, err
}

// ListExecutions returns all executions, optionally filtered by status.
func (d *DB) ListExecutions(ctx context.Context, limit, offset int, status string) ([]*staykit.ExecutionRecord, int, error) {
	var total int
	err := d.Pool.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rule_executions WHERE ($1 = '' OR status = $1)`, status,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, rule_id, subject_id, bucket, attempt, trigger_kind, status, step_results, error_message, duration_ms, created_at
		 FROM rule_executions WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	result, err := collectExecutions(rows)
	return result, total, err
}

// TryClaimOccurrence inserts a claim row for the occurrence key. The
// primary-key conflict makes the claim atomic across concurrent callers:
// exactly one insert reports an affected row.
func (d *DB) TryClaimOccurrence(ctx context.Context, key string) (bool, error) {
	res, err := d.Pool.ExecContext(ctx,
		`INSERT INTO rule_claims (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key)
	if err != nil {
		return false, fmt.Errorf("claim occurrence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim occurrence: %w", err)
	}
	return n == 1, nil
}

// ReleaseClaimIfFailed removes the claim when the most recent execution
// for the occurrence has failed.
func (d *DB) ReleaseClaimIfFailed(ctx context.Context, key string, occ staykit.TriggerOccurrence) error {
	_, err := d.Pool.ExecContext(ctx,
		`DELETE FROM rule_claims WHERE key = $1 AND (
		     SELECT status FROM rule_executions
		     WHERE rule_id = $2 AND subject_id = $3 AND bucket = $4
		     ORDER BY created_at DESC LIMIT 1
		 ) = 'failed'`,
		key, occ.RuleID, occ.SubjectID, occ.Bucket)
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

func collectExecutions(rows *sql.Rows) ([]*staykit.ExecutionRecord, error) {
	var result []*staykit.ExecutionRecord
	for rows.Next() {
		r, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanExecution(row rowScanner) (*staykit.ExecutionRecord, error) {
	r := &staykit.ExecutionRecord{}
	var triggerKind, status string
	var stepsJSON []byte

	err := row.Scan(&r.ID, &r.RuleID, &r.SubjectID, &r.Bucket, &r.Attempt, &triggerKind,
		&status, &stepsJSON, &r.ErrorMessage, &r.DurationMs, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.TriggerKind = staykit.TriggerKind(triggerKind)
	r.Status = staykit.ChainStatus(status)
	json.Unmarshal(stepsJSON, &r.StepResults)
	return r, nil
}
