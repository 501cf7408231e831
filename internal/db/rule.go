package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/staykit/staykit/internal/staykit"
)

// CreateRule stores a new automation rule.
func (d *DB) CreateRule(ctx context.Context, r *staykit.AutomationRule) error {
	triggerJSON, _ := json.Marshal(r.Trigger)
	actionsJSON, _ := json.Marshal(r.Actions)
	var retryJSON []byte
	if r.RetryPolicy != nil {
		retryJSON, _ = json.Marshal(r.RetryPolicy)
	}

	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO automation_rules (id, name, description, enabled, trigger, actions, retry_policy, run_count, last_run_at, last_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, r.Name, r.Description, r.Enabled, triggerJSON, actionsJSON, nullableJSON(retryJSON),
		r.RunCount, r.LastRunAt, r.LastError, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// GetRule retrieves a rule by ID.
func (d *DB) GetRule(ctx context.Context, id string) (*staykit.AutomationRule, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT id, name, description, enabled, trigger, actions, retry_policy, run_count, last_run_at, last_error, created_at, updated_at
		 FROM automation_rules WHERE id = $1`, id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return r, nil
}

// UpdateRule updates an existing rule.
func (d *DB) UpdateRule(ctx context.Context, r *staykit.AutomationRule) error {
	triggerJSON, _ := json.Marshal(r.Trigger)
	actionsJSON, _ := json.Marshal(r.Actions)
	var retryJSON []byte
	if r.RetryPolicy != nil {
		retryJSON, _ = json.Marshal(r.RetryPolicy)
	}

	_, err := d.Pool.ExecContext(ctx,
		`UPDATE automation_rules SET name=$1, description=$2, enabled=$3, trigger=$4, actions=$5, retry_policy=$6, run_count=$7, last_run_at=$8, last_error=$9, updated_at=$10
		 WHERE id=$11`,
		r.Name, r.Description, r.Enabled, triggerJSON, actionsJSON, nullableJSON(retryJSON),
		r.RunCount, r.LastRunAt, r.LastError, r.UpdatedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule.
func (d *DB) DeleteRule(ctx context.Context, id string) error {
	_, err := d.Pool.ExecContext(ctx, `DELETE FROM automation_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// ListRules returns all rules ordered by creation time.
func (d *DB) ListRules(ctx context.Context) ([]*staykit.AutomationRule, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, name, description, enabled, trigger, actions, retry_policy, run_count, last_run_at, last_error, created_at, updated_at
		 FROM automation_rules ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var result []*staykit.AutomationRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*staykit.AutomationRule, error) {
	r := &staykit.AutomationRule{}
	var triggerJSON, actionsJSON, retryJSON []byte

	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Enabled, &triggerJSON, &actionsJSON, &retryJSON,
		&r.RunCount, &r.LastRunAt, &r.LastError, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	json.Unmarshal(triggerJSON, &r.Trigger)
	json.Unmarshal(actionsJSON, &r.Actions)
	if len(retryJSON) > 0 {
		r.RetryPolicy = &staykit.RetryPolicy{}
		json.Unmarshal(retryJSON, r.RetryPolicy)
	}
	return r, nil
}

// nullableJSON maps empty JSON bytes to SQL NULL.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
