// Package audit keeps a queryable history of action executions in
// PostgreSQL. Writes are best-effort: the executor never fails an action
// because the audit insert failed.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/Varun2365/funnelseye/internal/logger"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/metrics"
	"github.com/Varun2365/funnelseye/pkg/models"
)

type Execution struct {
	ID           string    `json:"id"`
	ExecutionID  string    `json:"execution_id"`
	RuleID       string    `json:"rule_id"`
	RuleName     string    `json:"rule_name"`
	EventID      string    `json:"event_id"`
	EventName    string    `json:"event_name"`
	ActionType   string    `json:"action_type"`
	Status       string    `json:"status"`
	Attempt      int       `json:"attempt"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	RuleID     string
	EventID    string
	ActionType string
	Status     string
	Limit      int
	Offset     int
}

type Repository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{db: db, logger: log}
}

// Record implements the executor's Recorder. Errors are logged and counted,
// never returned: losing one audit row must not retry a side effect.
func (r *Repository) Record(ctx context.Context, action *models.ActionMessage, status string, execErr error, duration time.Duration) {
	var errorMessage sql.NullString
	if execErr != nil {
		errorMessage = sql.NullString{String: execErr.Error(), Valid: true}
	}

	start := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO action_executions
			(id, execution_id, rule_id, rule_name, event_id, event_name, action_type, status, error_message, duration_ms, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		uuid.NewString(),
		action.ExecutionID,
		action.RuleID,
		action.RuleName,
		action.EventID,
		action.EventName,
		action.Type,
		status,
		errorMessage,
		duration.Milliseconds(),
	)
	metrics.ObserveDatabaseQueryDuration("action-executor", "postgres", "insert_execution", time.Since(start))

	if err != nil {
		metrics.IncDatabaseQuery("action-executor", "postgres", "insert_execution", "error")
		r.logger.ErrorwCtx(ctx, "Failed to record action execution",
			"execution_id", action.ExecutionID,
			"error", err,
		)
		return
	}
	metrics.IncDatabaseQuery("action-executor", "postgres", "insert_execution", "success")
}

// List returns executions newest first, filtered and paginated for the
// admin API.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Execution, error) {
	query := `
		SELECT id, execution_id, rule_id, rule_name, event_id, event_name,
		       action_type, status, attempt, COALESCE(error_message, ''), duration_ms, executed_at
		FROM action_executions
		WHERE ($1 = '' OR rule_id = $1)
		  AND ($2 = '' OR event_id = $2)
		  AND ($3 = '' OR action_type = $3)
		  AND ($4 = '' OR status = $4)
		ORDER BY executed_at DESC
		LIMIT $5 OFFSET $6`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query,
		filter.RuleID, filter.EventID, filter.ActionType, filter.Status, limit, filter.Offset)
	metrics.ObserveDatabaseQueryDuration("admin-service", "postgres", "list_executions", time.Since(start))
	if err != nil {
		metrics.IncDatabaseQuery("admin-service", "postgres", "list_executions", "error")
		return nil, apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
	}
	defer rows.Close()

	executions := []Execution{}
	for rows.Next() {
		var e Execution
		if err := rows.Scan(&e.ID, &e.ExecutionID, &e.RuleID, &e.RuleName, &e.EventID, &e.EventName,
			&e.ActionType, &e.Status, &e.Attempt, &e.ErrorMessage, &e.DurationMs, &e.ExecutedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrInternal)
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
	}

	metrics.IncDatabaseQuery("admin-service", "postgres", "list_executions", "success")
	return executions, nil
}
