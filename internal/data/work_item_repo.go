package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/boudydegeer/product-analysis-sub000/internal/core"
	"github.com/boudydegeer/product-analysis-sub000/internal/data/pgxutil"
	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
	apperrors "github.com/boudydegeer/product-analysis-sub000/internal/errors"
)

// RepoConfig holds configuration options for the work item repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// WorkItemRepo provides database operations for work item lifecycle state.
// It is the sole owner of the work_items and result_records tables; the
// webhook and polling paths mutate them only through CompleteTerminal.
type WorkItemRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewWorkItemRepo creates a new WorkItemRepo instance with the given database connection and configuration.
func NewWorkItemRepo(db *sql.DB, cfg RepoConfig) *WorkItemRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &WorkItemRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const workItemColumns = `
  id,
  status,
  external_job_id,
  secret,
  job_spec,
  created_at,
  updated_at,
  webhook_received_at,
  last_polled_at
`

// Create registers a new work item in pending state.
func (r *WorkItemRepo) Create(ctx context.Context, req *model.CreateWorkItemRequest) (*model.WorkItem, error) {
	if req == nil {
		return nil, errors.New("create work item request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := r.timeProvider.Now().UTC()

	query := `
      INSERT INTO work_items (id, status, job_spec, created_at, updated_at)
      VALUES ($1, 'pending', $2, $3, $3)
      RETURNING ` + workItemColumns

	row := r.DB.QueryRowContext(ctx, query, id, []byte(req.JobSpec), now)
	item, err := scanWorkItemFromRow(row)
	if err != nil {
		// A duplicate id surfaces as a typed conflict for the API layer.
		return nil, fmt.Errorf("insert work item: %w", apperrors.MapDBError(err))
	}
	return item, nil
}

// GetByID retrieves a work item by its identifier.
func (r *WorkItemRepo) GetByID(ctx context.Context, id string) (*model.WorkItem, error) {
	if id == "" {
		return nil, ErrWorkItemIDRequired
	}

	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id = $1`

	row := r.DB.QueryRowContext(ctx, query, id)
	item, err := scanWorkItemFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return item, nil
}

// MarkTriggered moves a pending item to analyzing, attaching the external job
// id and callback secret in the same conditional write. Returns false when the
// item was not pending.
func (r *WorkItemRepo) MarkTriggered(ctx context.Context, params model.TriggerParams) (bool, error) {
	if params.ID == "" {
		return false, ErrWorkItemIDRequired
	}
	now := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
      UPDATE work_items
      SET status = 'analyzing',
          external_job_id = $2,
          secret = $3,
          updated_at = $4
      WHERE id = $1 AND status = 'pending'
    `, params.ID, params.ExternalJobID, params.Secret, now)
	if err != nil {
		return false, fmt.Errorf("mark triggered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// CompleteTerminal performs the one-time analyzing→terminal transition and the
// ResultRecord insert in a single transaction. The conditional UPDATE on
// status is the entire synchronization mechanism between the webhook and
// polling paths: exactly one caller observes claimed=true per item, everyone
// else gets claimed=false and must treat it as a no-op.
func (r *WorkItemRepo) CompleteTerminal(ctx context.Context, params core.CompleteTerminalParams) (bool, error) {
	if params.ID == "" {
		return false, ErrWorkItemIDRequired
	}
	if !params.Status.Terminal() {
		return false, fmt.Errorf("non-terminal status %q", params.Status)
	}

	now := params.Now
	if now.IsZero() {
		now = r.timeProvider.Now()
	}
	now = now.UTC()

	payload := []byte(params.Payload)
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	claimed := false
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			// webhook_received_at is written under the same condition as the
			// status transition so it can never be set without the transition
			// having occurred.
			res, execErr := tx.ExecContext(ctx, `
              UPDATE work_items
              SET status = $2,
                  webhook_received_at = CASE WHEN $3 THEN COALESCE(webhook_received_at, $4) ELSE webhook_received_at END,
                  updated_at = $4
              WHERE id = $1 AND status = 'analyzing'
            `, params.ID, params.Status, params.Via == model.DeliveryWebhook, now)
			if execErr != nil {
				return fmt.Errorf("claim terminal transition: %w", execErr)
			}
			affected, raErr := res.RowsAffected()
			if raErr != nil {
				return fmt.Errorf("rows affected: %w", raErr)
			}
			if affected == 0 {
				return nil
			}

			if _, execErr = tx.ExecContext(ctx, `
              INSERT INTO result_records (id, work_item_id, payload, completed_at)
              VALUES ($1, $2, $3, $4)
            `, uuid.NewString(), params.ID, payload, now); execErr != nil {
				return fmt.Errorf("insert result record: %w", classifyResultInsertError(execErr))
			}

			claimed = true
			return nil
		},
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// classifyResultInsertError maps a unique violation on result_records to the
// ErrResultExists sentinel.
func classifyResultInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrResultExists
	}
	return err
}

// MarkPolled records a polling attempt. The write is monotonic and commutes
// with concurrent writers, so it runs outside the terminal-transition gate.
func (r *WorkItemRepo) MarkPolled(ctx context.Context, id string, at time.Time) error {
	if id == "" {
		return ErrWorkItemIDRequired
	}
	at = at.UTC()

	if _, err := r.DB.ExecContext(ctx, `
      UPDATE work_items
      SET last_polled_at = $2, updated_at = $2
      WHERE id = $1 AND (last_polled_at IS NULL OR last_polled_at < $2)
    `, id, at); err != nil {
		return fmt.Errorf("mark polled: %w", err)
	}
	return nil
}

// ListPollable returns the analyzing items eligible for a polling attempt:
// triggered, inside the absolute timeout horizon, and without a webhook
// receipt newer than the grace window. Items idle the longest poll first.
func (r *WorkItemRepo) ListPollable(ctx context.Context, params core.ListPollableParams) ([]*model.WorkItem, error) {
	now := params.Now
	if now.IsZero() {
		now = r.timeProvider.Now()
	}
	now = now.UTC()

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
      SELECT ` + workItemColumns + `
      FROM work_items
      WHERE status = 'analyzing'
        AND external_job_id IS NOT NULL
        AND created_at >= $1
        AND (webhook_received_at IS NULL OR webhook_received_at <= $2)
      ORDER BY last_polled_at ASC NULLS FIRST, created_at ASC
      LIMIT $3`

	rows, err := r.DB.QueryContext(ctx, query,
		now.Add(-params.PollTimeout),
		now.Add(-params.WebhookGrace),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pollable work items: %w", err)
	}
	defer rows.Close()

	var items []*model.WorkItem
	for rows.Next() {
		item, scanErr := scanWorkItemFromRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan work item: %w", scanErr)
		}
		items = append(items, item)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate work items: %w", rowsErr)
	}
	return items, nil
}

// CountStuck counts analyzing items created before the given horizon. These
// items will never be polled again; counting them keeps the condition visible
// without forcing a terminal transition.
func (r *WorkItemRepo) CountStuck(ctx context.Context, olderThan time.Time) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `
      SELECT count(*) FROM work_items
      WHERE status = 'analyzing' AND created_at < $1
    `, olderThan.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stuck work items: %w", err)
	}
	return count, nil
}

type workItemRowScanner interface {
	Scan(dest ...any) error
}

type workItemRowData struct {
	externalJobID, secret       sql.NullString
	jobSpec                     []byte
	webhookReceivedAt, polledAt sql.NullTime
}

func (d *workItemRowData) scanInto(scanner workItemRowScanner, item *model.WorkItem) error {
	return scanner.Scan(
		&item.ID,
		&item.Status,
		&d.externalJobID,
		&d.secret,
		&d.jobSpec,
		&item.CreatedAt,
		&item.UpdatedAt,
		&d.webhookReceivedAt,
		&d.polledAt,
	)
}

func (d *workItemRowData) apply(item *model.WorkItem) {
	item.ExternalJobID = cloneNullableString(d.externalJobID)
	item.Secret = cloneNullableString(d.secret)
	item.JobSpec = cloneJSON(d.jobSpec)
	item.WebhookReceivedAt = cloneNullableTime(d.webhookReceivedAt)
	item.LastPolledAt = cloneNullableTime(d.polledAt)
}

func scanWorkItemFromRow(scanner workItemRowScanner) (*model.WorkItem, error) {
	item := &model.WorkItem{}
	var data workItemRowData
	if err := data.scanInto(scanner, item); err != nil {
		return nil, err
	}

	data.apply(item)
	return item, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
