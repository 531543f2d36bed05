package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/boudydegeer/product-analysis-sub000/internal/data/pgxutil"
	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
)

// ResultRecordRepo provides read access to persisted analysis results.
// Inserts happen exclusively inside WorkItemRepo.CompleteTerminal so that a
// record can never exist without its terminal transition.
type ResultRecordRepo struct {
	DB *sql.DB
}

// NewResultRecordRepo constructs a ResultRecordRepo.
func NewResultRecordRepo(db *sql.DB) *ResultRecordRepo {
	return &ResultRecordRepo{DB: db}
}

// GetByWorkItemID retrieves the result record for a given work item.
func (r *ResultRecordRepo) GetByWorkItemID(ctx context.Context, workItemID string) (*model.ResultRecord, error) {
	if workItemID == "" {
		return nil, ErrWorkItemIDRequired
	}

	const query = `
		SELECT id, work_item_id, payload, completed_at
		FROM result_records
		WHERE work_item_id = $1`

	var res *model.ResultRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, workItemID)
		if err != nil {
			return err
		}
		defer rows.Close()
		record, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ResultRecord])
		if err != nil {
			return err
		}
		res = &record
		return nil
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result record: %w", err)
	}
	return res, nil
}
