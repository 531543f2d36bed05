package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boudydegeer/product-analysis-sub000/internal/core"
	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
	apperrors "github.com/boudydegeer/product-analysis-sub000/internal/errors"
	"github.com/boudydegeer/product-analysis-sub000/internal/testutil"
)

func createTestItem(t *testing.T, repo *WorkItemRepo) *model.WorkItem {
	t.Helper()
	item, err := repo.Create(context.Background(), &model.CreateWorkItemRequest{
		JobSpec: json.RawMessage(`{"target": "https://example.com"}`),
	})
	require.NoError(t, err)
	return item
}

func triggerTestItem(t *testing.T, repo *WorkItemRepo, id string) {
	t.Helper()
	ok, err := repo.MarkTriggered(context.Background(), model.TriggerParams{
		ID:            id,
		ExternalJobID: "job-" + id,
		Secret:        "secret-" + id,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWorkItemRepo_CreateAndGet(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewWorkItemRepo(db, RepoConfig{})
		ctx := context.Background()

		t.Run("creates a pending item with generated id", func(t *testing.T) {
			item := createTestItem(t, repo)
			assert.NotEmpty(t, item.ID)
			assert.Equal(t, model.StatusPending, item.Status)
			assert.Nil(t, item.ExternalJobID)
			assert.Nil(t, item.WebhookReceivedAt)

			got, err := repo.GetByID(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, item.ID, got.ID)
			assert.JSONEq(t, `{"target": "https://example.com"}`, string(got.JobSpec))
		})

		t.Run("honours a caller-provided id", func(t *testing.T) {
			id := uuid.NewString()
			item, err := repo.Create(ctx, &model.CreateWorkItemRequest{
				ID:      id,
				JobSpec: json.RawMessage(`{}`),
			})
			require.NoError(t, err)
			assert.Equal(t, id, item.ID)
		})

		t.Run("duplicate id is a typed conflict", func(t *testing.T) {
			id := uuid.NewString()
			_, err := repo.Create(ctx, &model.CreateWorkItemRequest{ID: id, JobSpec: json.RawMessage(`{}`)})
			require.NoError(t, err)

			_, err = repo.Create(ctx, &model.CreateWorkItemRequest{ID: id, JobSpec: json.RawMessage(`{}`)})
			assert.True(t, apperrors.IsConflict(err))
		})

		t.Run("missing item returns sentinel", func(t *testing.T) {
			_, err := repo.GetByID(ctx, uuid.NewString())
			assert.ErrorIs(t, err, ErrWorkItemNotFound)
		})
	})
}

func TestWorkItemRepo_MarkTriggered(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewWorkItemRepo(db, RepoConfig{})
		ctx := context.Background()

		t.Run("moves pending to analyzing with job id and secret", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)

			got, err := repo.GetByID(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusAnalyzing, got.Status)
			require.NotNil(t, got.ExternalJobID)
			assert.Equal(t, "job-"+item.ID, *got.ExternalJobID)
			require.NotNil(t, got.Secret)
		})

		t.Run("second trigger loses the conditional update", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)

			ok, err := repo.MarkTriggered(ctx, model.TriggerParams{
				ID:            item.ID,
				ExternalJobID: "job-other",
				Secret:        "secret-other",
			})
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := repo.GetByID(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, "job-"+item.ID, *got.ExternalJobID)
		})
	})
}

func TestWorkItemRepo_CompleteTerminal(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewWorkItemRepo(db, RepoConfig{})
		resultRepo := NewResultRecordRepo(db)
		ctx := context.Background()

		t.Run("webhook claim writes status, receipt and result atomically", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)

			claimed, err := repo.CompleteTerminal(ctx, core.CompleteTerminalParams{
				ID:      item.ID,
				Status:  model.StatusCompleted,
				Payload: json.RawMessage(`{"verdict":"clean"}`),
				Via:     model.DeliveryWebhook,
			})
			require.NoError(t, err)
			assert.True(t, claimed)

			got, err := repo.GetByID(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusCompleted, got.Status)
			assert.NotNil(t, got.WebhookReceivedAt)

			record, err := resultRepo.GetByWorkItemID(ctx, item.ID)
			require.NoError(t, err)
			assert.JSONEq(t, `{"verdict":"clean"}`, string(record.Payload))
		})

		t.Run("polling claim leaves webhook receipt null", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)

			claimed, err := repo.CompleteTerminal(ctx, core.CompleteTerminalParams{
				ID:      item.ID,
				Status:  model.StatusFailed,
				Payload: json.RawMessage(`{"error":"analysis failed"}`),
				Via:     model.DeliveryPolling,
			})
			require.NoError(t, err)
			assert.True(t, claimed)

			got, err := repo.GetByID(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusFailed, got.Status)
			assert.Nil(t, got.WebhookReceivedAt)
		})

		t.Run("second claim is refused and writes nothing", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)

			claimed, err := repo.CompleteTerminal(ctx, core.CompleteTerminalParams{
				ID:      item.ID,
				Status:  model.StatusCompleted,
				Payload: json.RawMessage(`{"first":true}`),
				Via:     model.DeliveryWebhook,
			})
			require.NoError(t, err)
			require.True(t, claimed)

			claimed, err = repo.CompleteTerminal(ctx, core.CompleteTerminalParams{
				ID:      item.ID,
				Status:  model.StatusFailed,
				Payload: json.RawMessage(`{"second":true}`),
				Via:     model.DeliveryPolling,
			})
			require.NoError(t, err)
			assert.False(t, claimed)

			got, err := repo.GetByID(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusCompleted, got.Status)

			record, err := resultRepo.GetByWorkItemID(ctx, item.ID)
			require.NoError(t, err)
			assert.JSONEq(t, `{"first":true}`, string(record.Payload))
		})

		t.Run("pending item cannot be completed", func(t *testing.T) {
			item := createTestItem(t, repo)

			claimed, err := repo.CompleteTerminal(ctx, core.CompleteTerminalParams{
				ID:      item.ID,
				Status:  model.StatusCompleted,
				Payload: json.RawMessage(`{}`),
				Via:     model.DeliveryWebhook,
			})
			require.NoError(t, err)
			assert.False(t, claimed)
		})

		t.Run("non-terminal status is rejected", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)

			_, err := repo.CompleteTerminal(ctx, core.CompleteTerminalParams{
				ID:     item.ID,
				Status: model.StatusAnalyzing,
				Via:    model.DeliveryWebhook,
			})
			require.Error(t, err)
		})

		t.Run("concurrent claims settle exactly once", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)

			const workers = 8
			var wg sync.WaitGroup
			claims := make(chan bool, workers)
			for i := range workers {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					via := model.DeliveryWebhook
					if n%2 == 0 {
						via = model.DeliveryPolling
					}
					claimed, err := repo.CompleteTerminal(ctx, core.CompleteTerminalParams{
						ID:      item.ID,
						Status:  model.StatusCompleted,
						Payload: json.RawMessage(`{}`),
						Via:     via,
					})
					if err == nil {
						claims <- claimed
					}
				}(i)
			}
			wg.Wait()
			close(claims)

			wins := 0
			for claimed := range claims {
				if claimed {
					wins++
				}
			}
			assert.Equal(t, 1, wins)

			var count int
			err := db.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM result_records WHERE work_item_id = $1", item.ID).Scan(&count)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	})
}

func TestWorkItemRepo_MarkPolled(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewWorkItemRepo(db, RepoConfig{})
		ctx := context.Background()

		item := createTestItem(t, repo)
		triggerTestItem(t, repo, item.ID)

		first := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, repo.MarkPolled(ctx, item.ID, first))

		got, err := repo.GetByID(ctx, item.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastPolledAt)
		assert.True(t, got.LastPolledAt.Equal(first))

		// An older timestamp never moves the marker backwards.
		require.NoError(t, repo.MarkPolled(ctx, item.ID, first.Add(-time.Minute)))
		got, err = repo.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.True(t, got.LastPolledAt.Equal(first))

		later := first.Add(time.Minute)
		require.NoError(t, repo.MarkPolled(ctx, item.ID, later))
		got, err = repo.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.True(t, got.LastPolledAt.Equal(later))
	})
}

func TestWorkItemRepo_ListPollable(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewWorkItemRepo(db, RepoConfig{})
		ctx := context.Background()
		now := time.Now().UTC()

		params := core.ListPollableParams{
			Now:          now,
			PollTimeout:  15 * time.Minute,
			WebhookGrace: 5 * time.Minute,
			Limit:        10,
		}

		listIDs := func() []string {
			items, err := repo.ListPollable(ctx, params)
			require.NoError(t, err)
			ids := make([]string, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.ID)
			}
			return ids
		}

		t.Run("pending items are not selected", func(t *testing.T) {
			item := createTestItem(t, repo)
			assert.NotContains(t, listIDs(), item.ID)
		})

		t.Run("analyzing item inside the window is selected", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)
			assert.Contains(t, listIDs(), item.ID)
		})

		t.Run("recent webhook receipt excludes the item", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)
			_, err := db.ExecContext(ctx,
				"UPDATE work_items SET webhook_received_at = $2 WHERE id = $1",
				item.ID, now.Add(-10*time.Second))
			require.NoError(t, err)
			assert.NotContains(t, listIDs(), item.ID)
		})

		t.Run("stale webhook receipt keeps the item eligible", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)
			_, err := db.ExecContext(ctx,
				"UPDATE work_items SET webhook_received_at = $2 WHERE id = $1",
				item.ID, now.Add(-400*time.Second))
			require.NoError(t, err)
			assert.Contains(t, listIDs(), item.ID)
		})

		t.Run("item past the poll timeout is excluded", func(t *testing.T) {
			item := createTestItem(t, repo)
			triggerTestItem(t, repo, item.ID)
			_, err := db.ExecContext(ctx,
				"UPDATE work_items SET created_at = $2 WHERE id = $1",
				item.ID, now.Add(-20*time.Minute))
			require.NoError(t, err)
			assert.NotContains(t, listIDs(), item.ID)
		})

		t.Run("never-polled items come first", func(t *testing.T) {
			testutil.CleanupTestDB(t, db)

			polled := createTestItem(t, repo)
			triggerTestItem(t, repo, polled.ID)
			require.NoError(t, repo.MarkPolled(ctx, polled.ID, now.Add(-time.Minute)))

			fresh := createTestItem(t, repo)
			triggerTestItem(t, repo, fresh.ID)

			ids := listIDs()
			require.Len(t, ids, 2)
			assert.Equal(t, fresh.ID, ids[0])
			assert.Equal(t, polled.ID, ids[1])
		})
	})
}

func TestWorkItemRepo_CountStuck(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewWorkItemRepo(db, RepoConfig{})
		ctx := context.Background()
		now := time.Now().UTC()

		item := createTestItem(t, repo)
		triggerTestItem(t, repo, item.ID)
		_, err := db.ExecContext(ctx,
			"UPDATE work_items SET created_at = $2 WHERE id = $1",
			item.ID, now.Add(-30*time.Minute))
		require.NoError(t, err)

		count, err := repo.CountStuck(ctx, now.Add(-15*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = repo.CountStuck(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
