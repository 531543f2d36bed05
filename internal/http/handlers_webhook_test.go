package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boudydegeer/product-analysis-sub000/internal/data/cryptoutil"
	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
)

func seedAnalyzingItem(store *memStore, secret string) string {
	id := uuid.NewString()
	jobID := "job-" + id[:8]
	now := time.Now().UTC()
	store.items[id] = &model.WorkItem{
		ID:            id,
		Status:        model.StatusAnalyzing,
		ExternalJobID: &jobID,
		Secret:        &secret,
		JobSpec:       json.RawMessage(`{}`),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return id
}

func postCallback(t *testing.T, router http.Handler, id, signature string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/callbacks/analysis", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if id != "" {
		req.Header.Set(HeaderWorkItemID, id)
	}
	if signature != "" {
		req.Header.Set(HeaderSignature, signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRoute(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"

	t.Run("valid delivery settles the item", func(t *testing.T) {
		store := newMemStore()
		router := newTestRouter(t, store)
		id := seedAnalyzingItem(store, secret)

		body := []byte(`{"workItemId":"` + id + `","verdict":"clean"}`)
		rec := postCallback(t, router, id, cryptoutil.Sign(body, secret), body)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Status    model.WorkItemStatus `json:"status"`
			Duplicate bool                 `json:"duplicate"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, model.StatusCompleted, resp.Status)
		assert.False(t, resp.Duplicate)

		result := doJSON(t, router, http.MethodGet, "/api/work-items/"+id+"/result", "")
		require.Equal(t, http.StatusOK, result.Code)

		var record model.ResultRecord
		require.NoError(t, json.Unmarshal(result.Body.Bytes(), &record))
		assert.JSONEq(t, string(body), string(record.Payload))
	})

	t.Run("error payload settles the item as failed", func(t *testing.T) {
		store := newMemStore()
		router := newTestRouter(t, store)
		id := seedAnalyzingItem(store, secret)

		body := []byte(`{"workItemId":"` + id + `","error":"fetch timed out"}`)
		rec := postCallback(t, router, id, cryptoutil.Sign(body, secret), body)
		require.Equal(t, http.StatusOK, rec.Code)

		status := doJSON(t, router, http.MethodGet, "/api/work-items/"+id+"/status", "")
		require.Equal(t, http.StatusOK, status.Code)
		assert.Contains(t, status.Body.String(), string(model.StatusFailed))
	})

	t.Run("missing work item header returns 400", func(t *testing.T) {
		store := newMemStore()
		router := newTestRouter(t, store)
		seedAnalyzingItem(store, secret)

		body := []byte(`{}`)
		rec := postCallback(t, router, "", cryptoutil.Sign(body, secret), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing signature returns 400", func(t *testing.T) {
		store := newMemStore()
		router := newTestRouter(t, store)
		id := seedAnalyzingItem(store, secret)

		rec := postCallback(t, router, id, "", []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong signature returns 401 and leaves the item untouched", func(t *testing.T) {
		store := newMemStore()
		router := newTestRouter(t, store)
		id := seedAnalyzingItem(store, secret)

		body := []byte(`{"workItemId":"` + id + `"}`)
		rec := postCallback(t, router, id, cryptoutil.Sign(body, "wrong-secret"), body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		status := doJSON(t, router, http.MethodGet, "/api/work-items/"+id+"/status", "")
		assert.Contains(t, status.Body.String(), string(model.StatusAnalyzing))
	})

	t.Run("unknown work item returns 404", func(t *testing.T) {
		router := newTestRouter(t, newMemStore())

		body := []byte(`{}`)
		rec := postCallback(t, router, uuid.NewString(), cryptoutil.Sign(body, secret), body)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed payload with a valid signature returns 400", func(t *testing.T) {
		store := newMemStore()
		router := newTestRouter(t, store)
		id := seedAnalyzingItem(store, secret)

		body := []byte(`not json`)
		rec := postCallback(t, router, id, cryptoutil.Sign(body, secret), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("redelivery of a settled item returns 200 with duplicate", func(t *testing.T) {
		store := newMemStore()
		router := newTestRouter(t, store)
		id := seedAnalyzingItem(store, secret)

		body := []byte(`{"workItemId":"` + id + `"}`)
		signature := cryptoutil.Sign(body, secret)
		first := postCallback(t, router, id, signature, body)
		require.Equal(t, http.StatusOK, first.Code)

		second := postCallback(t, router, id, signature, body)
		require.Equal(t, http.StatusOK, second.Code)

		var resp struct {
			Duplicate bool `json:"duplicate"`
		}
		require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
		assert.True(t, resp.Duplicate)
	})
}
