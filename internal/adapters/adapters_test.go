package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/taskforge/rewards/internal/errors"
	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/monitoring"
	"github.com/taskforge/rewards/internal/relevance"
	"github.com/taskforge/rewards/internal/resilience"
	"github.com/taskforge/rewards/internal/types"
)

func testPool() *resilience.HTTPPool {
	return resilience.NewHTTPPool(2, 4, 5*time.Second)
}

func TestTrackerAdapter_Task(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/issues/7", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"id":     101,
			"number": 7,
			"title":  "Fix the widget",
			"body":   "Price is on the label",
			"user":   map[string]any{"id": 1, "login": "alice"},
			"assignees": []map[string]any{
				{"id": 2, "login": "bob"},
			},
			"labels":       []map[string]any{{"name": "bug"}, {"name": "Price: 100 USD"}},
			"state":        "closed",
			"state_reason": "completed",
		})
	}))
	defer server.Close()

	adapter := NewTrackerAdapter(server.URL, "tok", testPool(), monitoring.NewLogger())
	task, err := adapter.Task(context.Background(), "acme/widgets", 7)
	require.NoError(t, err)

	assert.Equal(t, int64(101), task.ID)
	assert.Equal(t, "acme/widgets", task.Repo)
	assert.Equal(t, types.Participant{ID: 1, Handle: "alice"}, task.Creator)
	assert.Equal(t, []types.Participant{{ID: 2, Handle: "bob"}}, task.Assignees)
	assert.Equal(t, []string{"bug", "Price: 100 USD"}, task.Labels)
	assert.True(t, task.ClosedAsCompleted())
}

func TestTrackerAdapter_TaskCommentsMarksBots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "user": map[string]any{"id": 1, "login": "alice"}, "body": "hello"},
			{"id": 2, "user": map[string]any{"id": 99, "login": "pay-bot", "type": "Bot"}, "body": "receipt"},
		})
	}))
	defer server.Close()

	adapter := NewTrackerAdapter(server.URL, "", testPool(), monitoring.NewLogger())
	comments, err := adapter.TaskComments(context.Background(), "acme/widgets", 7)
	require.NoError(t, err)

	require.Len(t, comments, 2)
	assert.False(t, comments[0].MachineAuthored())
	assert.True(t, comments[1].MachineAuthored())
}

func TestTrackerAdapter_ErrorStatusIsExternalAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewTrackerAdapter(server.URL, "", testPool(), monitoring.NewLogger())
	_, err := adapter.Task(context.Background(), "acme/widgets", 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryExternalAPI))
}

func TestTrackerAdapter_PostComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "settlement text", body["body"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":   555,
			"user": map[string]any{"id": 99, "login": "pay-bot", "type": "Bot"},
			"body": body["body"],
		})
	}))
	defer server.Close()

	adapter := NewTrackerAdapter(server.URL, "", testPool(), monitoring.NewLogger())
	id, err := adapter.PostComment(context.Background(), "acme/widgets", 7, "settlement text")
	require.NoError(t, err)
	assert.Equal(t, int64(555), id)
}

func TestOracleAdapter_ScoreRelevance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/relevance", r.URL.Path)

		var req oracleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "classifier-small", req.Model)
		assert.Len(t, req.Comments, 2)

		json.NewEncoder(w).Encode(oracleResponse{Scores: []float64{0.8, 0.4}})
	}))
	defer server.Close()

	adapter := NewOracleAdapter(server.URL, "tok", 10, testPool(), monitoring.NewLogger())
	scores, err := adapter.ScoreRelevance(context.Background(), relevance.TierSmall, "spec", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.8, 0.4}, scores)
}

func TestSignerAdapter_SignPayout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/permits", r.URL.Path)

		var req signerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "60.00", req.Amount)
		assert.Equal(t, "USD", req.Currency)
		assert.Equal(t, int64(42), req.TaskID)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"claim_url": "https://pay.example.com/claim/abc",
			"permit_id": "abc",
		})
	}))
	defer server.Close()

	adapter := NewSignerAdapter(server.URL, "tok", 10, testPool(), monitoring.NewLogger())
	permit, err := adapter.SignPayout(context.Background(), "0xbob", money.FromInt(60), "USD", 42, 2)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/claim/abc", permit.ClaimURL)
	assert.Equal(t, "abc", permit.PermitID)
}

func TestSignerAdapter_RejectsPermitWithoutClaimURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"permit_id": "abc"})
	}))
	defer server.Close()

	adapter := NewSignerAdapter(server.URL, "tok", 10, testPool(), monitoring.NewLogger())
	_, err := adapter.SignPayout(context.Background(), "0xbob", money.FromInt(60), "USD", 42, 2)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryExternalAPI))
}
