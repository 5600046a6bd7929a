package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAPIClientWithConfig(srv.URL)
}

func TestAPIClient_Ask(t *testing.T) {
	var got map[string]string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ask", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"sessionId":"s-1","answer":"Paris","sources":["france.txt"],"confident":true}`))
	})

	result, err := c.Ask(context.Background(), "", "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "s-1", result.SessionID)
	assert.Equal(t, "Paris", result.Answer)
	assert.Equal(t, []string{"france.txt"}, result.Sources)
	assert.True(t, result.Confident)
	assert.Equal(t, "What is the capital of France?", got["question"])
	assert.Empty(t, got["sessionId"])
}

func TestAPIClient_ErrorBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"embedding service unavailable","code":"EMBEDDING_ERROR"}`))
	})

	_, err := c.Ask(context.Background(), "s-1", "q")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "EMBEDDING_ERROR", apiErr.Code)
	assert.Equal(t, "embedding service unavailable", apiErr.Message)
	assert.Contains(t, err.Error(), "502 EMBEDDING_ERROR")
}

func TestAPIClient_NonJSONError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Empty(t, apiErr.Code)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestAPIClient_HistoryAndForget(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/sessions/s-1/history":
			w.Write([]byte(`{"data":{"sessionId":"s-1","turns":[{"question":"q","answer":"a","askedAt":"2026-01-02T03:04:05Z"}]}}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/sessions/s-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"session not found","code":"NOT_FOUND"}`))
		}
	})

	history, err := c.History(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, history.Turns, 1)
	assert.Equal(t, "a", history.Turns[0].Answer)

	require.NoError(t, c.Forget(context.Background(), "s-1"))

	err = c.Forget(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestAPIClient_Health(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"data":{"status":"ok","entries":12,"documents":3}}`))
	})

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 12, health.Entries)
	assert.Equal(t, 3, health.Documents)
}

func TestAPIClient_Documents(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"data":{"items":[{"id":"a.txt","chunks":2}],"cursor":"next","hasMore":true}}`))
	})

	page, err := c.Documents(context.Background(), "abc", 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a.txt", page.Items[0].ID)
	assert.True(t, page.HasMore)
}

func TestAPIClient_Ingest(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, true, body["rebuild"])
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"data":{"id":"j-1","rebuild":true,"status":"pending","retries":0,"createdAt":"2026-01-02T03:04:05Z"}}`))
		case http.MethodGet:
			assert.Equal(t, "/ingest/j-1", r.URL.Path)
			w.Write([]byte(`{"data":{"id":"j-1","rebuild":true,"status":"completed","retries":0,"createdAt":"2026-01-02T03:04:05Z","report":{"documents":2,"chunks":4,"added":4,"unchanged":0,"removed":0}}}`))
		}
	})

	job, err := c.Ingest(context.Background(), true, "")
	require.NoError(t, err)
	assert.Equal(t, "j-1", job.ID)
	assert.Equal(t, "pending", string(job.Status))

	job, err = c.IngestStatus(context.Background(), "j-1")
	require.NoError(t, err)
	require.NotNil(t, job.Report)
	assert.Equal(t, 4, job.Report.Chunks)
}
