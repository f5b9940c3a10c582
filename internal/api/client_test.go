package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autoapply-client/internal/types"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, nil)
	require.NoError(t, err)
	return client
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient("not a url", nil)
	assert.Error(t, err)
}

func TestStartRun_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/trigger", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["userId"])
		assert.Equal(t, "profile text", body["profileText"])

		_ = json.NewEncoder(w).Encode(map[string]string{"runId": "r1"})
	}))

	runID, err := client.StartRun(context.Background(), "tok", "u1", "profile text")
	require.NoError(t, err)
	assert.Equal(t, "r1", runID)
}

func TestStartRun_Unauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.StartRun(context.Background(), "stale", "u1", "")
	assert.True(t, IsAuthRequired(err))
}

func TestStartRun_ValidationMessageSurfacedVerbatim(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "userId is required"})
	}))

	_, err := client.StartRun(context.Background(), "tok", "", "")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "userId is required", ve.Message)
}

func TestStartRun_ServerErrorCarriesMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "queue unavailable"})
	}))

	_, err := client.StartRun(context.Background(), "tok", "u1", "")
	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.Contains(t, re.Error(), "queue unavailable")
	assert.False(t, IsAuthRequired(err))
}

func TestStartRun_MissingRunID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))

	_, err := client.StartRun(context.Background(), "tok", "u1", "")
	assert.Error(t, err)
}

func TestGetStatus_Success(t *testing.T) {
	started := int64(1700000000000)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status/u1", r.URL.Path)
		assert.Equal(t, "r1", r.URL.Query().Get("runId"))

		_ = json.NewEncoder(w).Encode(types.RunSnapshot{
			Run: types.Run{RunID: "r1", UserID: "u1", Status: types.RunRunning, StartedAt: &started},
			Applications: []types.ApplicationItem{
				{JobID: "j1", Title: "Engineer", Company: "Acme", Status: types.AppScoring},
			},
		})
	}))

	snap, err := client.GetStatus(context.Background(), "tok", "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", snap.Run.RunID)
	assert.Equal(t, types.RunRunning, snap.Run.Status)
	require.Len(t, snap.Applications, 1)
	assert.Equal(t, types.AppScoring, snap.Applications[0].Status)
}

func TestGetStatus_OmitsRunIDWhenEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("runId"))
		_ = json.NewEncoder(w).Encode(types.RunSnapshot{
			Run: types.Run{RunID: "latest", UserID: "u1", Status: types.RunDone},
		})
	}))

	snap, err := client.GetStatus(context.Background(), "tok", "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "latest", snap.Run.RunID)
}

func TestGetStatus_RejectsDuplicateJobIDs(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(types.RunSnapshot{
			Run: types.Run{RunID: "r1", UserID: "u1", Status: types.RunRunning},
			Applications: []types.ApplicationItem{
				{JobID: "j1", Title: "A", Company: "X", Status: types.AppPending},
				{JobID: "j1", Title: "A", Company: "X", Status: types.AppPending},
			},
		})
	}))

	_, err := client.GetStatus(context.Background(), "tok", "u1", "r1")
	var re *RequestError
	assert.ErrorAs(t, err, &re)
}

func TestGetStatus_Unauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.GetStatus(context.Background(), "tok", "u1", "r1")
	assert.True(t, IsAuthRequired(err))
}
