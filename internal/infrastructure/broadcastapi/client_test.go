package broadcastapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, 2*time.Second, zaptest.NewLogger(t).Sugar())
	c.retry.InitialDelay = time.Millisecond
	c.retry.MaxDelay = 5 * time.Millisecond
	c.retry.Jitter = false
	return c
}

func TestCreateBroadcast(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/broadcasts", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "launch", body["title"])

		json.NewEncoder(w).Encode(map[string]string{"id": "bc-7"})
	}))

	id, err := c.CreateBroadcast(context.Background(), "launch")
	require.NoError(t, err)
	assert.Equal(t, "bc-7", string(id))
}

func TestLifecyclePaths(t *testing.T) {
	var paths []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	ctx := context.Background()
	require.NoError(t, c.StartBroadcast(ctx, "bc-7"))
	require.NoError(t, c.TransitionToLive(ctx, "bc-7"))
	require.NoError(t, c.EndBroadcast(ctx, "bc-7"))

	assert.Equal(t, []string{
		"/v1/broadcasts/bc-7/start",
		"/v1/broadcasts/bc-7/live",
		"/v1/broadcasts/bc-7/end",
	}, paths)
}

func TestRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.StartBroadcast(context.Background(), "bc-7"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	err := c.StartBroadcast(context.Background(), "bc-7")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmptyIDRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))

	_, err := c.CreateBroadcast(context.Background(), "launch")
	assert.Error(t, err)
}
