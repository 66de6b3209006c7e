package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephenschott/affluence-cli/internal/model"
	"github.com/stephenschott/affluence-cli/internal/store"
)

func newServeStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(newServeStore(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Runs(t *testing.T) {
	st := newServeStore(t)
	run, err := st.CreateRun(context.Background(), model.RunParams{
		SampleCount: 10,
		Radii:       []float64{0.5},
		Tiers:       []int{1, 2},
		Precision:   6,
		Seed:        7,
	})
	require.NoError(t, err)

	router := newRouter(st)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID+"/points", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var points []model.StoredPoint
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &points))
	assert.Empty(t, points)
}

func TestRunServer_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := newRouter(newServeStore(t))

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, handler, "127.0.0.1:0") }()

	// Let the server reach Serve before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "shutdown must not surface ErrServerClosed")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}

func TestRouter_RunNotFound(t *testing.T) {
	router := newRouter(newServeStore(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/no-such-run", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/no-such-run/points", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
