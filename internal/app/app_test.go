package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ReputationGo/internal/config"
	"github.com/utafrali/ReputationGo/pkg/logger"
	"github.com/utafrali/ReputationGo/pkg/middleware"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:     "test",
		LogLevel:        "error",
		ServiceName:     "reputation-test",
		HTTPPort:        8080,
		StorageBackend:  config.StorageMemory,
		SyncLockTTLSecs: 60,
		KafkaTopic:      "reputation",
		Provider:        config.ProviderMock,
		SyncSchedule:    "@every 1h",
		SyncEnabled:     false,
	}
}

func startApp(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(a.closeResources)

	srv := httptest.NewServer(a.httpServer.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserHeader, "owner")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestNewApp_InvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.SyncEnabled = true
	cfg.SyncSchedule = "every so often"

	_, err := NewApp(cfg, logger.Discard())
	require.Error(t, err)
}

func TestNewApp_UnreachableRedis(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	_, err := NewApp(cfg, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestReputationFlow(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	srv := startApp(t, cfg)
	api := srv.URL + "/api/v1"

	status, body := call(t, http.MethodGet, srv.URL+"/health/ready", nil)
	require.Equal(t, http.StatusOK, status)
	checks, _ := body["checks"].(map[string]any)
	assert.Contains(t, checks, "redis")

	status, body = call(t, http.MethodPost, api+"/sources", map[string]any{
		"name": "Main Street", "platform": "google", "url": "https://maps.example.com/main-street",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = call(t, http.MethodPost, api+"/sources/sync-due", nil)
	require.Equal(t, http.StatusOK, status, body)
	report := body["data"].(map[string]any)
	assert.EqualValues(t, 1, report["synced"])
	assert.Empty(t, mr.Keys(), "sync lock released")

	status, body = call(t, http.MethodGet, api+"/reviews?per_page=5", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 12, body["total_count"])
	reviews := body["data"].([]any)
	require.Len(t, reviews, 5)
	reviewID := reviews[0].(map[string]any)["id"].(string)

	status, body = call(t, http.MethodPost, api+"/reviews/"+reviewID+"/responses", map[string]any{
		"content": "Thanks for stopping by!", "status": "published",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = call(t, http.MethodGet, api+"/metrics?period=monthly&end="+time.Now().UTC().Format(time.RFC3339), nil)
	require.Equal(t, http.StatusOK, status, body)
	metrics := body["data"].(map[string]any)
	assert.EqualValues(t, "monthly", metrics["period"])
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPPort = 0
	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	a.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
