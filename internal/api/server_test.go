// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/crowdaa-sync/internal/config"
	"github.com/common-repository/crowdaa-sync/internal/crowdaa"
	"github.com/common-repository/crowdaa-sync/internal/mapstore"
	"github.com/common-repository/crowdaa-sync/internal/permissions"
	"github.com/common-repository/crowdaa-sync/internal/syncer"
	"github.com/common-repository/crowdaa-sync/internal/testinfra"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

func newTestServer(t *testing.T, authToken string) (*Server, *testinfra.CrowdaaServer, *wordpress.Store) {
	t.Helper()

	remote := testinfra.NewCrowdaaServer(t)
	wp := wordpress.NewWithDB(testinfra.NewWordPressDB(t))

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	maps := mapstore.NewWithDB(db)

	cfg := &config.Config{
		Server: config.ServerConfig{
			ListenAddr:    ":0",
			SyncRateLimit: 100,
		},
		Crowdaa: config.CrowdaaConfig{
			BaseURL:   remote.URL(),
			APIKey:    "k",
			AuthToken: authToken,
			Timeout:   5 * time.Second,
		},
		WordPress: config.WordPressConfig{MediaDir: t.TempDir()},
		Sync: config.SyncConfig{
			PushEnabled:      true,
			PullEnabled:      true,
			CategoryMode:     config.FilterBlacklist,
			MaxDuration:      time.Minute,
			ArticleBatchSize: 100,
			MetaVersion:      "2",
		},
	}

	perms := permissions.Select("", wp)
	engine := syncer.New(wp, crowdaa.New(&cfg.Crowdaa), maps, perms, cfg)
	return NewServer(&cfg.Server, NewHandler(engine)), remote, wp
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, "token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestMetricsExposed(t *testing.T) {
	srv, _, _ := newTestServer(t, "token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestTriggerSyncUnconfigured(t *testing.T) {
	srv, _, _ := newTestServer(t, "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeServiceUnavailable, resp.Error.Code)
}

func TestTriggerSyncRuns(t *testing.T) {
	srv, remote, wp := newTestServer(t, "token")
	ctx := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil).Context()
	require.NoError(t, wp.SetOption(ctx, wordpress.OptionDefaultImageID, "1"))
	remote.AddCategory(crowdaa.Category{Name: "Promo"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "success", data["outcome"])

	// The run pulled the remote category into WordPress.
	cats, err := wp.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Promo", cats[0].Name)
}

func TestOpQueuePreviewsWithoutApplying(t *testing.T) {
	srv, remote, wp := newTestServer(t, "token")

	remote.AddBadge(crowdaa.Badge{Name: "Silver"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/opqueue", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	badges, ok := data["badges"].(map[string]any)
	require.True(t, ok)
	ops, ok := badges["only_api"].([]any)
	require.True(t, ok)
	assert.Len(t, ops, 1)

	// Nothing was applied.
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	cats, err := wp.Categories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
	assert.Len(t, remote.Badges, 1)
}

func TestLogsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, "token")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs?lines=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs?lines=zero", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp = decodeResponse(t, rec)
	assert.Equal(t, ErrCodeBadRequest, resp.Error.Code)
}
