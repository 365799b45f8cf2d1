package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/objectedge/occ-tools-sub002/pkg/config"
	"github.com/objectedge/occ-tools-sub002/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, remote string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "cli.db")
	cfg.Environment.Name = "dev"
	cfg.Environment.RemoteBaseURL = remote
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewHandler(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote " + r.URL.Path))
	}))
	defer upstream.Close()

	cfg := testConfig(t, upstream.URL)
	cfg.Toggles.SyncAllApis = true

	ctx := context.Background()
	s, err := store.Open(ctx, cfg.Database.Path)
	require.NoError(t, err)
	defer s.Close()

	h, err := newHandler(ctx, cfg, s)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proxy/ccstoreui/v1/products", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "remote /ccstoreui/v1/products", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/toggles", nil))
	assert.JSONEq(t, `{"proxyAllApis":false,"syncingRequests":true}`, rec.Body.String())

	envs, err := s.ListEnvironments(ctx)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, cfg.Environment.Name, envs[0].Name)

	descriptors, err := s.ListDescriptors(ctx)
	require.NoError(t, err)
	assert.Len(t, descriptors, 1, "sync mode records the forwarded request")
}

func TestNewHandlerRejectsBadFilter(t *testing.T) {
	cfg := testConfig(t, "http://example.com")
	cfg.Recording.Exclude = []string{"/api/[broken"}

	ctx := context.Background()
	s, err := store.Open(ctx, cfg.Database.Path)
	require.NoError(t, err)
	defer s.Close()

	_, err = newHandler(ctx, cfg, s)
	assert.Error(t, err)
}
