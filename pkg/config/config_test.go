package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "occ-mock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen: ":9100"
database:
  path: /tmp/mock.db
environment:
  name: dev
  remoteBaseUrl: https://dev.example.com
proxy:
  timeout: 5s
recording:
  include: ["/ccstoreui/**"]
toggles:
  syncAllApis: true
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Listen)
	assert.Equal(t, "/tmp/mock.db", cfg.Database.Path)
	assert.Equal(t, "dev", cfg.Environment.Name)
	assert.Equal(t, "http://localhost:9100", cfg.Environment.LocalBaseURL)
	assert.Equal(t, 5*time.Second, cfg.Proxy.Timeout)
	assert.Equal(t, int64(10*1024*1024), cfg.Proxy.MaxRecordBytes)
	assert.Equal(t, "recorded", cfg.Recording.SchemaPath)
	assert.Equal(t, []string{"/ccstoreui/**"}, cfg.Recording.Include)
	assert.True(t, cfg.Toggles.SyncAllApis)
	assert.False(t, cfg.Toggles.ProxyAllApis)
	assert.Equal(t, ".", cfg.Mock.Dir)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
environment:
  name: dev
  remoteBaseUrl: https://dev.example.com
`)
	t.Setenv("OCC_MOCK_LISTEN", ":9200")
	t.Setenv("OCC_MOCK_DB", "env.db")
	t.Setenv("OCC_MOCK_ENV", "stage")
	t.Setenv("OCC_MOCK_REMOTE_URL", "https://stage.example.com")
	t.Setenv("OCC_MOCK_DIR", "/mocks")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9200", cfg.Listen)
	assert.Equal(t, "env.db", cfg.Database.Path)
	assert.Equal(t, "stage", cfg.Environment.Name)
	assert.Equal(t, "https://stage.example.com", cfg.Environment.RemoteBaseURL)
	assert.Equal(t, "/mocks", cfg.Mock.Dir)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("OCC_MOCK_ENV", "dev")
	t.Setenv("OCC_MOCK_REMOTE_URL", "http://remote:8080")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "occ-mock.db", cfg.Database.Path)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "environment:\n  remoteBaseUrl: https://x.example.com\n"},
		{"missing remote", "environment:\n  name: dev\n"},
		{"relative remote", "environment:\n  name: dev\n  remoteBaseUrl: /relative\n"},
		{"bad level", "environment:\n  name: dev\n  remoteBaseUrl: https://x.example.com\nlog:\n  level: loud\n"},
		{"bad yaml", "environment: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestContainerRemote(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"http://localhost:8080", "http://host.docker.internal:8080"},
		{"http://127.0.0.1:8080/base", "http://host.docker.internal:8080/base"},
		{"https://0.0.0.0", "https://host.docker.internal"},
		{"https://store.example.com", "https://store.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContainerRemote(tt.remote), tt.remote)
	}
}
