package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5, cfg.Recommend.TopK)
	assert.Equal(t, "Sustainability", cfg.Recommend.SortBy)
	assert.Equal(t, 12, cfg.Catalog.PageSize)
	assert.Equal(t, 3, cfg.Quota.Limit)
	assert.Equal(t, 20*time.Minute, cfg.Quota.Window)
	assert.Equal(t, 4*time.Second, cfg.UI.ToastDuration)
	assert.Equal(t, 2*time.Second, cfg.UI.SplashDuration)
	require.NoError(t, cfg.Validate())
}

func TestResolveBaseURL(t *testing.T) {
	cfg := Default()

	tests := []struct {
		host string
		want string
	}{
		{"localhost", "http://localhost:5000"},
		{"localhost:8080", "http://localhost:5000"},
		{"127.0.0.1", "http://localhost:5000"},
		{"", "http://localhost:5000"},
		{"ecopackai-web.vercel.app", cfg.API.RemoteURL},
		{"ecopackai-web.vercel.app:443", cfg.API.RemoteURL},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ResolveBaseURL(tt.host))
		})
	}

	cfg.API.BaseURL = "http://upstream.internal:9000/"
	assert.Equal(t, "http://upstream.internal:9000", cfg.ResolveBaseURL("example.com"))
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ecopack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  page_size: 24\nquota:\n  window: 30m\n"), 0o644))
	t.Setenv("ECOPACK_RECOMMEND_SORT_BY", "Cost")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Catalog.PageSize)
	assert.Equal(t, 30, cfg.Quota.WindowMinutes())
	assert.Equal(t, "Cost", cfg.Recommend.SortBy)
	assert.Equal(t, 5, cfg.Recommend.TopK)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  page_size: 0\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "catalog.page_size")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
