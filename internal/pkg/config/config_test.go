package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geopanel/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("geopanel-test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "", cfg.Server.BasePath)
	assert.Equal(t, 120, cfg.Server.RateLimit)
	assert.Equal(t, "fs", cfg.Views.Source)
	assert.Equal(t, 15*time.Second, cfg.Views.LoadTimeout)
	assert.Equal(t, 3, cfg.Views.RetryAttempts)
	assert.False(t, cfg.Store.InitialAbsent)
	assert.Equal(t, "geopanel-test", cfg.Telemetry.ServiceName)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GEOPANEL_SERVER_PORT", "9090")
	t.Setenv("GEOPANEL_SERVER_BASE_PATH", "dashboard/")
	t.Setenv("GEOPANEL_VIEWS_SOURCE", "http")
	t.Setenv("GEOPANEL_VIEWS_BASE_URL", "https://cdn.example.com/views")
	t.Setenv("GEOPANEL_VIEWS_LOAD_TIMEOUT", "2s")
	t.Setenv("GEOPANEL_STORE_INITIAL_ABSENT", "true")
	t.Setenv("GEOPANEL_NATS_ENABLED", "false")

	cfg, err := config.Load("geopanel-test")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/dashboard", cfg.Server.BasePath)
	assert.Equal(t, "http", cfg.Views.Source)
	assert.Equal(t, "https://cdn.example.com/views", cfg.Views.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Views.LoadTimeout)
	assert.True(t, cfg.Store.InitialAbsent)
	assert.False(t, cfg.NATS.Enabled)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("GEOPANEL_SERVER_PORT", "70000")

	_, err := config.Load("geopanel-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be 1-65535")
}

func TestLoad_HTTPSourceRequiresBaseURL(t *testing.T) {
	t.Setenv("GEOPANEL_VIEWS_SOURCE", "http")

	_, err := config.Load("geopanel-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "views.base_url is required")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{
		Views: config.ViewsConfig{Source: "ftp"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "server.rate_limit")
	assert.Contains(t, err.Error(), "views.source must be fs or http")
	assert.Contains(t, err.Error(), "views.load_timeout")
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"/":          "",
		"app":        "/app",
		"/app/":      "/app",
		" /a/b// ":   "/a/b",
		"/dashboard": "/dashboard",
	}
	for in, want := range cases {
		assert.Equal(t, want, config.NormalizeBasePath(in), "base %q", in)
	}
}
