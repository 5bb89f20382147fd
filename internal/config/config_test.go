package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 5.0, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 300, cfg.Cache.TTLSecs)
	assert.Equal(t, 30, cfg.Visibility.ChartDays)
	assert.Equal(t, 10, cfg.Visibility.TopN)
	assert.Equal(t, "UTC", cfg.Visibility.ChartTimezone)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 168, cfg.Monitoring.StaleAfterHours)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: visibility.db
log:
  level: debug
  format: console
server:
  port: 9090
cache:
  backend: redis
  redis_addr: cache:6379
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "visibility.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Visibility.ChartDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("MAXVIS_STORE_DRIVER", "postgres")
	t.Setenv("MAXVIS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MAXVIS_SERVER_PORT=3000\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("MAXVIS_SERVER_PORT") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unterminated"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	cfg.Cache.Backend = "memory"
	cfg.Visibility.ChartDays = 30
	cfg.Visibility.TopN = 10
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		mode    string
		wantErr string
	}{
		{name: "defaults_serve", mutate: func(*Config) {}, mode: "serve"},
		{name: "defaults_store", mutate: func(*Config) {}, mode: "store"},
		{
			name:    "postgres_without_url",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			mode:    "store",
			wantErr: "store.database_url is required",
		},
		{
			name:   "postgres_with_url",
			mutate: func(c *Config) { c.Store.Driver = "postgres"; c.Store.DatabaseURL = "postgres://localhost/vis" },
			mode:   "store",
		},
		{
			name:    "unknown_driver",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			mode:    "store",
			wantErr: "store.driver must be postgres or sqlite",
		},
		{
			name:    "bad_port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			mode:    "serve",
			wantErr: "server.port",
		},
		{
			name:   "bad_port_ignored_outside_serve",
			mutate: func(c *Config) { c.Server.Port = 0 },
			mode:   "store",
		},
		{
			name:    "unknown_cache_backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			mode:    "serve",
			wantErr: "cache.backend",
		},
		{
			name:    "redis_without_addr",
			mutate:  func(c *Config) { c.Cache.Backend = "redis" },
			mode:    "serve",
			wantErr: "cache.redis_addr is required",
		},
		{
			name:    "monitoring_without_workspaces",
			mutate:  func(c *Config) { c.Monitoring.Enabled = true },
			mode:    "serve",
			wantErr: "monitoring.workspaces is required",
		},
		{
			name: "monitoring_bad_threshold",
			mutate: func(c *Config) {
				c.Monitoring.Enabled = true
				c.Monitoring.Workspaces = []string{"ws-1"}
				c.Monitoring.FailureRateThreshold = 1.5
			},
			mode:    "serve",
			wantErr: "monitoring.failure_rate_threshold",
		},
		{
			name:    "zero_chart_days",
			mutate:  func(c *Config) { c.Visibility.ChartDays = 0 },
			mode:    "store",
			wantErr: "visibility.chart_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
