package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/sqlscript"
	"github.com/rossigee/irp-integration/internal/workflow"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 200*time.Second, cfg.RequestTimeout)
	assert.Equal(t, DefaultMaxAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, DefaultBackoffFactor, cfg.Retry.BackoffFactor)
	assert.Equal(t, workflow.DefaultInterval, cfg.Poll.Interval)
	assert.Equal(t, workflow.DefaultBatchInterval, cfg.Poll.BatchInterval)
	assert.Equal(t, workflow.DefaultTimeout, cfg.Poll.Timeout)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irp.yaml")
	content := `
api_key: file-key
resource_group_id: rg-1
poll:
  interval: 5s
  batch_interval: 1m
sql:
  scripts_dir: /srv/sql
  connections:
    DATABRIDGE:
      driver: sqlserver
      dsn: sqlserver://sa:pw@db:1433?database=DataBridge
server:
  auth:
    tokens_file: /etc/irp/tokens
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("IRP_API_KEY", "env-key")
	t.Setenv("IRP_RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("IRP_POLL_TIMEOUT", "2h")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "rg-1", cfg.ResourceGroupID)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, time.Minute, cfg.Poll.BatchInterval)
	assert.Equal(t, 2*time.Hour, cfg.Poll.Timeout)
	assert.Equal(t, "/srv/sql", cfg.SQL.ScriptsDir)
	assert.Equal(t, "/etc/irp/tokens", cfg.Server.Auth.TokensFile)
	assert.Equal(t, sqlscript.Connection{Driver: "sqlserver", DSN: "sqlserver://sa:pw@db:1433?database=DataBridge"}, cfg.SQL.Connections["DATABRIDGE"])

	single, batch := cfg.PollDefaults()
	assert.Equal(t, workflow.Options{Interval: 5 * time.Second, Timeout: 2 * time.Hour}, single)
	assert.Equal(t, workflow.Options{Interval: time.Minute, Timeout: 2 * time.Hour}, batch)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, []time.Duration{0, time.Second}, policy.Delays)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, irperr.ErrFile))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			BaseURL: DefaultBaseURL,
			APIKey:  "key",
			Retry:   RetryConfig{MaxAttempts: 1},
			Poll:    PollConfig{Interval: time.Second, BatchInterval: time.Second, Timeout: time.Minute},
			Log:     LogConfig{Level: "debug", Format: "json"},
		}
	}

	tests := []struct {
		name     string
		mutate   func(c *Config)
		contains []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:     "missing credentials reported together",
			mutate:   func(c *Config) { c.APIKey = ""; c.BaseURL = "" },
			contains: []string{"api_key is required", "base_url is required"},
		},
		{
			name:     "zero poll interval",
			mutate:   func(c *Config) { c.Poll.Interval = 0 },
			contains: []string{"poll.interval must be positive"},
		},
		{
			name:     "bad log settings",
			mutate:   func(c *Config) { c.Log.Level = "loud"; c.Log.Format = "xml" },
			contains: []string{"log.level", "log.format must be text or json"},
		},
		{
			name:     "no attempts",
			mutate:   func(c *Config) { c.Retry.MaxAttempts = 0 },
			contains: []string{"retry.max_attempts must be at least 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.contains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, irperr.ErrValidation))
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	logger := logrus.New()
	cfg := &Config{Log: LogConfig{Level: "warn", Format: "json"}}
	cfg.ConfigureLogger(logger)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
