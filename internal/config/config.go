// Package config loads irpctl settings from an optional config file and
// IRP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/rossigee/irp-integration/internal/auth"
	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/objectstore"
	"github.com/rossigee/irp-integration/internal/retry"
	"github.com/rossigee/irp-integration/internal/sqlscript"
	"github.com/rossigee/irp-integration/internal/workflow"
)

// EnvPrefix prefixes every environment override, e.g. IRP_RETRY_MAX_ATTEMPTS.
const EnvPrefix = "IRP"

// Defaults
const (
	DefaultBaseURL       = "https://api-euw1.rms-ppe.com"
	DefaultMaxAttempts   = 6
	DefaultBackoffFactor = 500 * time.Millisecond
	DefaultJournalPath   = "irp-journal.db"
	DefaultServerAddr    = ":8080"
)

// Config aggregates configuration for irpctl.
type Config struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	ResourceGroupID string        `mapstructure:"resource_group_id"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`

	Retry   RetryConfig   `mapstructure:"retry"`
	Poll    PollConfig    `mapstructure:"poll"`
	Storage StorageConfig `mapstructure:"storage"`
	Journal JournalConfig `mapstructure:"journal"`
	SQL     SQLConfig     `mapstructure:"sql"`
	Files   FilesConfig   `mapstructure:"files"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
}

type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffFactor time.Duration `mapstructure:"backoff_factor"`
}

type PollConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	BatchInterval time.Duration `mapstructure:"batch_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Backend  string `mapstructure:"backend"`
	Endpoint string `mapstructure:"endpoint"`
}

type JournalConfig struct {
	// Path of the SQLite journal. Empty disables journalling.
	Path string `mapstructure:"path"`
}

type SQLConfig struct {
	ScriptsDir  string                          `mapstructure:"scripts_dir"`
	Connections map[string]sqlscript.Connection `mapstructure:"connections"`
}

type FilesConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	MappingDir string `mapstructure:"mapping_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr     string      `mapstructure:"addr"`
	CertFile string      `mapstructure:"cert_file"`
	KeyFile  string      `mapstructure:"key_file"`
	Auth     auth.Config `mapstructure:"auth"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("api_key", "")
	v.SetDefault("resource_group_id", "")
	v.SetDefault("request_timeout", "200s")
	v.SetDefault("retry.max_attempts", DefaultMaxAttempts)
	v.SetDefault("retry.backoff_factor", DefaultBackoffFactor.String())
	v.SetDefault("poll.interval", workflow.DefaultInterval.String())
	v.SetDefault("poll.batch_interval", workflow.DefaultBatchInterval.String())
	v.SetDefault("poll.timeout", workflow.DefaultTimeout.String())
	v.SetDefault("storage.backend", objectstore.BackendMinio)
	v.SetDefault("storage.endpoint", objectstore.DefaultEndpoint)
	v.SetDefault("journal.path", DefaultJournalPath)
	v.SetDefault("sql.scripts_dir", "sql")
	v.SetDefault("files.data_dir", "files/data")
	v.SetDefault("files.mapping_dir", "files/mapping")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.cert_file", "")
	v.SetDefault("server.key_file", "")
	v.SetDefault("server.auth.client_ca_file", "")
	v.SetDefault("server.auth.tokens_file", "")
}

// Load reads configuration from path, or from ./config.yaml when path is
// empty and the file exists. Environment variables use the prefix "IRP" and
// the dot character in keys is replaced by an underscore. For example,
// "poll.batch_interval" becomes "IRP_POLL_BATCH_INTERVAL".
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, irperr.Wrap(irperr.KindFile, err, "failed to read config")
		}
	}

	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, irperr.Wrap(irperr.KindValidation, err, "failed to load configuration")
	}

	// viper lower-cases keys; connection names are matched upper-case
	conns := make(map[string]sqlscript.Connection, len(cfg.SQL.Connections))
	for name, conn := range cfg.SQL.Connections {
		conns[strings.ToUpper(name)] = conn
	}
	cfg.SQL.Connections = conns
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.APIKey == "" {
		errs = multierror.Append(errs, errors.New("api_key is required"))
	}
	if c.BaseURL == "" {
		errs = multierror.Append(errs, errors.New("base_url is required"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = multierror.Append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	for name, d := range map[string]time.Duration{
		"poll.interval":       c.Poll.Interval,
		"poll.batch_interval": c.Poll.BatchInterval,
		"poll.timeout":        c.Poll.Timeout,
	} {
		if d <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = multierror.Append(errs, fmt.Errorf("log.format must be text or json, got '%s'", c.Log.Format))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return irperr.Wrap(irperr.KindValidation, err, "invalid configuration")
	}
	return nil
}

// RetryPolicy converts the retry settings to a transport retry policy.
func (c *Config) RetryPolicy() retry.Config {
	return retry.Exponential(c.Retry.MaxAttempts, c.Retry.BackoffFactor)
}

// PollDefaults returns the single-handle and batch poll bounds.
func (c *Config) PollDefaults() (single, batch workflow.Options) {
	single = workflow.Options{Interval: c.Poll.Interval, Timeout: c.Poll.Timeout}
	batch = workflow.Options{Interval: c.Poll.BatchInterval, Timeout: c.Poll.Timeout}
	return single, batch
}

// ConfigureLogger applies log.level and log.format to the standard logger.
func (c *Config) ConfigureLogger(logger *logrus.Logger) {
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
