// Package config loads and validates iconshelf configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. ICONSHELF_SERVER_PORT.
const EnvPrefix = "ICONSHELF"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Index    IndexConfig    `mapstructure:"index"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Export   ExportConfig   `mapstructure:"export"`
	Status   StatusConfig   `mapstructure:"status"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Progress ProgressConfig `mapstructure:"progress"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	ShutdownGraceSeconds  int `mapstructure:"shutdown_grace_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// IndexConfig locates the icon tree and the generated artifacts.
type IndexConfig struct {
	SourceDir      string `mapstructure:"source_dir"`
	IconsFile      string `mapstructure:"icons_file"`
	CategoriesFile string `mapstructure:"categories_file"`
	Extension      string `mapstructure:"extension"`
}

// AssetsConfig controls where icon bytes are fetched from. An empty BaseURL
// reads straight from RootDir.
type AssetsConfig struct {
	RootDir        string  `mapstructure:"root_dir"`
	BaseURL        string  `mapstructure:"base_url"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RPS            float64 `mapstructure:"rps"`
	Burst          int     `mapstructure:"burst"`
}

// ExportConfig tunes both export pipelines and the job pool.
type ExportConfig struct {
	BatchSize    int    `mapstructure:"batch_size"`
	BatchPauseMs int    `mapstructure:"batch_pause_ms"`
	PNGSize      int    `mapstructure:"png_size"`
	FileName     string `mapstructure:"file_name"`
	Workers      int    `mapstructure:"workers"`
	QueueDepth   int    `mapstructure:"queue_depth"`
}

// StatusConfig sets how long each kind of status message stays visible.
type StatusConfig struct {
	SuccessMs  int `mapstructure:"success_ms"`
	FailureMs  int `mapstructure:"failure_ms"`
	ProgressMs int `mapstructure:"progress_ms"`
	CompleteMs int `mapstructure:"complete_ms"`
}

// StorageConfig selects the artifact store.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// RefreshConfig drives the icon set updater.
type RefreshConfig struct {
	DownloadURL    string `mapstructure:"download_url"`
	WorkDir        string `mapstructure:"work_dir"`
	TargetDir      string `mapstructure:"target_dir"`
	MinIconCount   int    `mapstructure:"min_icon_count"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ProgressConfig sizes the export progress hub.
type ProgressConfig struct {
	BufferSize       int `mapstructure:"buffer_size"`
	MaxBatchEvents   int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs   int `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutMs    int `mapstructure:"sink_timeout_ms"`
	ShutdownTimeoutS int `mapstructure:"shutdown_timeout_seconds"`
}

// JobsConfig selects where export job state lives.
type JobsConfig struct {
	Backend            string `mapstructure:"backend"`
	DSN                string `mapstructure:"dsn"`
	Table              string `mapstructure:"table"`
	MaxConns           int32  `mapstructure:"max_conns"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// NotifyConfig enables Pub/Sub announcements of finished exports.
type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment. An empty path searches the
// working directory, /etc/iconshelf and $HOME/.iconshelf for config.yaml and
// falls back to defaults when none exists.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/iconshelf/")
		v.AddConfigPath("$HOME/.iconshelf")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_grace_seconds", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("index.source_dir", "public/icons")
	v.SetDefault("index.icons_file", "public/icons.json")
	v.SetDefault("index.categories_file", "public/categories.json")
	v.SetDefault("index.extension", ".svg")
	v.SetDefault("assets.root_dir", "public/icons")
	v.SetDefault("assets.base_url", "")
	v.SetDefault("assets.user_agent", "iconshelf/0.1")
	v.SetDefault("assets.timeout_seconds", 15)
	v.SetDefault("assets.rps", 0)
	v.SetDefault("assets.burst", 50)
	v.SetDefault("export.batch_size", 50)
	v.SetDefault("export.batch_pause_ms", 10)
	v.SetDefault("export.png_size", 150)
	v.SetDefault("export.file_name", "azure-icons-drawio.xml")
	v.SetDefault("export.workers", 2)
	v.SetDefault("export.queue_depth", 16)
	v.SetDefault("status.success_ms", 3000)
	v.SetDefault("status.failure_ms", 2000)
	v.SetDefault("status.progress_ms", 3000)
	v.SetDefault("status.complete_ms", 4000)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.base_dir", "data/exports")
	v.SetDefault("storage.prefix", "downloads")
	v.SetDefault("refresh.download_url",
		"https://arch-center.azureedge.net/icons/Azure_Public_Service_Icons_V21.zip")
	v.SetDefault("refresh.work_dir", "")
	v.SetDefault("refresh.target_dir", "public/icons")
	v.SetDefault("refresh.min_icon_count", 100)
	v.SetDefault("refresh.timeout_seconds", 300)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 64)
	v.SetDefault("progress.max_batch_wait_ms", 250)
	v.SetDefault("progress.sink_timeout_ms", 2000)
	v.SetDefault("progress.shutdown_timeout_seconds", 5)
	v.SetDefault("jobs.backend", "memory")
	v.SetDefault("jobs.table", "export_jobs")
	v.SetDefault("jobs.max_conns", 4)
	v.SetDefault("jobs.min_conns", 0)
	v.SetDefault("jobs.max_conn_lifetime_minutes", 30)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.topic", "iconshelf-exports")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if !strings.HasPrefix(c.Index.Extension, ".") {
		return fmt.Errorf("index.extension must start with a dot")
	}
	if c.Index.IconsFile == "" || c.Index.CategoriesFile == "" {
		return fmt.Errorf("index.icons_file and index.categories_file are required")
	}
	if c.Assets.BaseURL == "" && c.Assets.RootDir == "" {
		return fmt.Errorf("one of assets.base_url or assets.root_dir is required")
	}
	if c.Assets.TimeoutSeconds <= 0 {
		return fmt.Errorf("assets.timeout_seconds must be > 0")
	}
	if c.Export.BatchSize <= 0 {
		return fmt.Errorf("export.batch_size must be > 0")
	}
	if c.Export.BatchPauseMs < 0 {
		return fmt.Errorf("export.batch_pause_ms must be >= 0")
	}
	if c.Export.PNGSize <= 0 {
		return fmt.Errorf("export.png_size must be > 0")
	}
	if c.Export.Workers <= 0 {
		return fmt.Errorf("export.workers must be > 0")
	}
	if c.Export.QueueDepth < 0 {
		return fmt.Errorf("export.queue_depth must be >= 0")
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "memory", "":
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.Refresh.MinIconCount < 0 {
		return fmt.Errorf("refresh.min_icon_count must be >= 0")
	}
	switch strings.ToLower(c.Jobs.Backend) {
	case "memory", "":
	case "postgres":
		if c.Jobs.DSN == "" {
			return fmt.Errorf("jobs.dsn is required for the postgres backend")
		}
		if c.Jobs.MaxConns < 0 || c.Jobs.MinConns < 0 || c.Jobs.MinConns > c.Jobs.MaxConns {
			return fmt.Errorf("jobs.min_conns must be between 0 and jobs.max_conns")
		}
	default:
		return fmt.Errorf("jobs.backend %q is not supported", c.Jobs.Backend)
	}
	if c.Notify.Enabled && (c.Notify.ProjectID == "" || c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic are required when notify is enabled")
	}
	return nil
}

// BatchPause converts the configured pause into a duration.
func (c ExportConfig) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseMs) * time.Millisecond
}

// AssetTimeout converts the asset fetch timeout into a duration.
func (c AssetsConfig) AssetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds a single API request.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ShutdownGrace bounds graceful HTTP shutdown.
func (c ServerConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

// Timeout bounds the whole refresh run; zero means no limit.
func (c RefreshConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// TTLs returns the status visibility windows in the order success, failure,
// progress, complete.
func (c StatusConfig) TTLs() (success, failure, progress, complete time.Duration) {
	return ms(c.SuccessMs), ms(c.FailureMs), ms(c.ProgressMs), ms(c.CompleteMs)
}

// MaxConnLifetime converts the pool connection lifetime into a duration.
func (c JobsConfig) MaxConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeMin) * time.Minute
}

// BatchWait converts the hub flush interval into a duration.
func (c ProgressConfig) BatchWait() time.Duration {
	return ms(c.MaxBatchWaitMs)
}

// SinkTimeout bounds a single sink write.
func (c ProgressConfig) SinkTimeout() time.Duration {
	return ms(c.SinkTimeoutMs)
}

// ShutdownTimeout bounds hub draining at exit.
func (c ProgressConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}
