package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. PLANETDL_HTTP_HTTP3=true
const EnvPrefix = "PLANETDL"

// Config represents the entire application configuration
type Config struct {
	Sources  SourcesConfig  `mapstructure:"sources" yaml:"sources"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`
	Progress ProgressConfig `mapstructure:"progress" yaml:"progress"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// SourcesConfig contains mirror endpoints
type SourcesConfig struct {
	PlanetURL        string `mapstructure:"planet_url" yaml:"planet_url" validate:"required,url"`
	GeofabrikBaseURL string `mapstructure:"geofabrik_base_url" yaml:"geofabrik_base_url" validate:"required,url"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	UserAgent             string `mapstructure:"user_agent" yaml:"user_agent"`
	ConnectTimeout        string `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ResponseHeaderTimeout string `mapstructure:"response_header_timeout" yaml:"response_header_timeout"`
	IdleConnTimeout       string `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxBytesPerSecond     int64  `mapstructure:"max_bytes_per_second" yaml:"max_bytes_per_second" validate:"gte=0"`
	HTTP3                 bool   `mapstructure:"http3" yaml:"http3"`
	SkipTLSVerify         bool   `mapstructure:"skip_tls_verify" yaml:"skip_tls_verify"`
	BufferSizeKB          int    `mapstructure:"buffer_size_kb" yaml:"buffer_size_kb" validate:"gte=0,lte=16384"`
}

// TransferConfig contains transfer engine settings
type TransferConfig struct {
	ChunkSizeKB int    `mapstructure:"chunk_size_kb" yaml:"chunk_size_kb" validate:"gte=1,lte=8192"`
	Workers     int    `mapstructure:"workers" yaml:"workers" validate:"gte=0,lte=256"`
	Overwrite   string `mapstructure:"overwrite" yaml:"overwrite" validate:"oneof=truncate never"`
	SpaceCheck  bool   `mapstructure:"space_check" yaml:"space_check"`
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
}

// ProgressConfig contains progress reporting settings
type ProgressConfig struct {
	MinInterval string `mapstructure:"min_interval" yaml:"min_interval"`
}

// JournalConfig contains transfer journal settings
type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MetricsConfig contains metrics endpoint settings
type MetricsConfig struct {
	BindAddr string `mapstructure:"bind_addr" yaml:"bind_addr"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json console"`
}

// setDefaults registers every default on v
func setDefaults(v *viper.Viper) {
	v.SetDefault("sources.planet_url", "https://planet.openstreetmap.org/pbf/planet-latest.osm.pbf")
	v.SetDefault("sources.geofabrik_base_url", "https://download.geofabrik.de")
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.connect_timeout", "30s")
	v.SetDefault("http.response_header_timeout", "30s")
	v.SetDefault("http.idle_conn_timeout", "90s")
	v.SetDefault("http.max_bytes_per_second", 0)
	v.SetDefault("http.http3", false)
	v.SetDefault("http.skip_tls_verify", false)
	v.SetDefault("http.buffer_size_kb", 256)
	v.SetDefault("transfer.chunk_size_kb", 64)
	v.SetDefault("transfer.workers", 0)
	v.SetDefault("transfer.overwrite", "truncate")
	v.SetDefault("transfer.space_check", true)
	v.SetDefault("transfer.output_dir", "")
	v.SetDefault("progress.min_interval", "0s")
	v.SetDefault("journal.path", "")
	v.SetDefault("metrics.bind_addr", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Default returns the configuration with only defaults applied
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &config
}

// Load loads configuration from the given YAML file, .env files and the
// environment. An empty path looks for planetdl.yaml in the working
// directory and in $HOME/.config/planetdl; a missing file is not an error
// in that case.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("planetdl")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/planetdl")
		}
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	durations := map[string]string{
		"http.connect_timeout":         c.HTTP.ConnectTimeout,
		"http.response_header_timeout": c.HTTP.ResponseHeaderTimeout,
		"http.idle_conn_timeout":       c.HTTP.IdleConnTimeout,
		"progress.min_interval":        c.Progress.MinInterval,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	return nil
}

// GetConnectTimeout returns the dial timeout as time.Duration
func (c *HTTPConfig) GetConnectTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ConnectTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetResponseHeaderTimeout returns the response header timeout as time.Duration
func (c *HTTPConfig) GetResponseHeaderTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ResponseHeaderTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetIdleConnTimeout returns the idle connection timeout as time.Duration
func (c *HTTPConfig) GetIdleConnTimeout() time.Duration {
	d, _ := time.ParseDuration(c.IdleConnTimeout)
	if d == 0 {
		return 90 * time.Second
	}
	return d
}

// GetBufferSize returns the transport buffer size in bytes
func (c *HTTPConfig) GetBufferSize() int {
	if c.BufferSizeKB <= 0 {
		return 256 * 1024
	}
	return c.BufferSizeKB * 1024
}

// GetChunkSize returns the session chunk size in bytes
func (c *TransferConfig) GetChunkSize() int {
	if c.ChunkSizeKB <= 0 {
		return 64 * 1024
	}
	return c.ChunkSizeKB * 1024
}

// GetMinInterval returns the minimum delay between progress reports.
// Zero means every chunk is reported.
func (c *ProgressConfig) GetMinInterval() time.Duration {
	d, _ := time.ParseDuration(c.MinInterval)
	return d
}
