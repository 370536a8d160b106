package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Projection ProjectionConfig `mapstructure:"projection"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	RateLimit    int    `mapstructure:"rate_limit"`
	MaxSessions  int    `mapstructure:"max_sessions"`
	AllowOrigins string `mapstructure:"allow_origins"`
	OpenAPISpec  string `mapstructure:"openapi_spec"`
}

// UpstreamConfig points at the prediction model backend.
type UpstreamConfig struct {
	URL             string        `mapstructure:"url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
	FetchOnStartup  bool          `mapstructure:"fetch_on_startup"`
}

type ProjectionConfig struct {
	Margin            float64 `mapstructure:"margin"`
	NoDataPlaceholder bool    `mapstructure:"no_data_placeholder"`
}

// NATSConfig configures the event broker. An empty URL disables publishing.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// ValkeyConfig configures shared rate-limit storage. An empty Addr keeps
// limiter counters in process memory.
type ValkeyConfig struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: FLORASCOPE_UPSTREAM_URL → upstream.url
	v.SetEnvPrefix("FLORASCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.max_sessions", 10000)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("server.openapi_spec", "api/openapi.yaml")
	v.SetDefault("upstream.url", "http://127.0.0.1:5000/predict")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.breaker_failures", 5)
	v.SetDefault("upstream.breaker_timeout", 30*time.Second)
	v.SetDefault("upstream.fetch_on_startup", true)
	v.SetDefault("projection.margin", 0.1)
	v.SetDefault("projection.no_data_placeholder", true)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.prefix", "florascope:ratelimit:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, "server.rate_limit must be positive")
	}
	if c.Server.MaxSessions <= 0 {
		errs = append(errs, "server.max_sessions must be positive")
	}
	if c.Upstream.URL == "" {
		errs = append(errs, "upstream.url is required")
	} else if u, err := url.Parse(c.Upstream.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("upstream.url must be an absolute http(s) URL, got %q", c.Upstream.URL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, "upstream.timeout must be positive")
	}
	if c.Projection.Margin < 0 || c.Projection.Margin >= 0.5 {
		errs = append(errs, fmt.Sprintf("projection.margin must be in [0, 0.5), got %v", c.Projection.Margin))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Telemetry.Enabled && c.Telemetry.TempoAddr == "" {
		errs = append(errs, "telemetry.tempo_addr is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
