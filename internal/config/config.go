package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type FeedConfig struct {
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`               // https://earthquake.usgs.gov/fdsnws/event/1/query
	Limit          int           `yaml:"limit" env:"LIMIT"`                     // result-count limit, default 10
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"` // dial + TLS bound
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`       // response header bound
	UserAgent      string        `yaml:"user_agent" env:"USER_AGENT"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	Connectivity   string        `yaml:"connectivity" env:"CONNECTIVITY"` // interfaces | none
}

type SettingsConfig struct {
	Path         string `yaml:"path" env:"PATH"` // persisted preferences file
	MinMagnitude string `yaml:"min_magnitude" env:"MIN_MAGNITUDE"`
	OrderBy      string `yaml:"order_by" env:"ORDER_BY"`
}

type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address" env:"LISTEN_ADDRESS"`
	ReadTimeout   time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	CORSOrigins   []string      `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

// TracingConfig enables OTLP/HTTP span export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"` // e.g. http://localhost:4318
	Disabled    bool   `yaml:"disabled" env:"DISABLED"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

type Config struct {
	Feed     FeedConfig     `yaml:"feed" envPrefix:"FEED_"`
	Settings SettingsConfig `yaml:"settings" envPrefix:"SETTINGS_"`
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Tracing  TracingConfig  `yaml:"tracing" envPrefix:"TRACING_"`
	Interval time.Duration  `yaml:"interval" env:"INTERVAL"` // periodic refresh; 0 disables
}

const envPrefix = "QUAKE_"

// Load reads the YAML file at path (an empty path skips the file), applies
// QUAKE_* environment overrides and fills in defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	c.applyDefaults()
	if c.Feed.Limit < 1 {
		return nil, fmt.Errorf("feed.limit must be positive, got %d", c.Feed.Limit)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = "https://earthquake.usgs.gov/fdsnws/event/1/query"
	}
	if c.Feed.Limit == 0 {
		c.Feed.Limit = 10
	}
	if c.Feed.ConnectTimeout == 0 {
		c.Feed.ConnectTimeout = 10 * time.Second
	}
	if c.Feed.ReadTimeout == 0 {
		c.Feed.ReadTimeout = 10 * time.Second
	}
	if c.Feed.Connectivity == "" {
		c.Feed.Connectivity = "interfaces"
	}
	if c.Settings.MinMagnitude == "" {
		c.Settings.MinMagnitude = "6"
	}
	if c.Settings.OrderBy == "" {
		c.Settings.OrderBy = "magnitude"
	}
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":9110"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "quakereport"
	}
}
