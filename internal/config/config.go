// Package config loads non-secret server configuration and Zulip
// credentials, in that priority: CLI flags > environment variables >
// credentials file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/titanous/json5"
)

// Config is the root non-secret server configuration.
type Config struct {
	Store      StoreConfig      `json:"store"`
	RestClient RestClientConfig `json:"rest_client"`
	Listener   ListenerConfig   `json:"listener"`
	AFK        AFKDefaults      `json:"afk"`
	Log        LogConfig        `json:"log"`
}

// StoreConfig configures the embedded database.
type StoreConfig struct {
	Path string `json:"path,omitempty"` // default "./zulip-mcp.db"
}

// RestClientConfig configures the Zulip REST client.
type RestClientConfig struct {
	RequestTimeout      time.Duration `json:"-"`
	RequestTimeoutStr   string        `json:"request_timeout,omitempty"`   // Go duration string
	MaxRetries          int           `json:"max_retries,omitempty"`       // default 3
	RateLimitPerMin     int           `json:"rate_limit_per_min,omitempty"` // default 100 / 60s
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host,omitempty"`
	MaxConns            int           `json:"max_conns,omitempty"`
}

// ListenerConfig configures the background event listener.
type ListenerConfig struct {
	ControllerTickStr    string        `json:"controller_tick,omitempty"` // default "5s"
	ControllerTick       time.Duration `json:"-"`
	CorrelationWindowStr string        `json:"correlation_window,omitempty"` // default "10m"
	CorrelationWindow    time.Duration `json:"-"`
}

// AFKDefaults configures the AFK auto-return ticker.
type AFKDefaults struct {
	AutoReturnTickStr string        `json:"auto_return_tick,omitempty"` // default "30s"
	AutoReturnTick    time.Duration `json:"-"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `json:"level,omitempty"` // debug|info|warn|error
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "./zulip-mcp.db"},
		RestClient: RestClientConfig{
			RequestTimeoutStr:   "30s",
			MaxRetries:          3,
			RateLimitPerMin:     100,
			MaxIdleConnsPerHost: 10,
			MaxConns:            20,
		},
		Listener: ListenerConfig{
			ControllerTickStr:    "5s",
			CorrelationWindowStr: "10m",
		},
		AFK: AFKDefaults{AutoReturnTickStr: "30s"},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a JSON5 config file (comments/trailing commas allowed) and
// overlays environment variable overrides. A missing file is not an
// error — defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.resolveDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ZULIP_MCP_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("ZULIP_MCP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) resolveDurations() error {
	parse := func(s string, dst *time.Duration, field string) error {
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration for %s: %w", field, err)
		}
		*dst = d
		return nil
	}
	if err := parse(c.RestClient.RequestTimeoutStr, &c.RestClient.RequestTimeout, "rest_client.request_timeout"); err != nil {
		return err
	}
	if err := parse(c.Listener.ControllerTickStr, &c.Listener.ControllerTick, "listener.controller_tick"); err != nil {
		return err
	}
	if err := parse(c.Listener.CorrelationWindowStr, &c.Listener.CorrelationWindow, "listener.correlation_window"); err != nil {
		return err
	}
	if err := parse(c.AFK.AutoReturnTickStr, &c.AFK.AutoReturnTick, "afk.auto_return_tick"); err != nil {
		return err
	}
	return nil
}
