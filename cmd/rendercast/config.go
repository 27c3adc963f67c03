package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the controller configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Store     StoreConfig     `mapstructure:"store"`
	WebOS     WebOSConfig     `mapstructure:"webos"`

	// MetricsAddr serves /metrics when set.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// ProtocolLog appends a CBOR trace of every session message.
	ProtocolLog string `mapstructure:"protocol_log"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DiscoveryConfig selects providers and scan behavior.
type DiscoveryConfig struct {
	SSDP bool `mapstructure:"ssdp"`

	// MDNSService is the DNS-SD type TVs announce the control socket
	// under. Empty disables mDNS browsing.
	MDNSService    string        `mapstructure:"mdns_service"`
	Interface      string        `mapstructure:"interface"`
	RescanInterval time.Duration `mapstructure:"rescan_interval"`
	Pairing        string        `mapstructure:"pairing"`
}

// StoreConfig selects the device store.
type StoreConfig struct {
	// Driver is memory, file or sqlite.
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`

	// Secret seals stored client keys when set.
	Secret string `mapstructure:"secret"`
}

// WebOSConfig configures the webOS service factory.
type WebOSConfig struct {
	Secure         bool          `mapstructure:"secure"`
	Port           int           `mapstructure:"port"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	AutoReconnect  bool          `mapstructure:"auto_reconnect"`
	Manifest       string        `mapstructure:"manifest"`
}

// loadConfig reads configuration from file and RENDERCAST_* environment
// variables. A missing default config file is not an error.
func loadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("discovery.ssdp", true)
	v.SetDefault("discovery.mdns_service", "")
	v.SetDefault("discovery.interface", "")
	v.SetDefault("discovery.rescan_interval", "10s")
	v.SetDefault("discovery.pairing", "on")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "")
	v.SetDefault("store.secret", "")
	v.SetDefault("webos.secure", true)
	v.SetDefault("webos.port", 0)
	v.SetDefault("webos.command_timeout", "0s")
	v.SetDefault("webos.auto_reconnect", true)
	v.SetDefault("webos.manifest", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("protocol_log", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rendercast")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/rendercast")
	}

	// RENDERCAST_STORE_DRIVER=sqlite
	v.SetEnvPrefix("RENDERCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be \"text\" or \"json\"", c.Log.Format)
	}
	switch c.Store.Driver {
	case "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store driver %q needs store.path", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q (use: memory, file, sqlite)", c.Store.Driver)
	}
	if c.Discovery.RescanInterval < 0 {
		return fmt.Errorf("negative rescan interval %s", c.Discovery.RescanInterval)
	}
	if c.WebOS.Port < 0 || c.WebOS.Port > 65535 {
		return fmt.Errorf("invalid webos port %d", c.WebOS.Port)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// newLogger builds the process logger from cfg writing to w.
func newLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	level, _ := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
