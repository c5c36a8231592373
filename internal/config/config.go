// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/ninox/internal/log"
	"firestige.xyz/ninox/internal/stream"
	"firestige.xyz/ninox/internal/stream/capture"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `ninox:` root key in YAML.
type GlobalConfig struct {
	Source  stream.Config `mapstructure:"source"`
	Log     log.Config    `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// configRoot is the top-level wrapper matching the YAML structure `ninox: ...`.
type configRoot struct {
	Ninox GlobalConfig `mapstructure:"ninox"`
}

// Read loads configuration from file without validating it, so callers can
// overlay CLI flags before calling ValidateAndApplyDefaults themselves.
// An empty path yields the built-in defaults.
// The YAML file uses `ninox:` as root key; env vars reuse it as prefix via the
// key replacer (e.g., key "ninox.log.level" → env "NINOX_LOG_LEVEL").
func Read(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variable overrides.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults with "ninox." prefix to match the YAML structure
	setDefaults(v)

	// Unmarshal into wrapper → extract inner GlobalConfig
	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Ninox

	return &cfg, nil
}

// Load loads configuration from file and validates it.
func Load(path string) (*GlobalConfig, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "ninox." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("ninox.source.kind", "file")
	v.SetDefault("ninox.source.chunk_size", 1400)
	v.SetDefault("ninox.source.timeout", "0s")
	v.SetDefault("ninox.source.udp.ip", "0.0.0.0")
	v.SetDefault("ninox.source.udp.port", 5060)
	v.SetDefault("ninox.source.rawcap.port", 5060)
	v.SetDefault("ninox.source.rawcap.backend", "sockraw")

	// Log defaults
	v.SetDefault("ninox.log.level", "info")
	v.SetDefault("ninox.log.file.max_size_mb", 100)
	v.SetDefault("ninox.log.file.max_age_days", 30)
	v.SetDefault("ninox.log.file.max_backups", 5)
	v.SetDefault("ninox.log.file.compress", true)

	// Metrics defaults
	v.SetDefault("ninox.metrics.enabled", false)
	v.SetDefault("ninox.metrics.listen", ":9091")
	v.SetDefault("ninox.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and normalizes enum fields.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}

	// ── Source normalization ──
	kind, err := stream.ParseKind(string(cfg.Source.Kind))
	if err != nil {
		return err
	}
	cfg.Source.Kind = kind

	if cfg.Source.ChunkSize <= 0 {
		return fmt.Errorf("source.chunk_size must be positive, got %d", cfg.Source.ChunkSize)
	}
	if cfg.Source.Timeout < 0 {
		return fmt.Errorf("source.timeout must not be negative, got %s", cfg.Source.Timeout)
	}

	// ── Per-kind requirements ──
	switch kind {
	case stream.KindFile:
		if cfg.Source.File.Path == "" {
			return fmt.Errorf("source.file.path is required for file sources")
		}
		if cfg.Source.File.Offset < 0 {
			return fmt.Errorf("source.file.offset must not be negative, got %d", cfg.Source.File.Offset)
		}
	case stream.KindUDP:
		if cfg.Source.UDP.IP == "" {
			return fmt.Errorf("source.udp.ip is required for udp sources")
		}
	case stream.KindRaw:
		if cfg.Source.Raw.Interface == "" {
			return fmt.Errorf("source.rawcap.interface is required for rawcap sources")
		}
		if cfg.Source.Raw.Port == 0 {
			return fmt.Errorf("source.rawcap.port is required for rawcap sources")
		}
		backend, err := capture.ParseBackend(string(cfg.Source.Raw.Backend))
		if err != nil {
			return err
		}
		cfg.Source.Raw.Backend = backend
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}

	return nil
}
