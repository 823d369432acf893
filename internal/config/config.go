// Package config handles configuration loading and management for FluxScan.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for FluxScan
type Config struct {
	Target  TargetConfig  `yaml:"target"`
	Scanner ScannerConfig `yaml:"scanner"`
	Engine  EngineConfig  `yaml:"engine"`
	History HistoryConfig `yaml:"history"`
	Web     WebConfig     `yaml:"web"`
	Output  OutputConfig  `yaml:"output"`
}

// TargetConfig defines the base request scanned by the CLI
type TargetConfig struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
}

// ScannerConfig defines the active scan scheduler
type ScannerConfig struct {
	MaxConcurrentScans int           `yaml:"max_concurrent_scans"`
	Throttle           time.Duration `yaml:"throttle"`
	PluginID           string        `yaml:"plugin_id"`
	PayloadsFile       string        `yaml:"payloads_file"`
}

// EngineConfig defines the HTTP client configuration
type EngineConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	RPS             int           `yaml:"rps"` // 0 = unlimited
	UserAgent       string        `yaml:"user_agent"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	SkipTLSVerify   bool          `yaml:"skip_tls_verify"`
}

// HistoryConfig bounds the observed request store
type HistoryConfig struct {
	Capacity int64         `yaml:"capacity"` // bytes
	TTL      time.Duration `yaml:"ttl"`
}

// WebConfig defines the host API server
type WebConfig struct {
	Addr          string `yaml:"addr"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

// OutputConfig defines the output configuration
type OutputConfig struct {
	Format     string `yaml:"format"` // json, jsonl, html
	OutputFile string `yaml:"output_file"`
	Verbose    bool   `yaml:"verbose"`
	EnableTUI  bool   `yaml:"enable_tui"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			Method: "GET",
		},
		Scanner: ScannerConfig{
			MaxConcurrentScans: 5,
			Throttle:           500 * time.Millisecond,
			PluginID:           "fluxscan",
		},
		Engine: EngineConfig{
			Timeout:         10 * time.Second,
			UserAgent:       "FluxScan/1.0",
			MaxConnsPerHost: 50,
			SkipTLSVerify:   true,
		},
		History: HistoryConfig{
			Capacity: 64 * 1024 * 1024,
			TTL:      time.Hour,
		},
		Web: WebConfig{
			Addr:          ":8090",
			EnableMetrics: true,
		},
		Output: OutputConfig{
			Format: "json",
		},
	}
}

// Load reads a YAML file and merges it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse merges YAML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	if c.Scanner.MaxConcurrentScans < 1 {
		errs = append(errs, fmt.Errorf("scanner.max_concurrent_scans must be at least 1, got %d", c.Scanner.MaxConcurrentScans))
	}
	if c.Scanner.Throttle < 0 {
		errs = append(errs, fmt.Errorf("scanner.throttle must not be negative, got %s", c.Scanner.Throttle))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout))
	}
	if c.Engine.RPS < 0 {
		errs = append(errs, fmt.Errorf("engine.rps must not be negative, got %d", c.Engine.RPS))
	}
	if c.History.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("history.capacity must be positive, got %d", c.History.Capacity))
	}
	switch c.Output.Format {
	case "json", "jsonl", "html":
	default:
		errs = append(errs, fmt.Errorf("output.format must be json, jsonl or html, got %q", c.Output.Format))
	}
	return errors.Join(errs...)
}
