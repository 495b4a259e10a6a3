package config

import (
	"fmt"
	"strings"
	"time"
)

// Default configuration values
const (
	DefaultRPCAddress      = "localhost:8588"
	DefaultSource          = SourceWBFT
	DefaultOffset          = 1
	DefaultPollInterval    = 1 * time.Second
	DefaultMaxQueryRetries = 3
	DefaultTrackInterval   = 5 * time.Second
	DefaultTimeFormatLogs  = "kitchen"
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
	DefaultAPIPort         = 8080
	DefaultAPIHost         = "0.0.0.0"
	MinPollInterval        = 100 * time.Millisecond
)

// Supported height source kinds
const (
	SourceWBFT = "wbft"
	SourceEth  = "eth"
)

// Config holds all configuration for blockwait
type Config struct {
	// Node endpoints
	RPCAddresses []string `mapstructure:"rpc_addresses" toml:"rpc_addresses" yaml:"rpc_addresses" json:"rpc_addresses"`
	Source       string   `mapstructure:"source" toml:"source" yaml:"source" json:"source"`

	// Wait settings
	Offset          int64    `mapstructure:"offset" toml:"offset" yaml:"offset" json:"offset"`
	PollInterval    Duration `mapstructure:"poll_interval" toml:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	Timeout         Duration `mapstructure:"timeout" toml:"timeout" yaml:"timeout" json:"timeout"`
	MaxQueryRetries int      `mapstructure:"max_query_retries" toml:"max_query_retries" yaml:"max_query_retries" json:"max_query_retries"`

	// Watch mode settings
	TrackInterval Duration `mapstructure:"track_interval" toml:"track_interval" yaml:"track_interval" json:"track_interval"`

	// Output settings
	Quiet      bool   `mapstructure:"quiet" toml:"quiet" yaml:"quiet" json:"quiet"`
	JSONOutput bool   `mapstructure:"json_output" toml:"json_output" yaml:"json_output" json:"json_output"`
	ReportFile string `mapstructure:"report_file" toml:"report_file" yaml:"report_file" json:"report_file"`

	// Logging
	Debug          bool   `mapstructure:"debug" toml:"debug" yaml:"debug" json:"debug"`
	DisableLogs    bool   `mapstructure:"disable_logs" toml:"disable_logs" yaml:"disable_logs" json:"disable_logs"`
	ColorLogs      bool   `mapstructure:"color_logs" toml:"color_logs" yaml:"color_logs" json:"color_logs"`
	TimeFormatLogs string `mapstructure:"timeformat_logs" toml:"timeformat_logs" yaml:"timeformat_logs" json:"timeformat_logs"`

	// Metrics settings
	MetricsEnabled bool   `mapstructure:"metrics_enabled" toml:"metrics_enabled" yaml:"metrics_enabled" json:"metrics_enabled"`
	MetricsPort    int    `mapstructure:"metrics_port" toml:"metrics_port" yaml:"metrics_port" json:"metrics_port"`
	MetricsPath    string `mapstructure:"metrics_path" toml:"metrics_path" yaml:"metrics_path" json:"metrics_path"`

	// API Server settings
	APIEnabled     bool     `mapstructure:"api_enabled" toml:"api_enabled" yaml:"api_enabled" json:"api_enabled"`
	APIPort        int      `mapstructure:"api_port" toml:"api_port" yaml:"api_port" json:"api_port"`
	APIHost        string   `mapstructure:"api_host" toml:"api_host" yaml:"api_host" json:"api_host"`
	APIEnableAuth  bool     `mapstructure:"api_enable_auth" toml:"api_enable_auth" yaml:"api_enable_auth" json:"api_enable_auth"`
	APIJWTSecret   string   `mapstructure:"api_jwt_secret" toml:"api_jwt_secret" yaml:"api_jwt_secret" json:"api_jwt_secret"`
	APICORSOrigins []string `mapstructure:"api_cors_origins" toml:"api_cors_origins" yaml:"api_cors_origins" json:"api_cors_origins"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		RPCAddresses:    []string{DefaultRPCAddress},
		Source:          DefaultSource,
		Offset:          DefaultOffset,
		PollInterval:    Duration{DefaultPollInterval},
		MaxQueryRetries: DefaultMaxQueryRetries,
		TrackInterval:   Duration{DefaultTrackInterval},
		ColorLogs:       true,
		TimeFormatLogs:  DefaultTimeFormatLogs,

		// Metrics defaults
		MetricsPort: DefaultMetricsPort,
		MetricsPath: DefaultMetricsPath,

		// API Server defaults
		APIPort:        DefaultAPIPort,
		APIHost:        DefaultAPIHost,
		APICORSOrigins: []string{"*"},
	}
}

// PrimaryRPCAddress returns the first configured RPC address
func (c *Config) PrimaryRPCAddress() string {
	for _, addr := range c.RPCAddresses {
		if addr != "" {
			return addr
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.PrimaryRPCAddress() == "" {
		return fmt.Errorf("no RPC address configured")
	}

	switch c.Source {
	case SourceWBFT, SourceEth:
	default:
		return fmt.Errorf("unknown height source: %s (valid: %s, %s)", c.Source, SourceWBFT, SourceEth)
	}

	if c.Offset < 0 {
		return fmt.Errorf("offset cannot be negative")
	}

	if c.PollInterval.Duration < MinPollInterval {
		return fmt.Errorf("poll interval too short (minimum %v)", MinPollInterval)
	}

	if c.Timeout.Duration < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if c.MaxQueryRetries < 1 {
		return fmt.Errorf("max query retries must be at least 1")
	}

	if c.TrackInterval.Duration < MinPollInterval {
		return fmt.Errorf("track interval too short (minimum %v)", MinPollInterval)
	}

	if c.TimeFormatLogs != "" {
		validFormats := []string{"kitchen", "rfc3339", "rfc3339nano", "iso8601"}
		valid := false
		for _, format := range validFormats {
			if c.TimeFormatLogs == format {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid time format: %s (valid: %s)", c.TimeFormatLogs, strings.Join(validFormats, ", "))
		}
	}

	if c.MetricsEnabled {
		if c.MetricsPort < 1 || c.MetricsPort > 65535 {
			return fmt.Errorf("metrics port %d is invalid", c.MetricsPort)
		}
	}

	if c.APIEnabled {
		if c.APIPort < 1 || c.APIPort > 65535 {
			return fmt.Errorf("API port %d is invalid", c.APIPort)
		}
		if c.APIEnableAuth && c.APIJWTSecret == "" {
			return fmt.Errorf("API auth enabled but no JWT secret configured")
		}
	}

	return nil
}
