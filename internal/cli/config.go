package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wemix/blockwait/internal/config"
	"github.com/wemix/blockwait/pkg/logger"
)

// loadConfig builds the effective configuration for a command invocation.
// Precedence from weakest to strongest: defaults, config file, BLOCKWAIT_*
// environment variables, command line flags. Flags that a subcommand does
// not define simply never register as changed.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	// Set config from environment variables
	viper.SetEnvPrefix("BLOCKWAIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Config file first so environment and flags can override it
	if path := configFilePath(cmd); path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// Node endpoints
	if cmd.Flags().Changed("rpc-addr") {
		cfg.RPCAddresses, _ = cmd.Flags().GetStringSlice("rpc-addr")
	} else if viper.IsSet("rpc-addr") {
		cfg.RPCAddresses = splitAddresses(viper.GetString("rpc-addr"))
	}

	if cmd.Flags().Changed("source") {
		cfg.Source, _ = cmd.Flags().GetString("source")
	} else if viper.IsSet("source") {
		cfg.Source = viper.GetString("source")
	}

	// Wait settings
	if cmd.Flags().Changed("offset") {
		cfg.Offset, _ = cmd.Flags().GetInt64("offset")
	} else if viper.IsSet("offset") {
		cfg.Offset = viper.GetInt64("offset")
	}

	if cmd.Flags().Changed("poll-interval") {
		d, _ := cmd.Flags().GetDuration("poll-interval")
		cfg.PollInterval = config.Duration{Duration: d}
	} else if viper.IsSet("poll-interval") {
		cfg.PollInterval = config.Duration{Duration: viper.GetDuration("poll-interval")}
	}

	if cmd.Flags().Changed("timeout") {
		d, _ := cmd.Flags().GetDuration("timeout")
		cfg.Timeout = config.Duration{Duration: d}
	} else if viper.IsSet("timeout") {
		cfg.Timeout = config.Duration{Duration: viper.GetDuration("timeout")}
	}

	if cmd.Flags().Changed("max-query-retries") {
		cfg.MaxQueryRetries, _ = cmd.Flags().GetInt("max-query-retries")
	} else if viper.IsSet("max-query-retries") {
		cfg.MaxQueryRetries = viper.GetInt("max-query-retries")
	}

	if cmd.Flags().Changed("report-file") {
		cfg.ReportFile, _ = cmd.Flags().GetString("report-file")
	} else if viper.IsSet("report-file") {
		cfg.ReportFile = viper.GetString("report-file")
	}

	// Watch settings
	if cmd.Flags().Changed("track-interval") {
		d, _ := cmd.Flags().GetDuration("track-interval")
		cfg.TrackInterval = config.Duration{Duration: d}
	} else if viper.IsSet("track-interval") {
		cfg.TrackInterval = config.Duration{Duration: viper.GetDuration("track-interval")}
	}

	if cmd.Flags().Changed("metrics") {
		cfg.MetricsEnabled, _ = cmd.Flags().GetBool("metrics")
	} else if viper.IsSet("metrics-enabled") {
		cfg.MetricsEnabled = viper.GetBool("metrics-enabled")
	}

	if cmd.Flags().Changed("metrics-port") {
		cfg.MetricsPort, _ = cmd.Flags().GetInt("metrics-port")
	} else if viper.IsSet("metrics-port") {
		cfg.MetricsPort = viper.GetInt("metrics-port")
	}

	if cmd.Flags().Changed("api") {
		cfg.APIEnabled, _ = cmd.Flags().GetBool("api")
	} else if viper.IsSet("api-enabled") {
		cfg.APIEnabled = viper.GetBool("api-enabled")
	}

	if cmd.Flags().Changed("api-port") {
		cfg.APIPort, _ = cmd.Flags().GetInt("api-port")
	} else if viper.IsSet("api-port") {
		cfg.APIPort = viper.GetInt("api-port")
	}

	// Settings reachable only through the environment or a config file
	if viper.IsSet("metrics-path") {
		cfg.MetricsPath = viper.GetString("metrics-path")
	}
	if viper.IsSet("api-host") {
		cfg.APIHost = viper.GetString("api-host")
	}
	if viper.IsSet("api-enable-auth") {
		cfg.APIEnableAuth = viper.GetBool("api-enable-auth")
	}
	if viper.IsSet("api-jwt-secret") {
		cfg.APIJWTSecret = viper.GetString("api-jwt-secret")
	}

	// Output settings
	if cmd.Flags().Changed("quiet") {
		cfg.Quiet, _ = cmd.Flags().GetBool("quiet")
	} else if viper.IsSet("quiet") {
		cfg.Quiet = viper.GetBool("quiet")
	}

	if cmd.Flags().Changed("json") {
		cfg.JSONOutput, _ = cmd.Flags().GetBool("json")
	} else if viper.IsSet("json-output") {
		cfg.JSONOutput = viper.GetBool("json-output")
	}

	// Logging settings
	if cmd.Flags().Changed("debug") {
		cfg.Debug, _ = cmd.Flags().GetBool("debug")
	} else if viper.IsSet("debug") {
		cfg.Debug = viper.GetBool("debug")
	}

	if viper.IsSet("disable-logs") {
		cfg.DisableLogs = viper.GetBool("disable-logs")
	}
	if viper.IsSet("color-logs") {
		cfg.ColorLogs = viper.GetBool("color-logs")
	}
	if viper.IsSet("timeformat-logs") {
		cfg.TimeFormatLogs = viper.GetString("timeformat-logs")
	}

	return cfg, nil
}

// configFilePath resolves the config file path from the flag or environment.
// Callers must have applied the viper environment setup first.
func configFilePath(cmd *cobra.Command) string {
	if path := cmd.Flag("config").Value.String(); path != "" {
		return path
	}
	if viper.IsSet("config") {
		return viper.GetString("config")
	}
	return ""
}

// splitAddresses parses a comma separated address list from the environment
func splitAddresses(s string) []string {
	parts := strings.Split(s, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}

// newLogger initializes the process logger from logging configuration
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.ColorLogs, cfg.DisableLogs, cfg.TimeFormatLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
