package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/machinemap/machinemap/pkg/logging"
)

// NewLogger creates a configured logger from the application configuration.
// Log level precedence (highest to lowest):
//  1. --log-level flag
//  2. -v/--verbose flag (shortcut for debug)
//  3. -q/--quiet flag (shortcut for warn)
//  4. LOG_LEVEL environment variable
//  5. Default (info)
func NewLogger(config *Config) zerolog.Logger {
	level := determineLogLevel(config)

	var logger zerolog.Logger
	if config.LogFormat == "console" || (config.LogFormat == "auto" && !config.NoColor) {
		logger = logging.NewConsole()
	} else {
		logger = logging.New(os.Stderr)
	}
	return logger.Level(level)
}

// determineLogLevel resolves the level using the precedence rules above.
func determineLogLevel(config *Config) zerolog.Level {
	if config.LogLevel != "" {
		level, err := zerolog.ParseLevel(config.LogLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using \"info\"\n", config.LogLevel)
			return zerolog.InfoLevel
		}
		return level
	}

	if config.Verbose && config.Quiet {
		fmt.Fprintln(os.Stderr, "Warning: both --verbose and --quiet specified, using --quiet")
		return zerolog.WarnLevel
	}
	if config.Verbose {
		return zerolog.DebugLevel
	}
	if config.Quiet {
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}
