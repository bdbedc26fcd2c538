package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// ParseLevel maps a LOG_LEVEL value to a log level.
func ParseLevel(level string) (log.Level, error) {
	l, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	return l, nil
}

// NewLogger builds the logger of one binary and installs it as the default.
func (c *Config) NewLogger(prefix string) *log.Logger {
	return newLogger(os.Stderr, prefix, c.LogLevel)
}

func newLogger(w io.Writer, prefix, level string) *log.Logger {
	lvl, err := ParseLevel(level)
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	if err != nil {
		logger.Warn("falling back to info level", "err", err)
	}
	log.SetDefault(logger)
	return logger
}
