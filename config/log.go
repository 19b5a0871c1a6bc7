package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Log selects logrus level, formatter and destination.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File appends to the named file instead of stderr.
	File string `yaml:"file,omitempty"`
}

func (l Log) Validate() error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	switch l.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("config: log format %q (want text or json)", l.Format)
	}
}

// NewLogger builds a logger. The returned close function releases the log
// file, if any.
func (l Log) NewLogger(stderr io.Writer) (*logrus.Logger, func() error, error) {
	if err := l.Validate(); err != nil {
		return nil, nil, err
	}
	level, _ := logrus.ParseLevel(l.Level)

	logger := logrus.New()
	logger.SetLevel(level)
	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "02-01-2006 15:04:05",
		})
	}

	if l.File == "" {
		logger.SetOutput(stderr)
		return logger, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(l.File), 0o700); err != nil {
		return nil, nil, fmt.Errorf("config: log dir: %w", err)
	}
	f, err := os.OpenFile(l.File, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("config: log file: %w", err)
	}
	logger.SetOutput(f)
	return logger, f.Close, nil
}
