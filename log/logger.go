// Copyright (c) 2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository at
// https://github.com/hyperledger-labs/evm-bridge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the structured logger shared by all components of the
// bridge node.
package log

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Supported log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	logger   *logrus.Logger = nil
	loggerMu sync.Mutex
)

// Logger is for now, a type alias of Logrus.FieldLogger that defines a broad interface for logging.
type Logger = logrus.FieldLogger

// Fields is a collection of field to be passed to the Logger.
type Fields = logrus.Fields

// Config configures the internal logger instance.
type Config struct {
	Level  string // One of the logrus levels, e.g. debug, info, error.
	File   string // Empty string represents stdout.
	Format string // text (default) or json.
}

// InitLogger sets the internal logger instance to the given config.
// This function should be called exactly once and subsequent calls return an error.
func InitLogger(cfg Config) error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return initLogger(cfg)
}

func initLogger(cfg Config) error {
	if logger != nil {
		return errors.New("logger already initialized")
	}

	newLogger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return errors.WithStack(err)
	}
	newLogger.SetLevel(level)

	switch cfg.Format {
	case "", FormatText:
		newLogger.SetFormatter(&customTextFormatter{logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        "2006-01-02 15:04:05 Z0700",
			DisableLevelTruncation: true,
		}})
	case FormatJSON:
		newLogger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		return errors.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.File == "" {
		newLogger.SetOutput(os.Stdout)
	} else {
		f, err := os.OpenFile(filepath.Clean(cfg.File), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
		if err != nil {
			return errors.WithStack(err)
		}
		newLogger.SetOutput(f)
	}
	logger = newLogger
	return nil
}

// NewLoggerWithField returns a logger that logs with the given fields.
// It is derived from the internal logger instance of this package and uses the same log level and log file.
//
// If the internal logger instance is not initialized before this call, it is initialized to "debug" level
// and logs to the standard output (stdout).
func NewLoggerWithField(key string, value interface{}) Logger {
	return rootLogger().WithField(key, value)
}

// NewLoggerWithFields is like NewLoggerWithField, but adds all the given fields.
func NewLoggerWithFields(fields Fields) Logger {
	return rootLogger().WithFields(fields)
}

func rootLogger() *logrus.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		initLogger(Config{Level: "debug"}) // nolint: errcheck, gosec	// err will always be nil in this case.
	}
	return logger
}

// customTextFormatter is defined to override default formating options for log entry.
type customTextFormatter struct {
	logrus.TextFormatter
}

// Format modifies the default logging format.
func (f *customTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	originalText, err := f.TextFormatter.Format(entry)
	return append([]byte("▶ "), originalText...), err
}
