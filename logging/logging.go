// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type LogFormat string

const (
	LevelOpt  = "level"
	FormatOpt = "format"

	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"

	DefaultLogFormat LogFormat = LogFormatText
	DefaultLogLevel            = logrus.InfoLevel
)

// LogOptions maps configuration key-value pairs related to logging.
type LogOptions map[string]string

// DefaultLogger is the base logrus logger. Packages derive their own entry
// from it with a subsystem field.
var DefaultLogger = InitializeDefaultLogger()

// InitializeDefaultLogger returns a logrus logger writing text to stderr at
// the default level.
func InitializeDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(GetFormatter(DefaultLogFormat))
	logger.SetLevel(DefaultLogLevel)
	return logger
}

// GetLogLevel returns the log level set in the options. Unknown values fall
// back to DefaultLogLevel.
func (o LogOptions) GetLogLevel() logrus.Level {
	level, ok := o[LevelOpt]
	if !ok {
		return DefaultLogLevel
	}
	l, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return DefaultLogLevel
	}
	return l
}

// GetLogFormat returns the log format set in the options. Unknown values fall
// back to DefaultLogFormat.
func (o LogOptions) GetLogFormat() LogFormat {
	switch LogFormat(strings.ToLower(o[FormatOpt])) {
	case LogFormatJSON:
		return LogFormatJSON
	case LogFormatText:
		return LogFormatText
	}
	return DefaultLogFormat
}

// LogOptionsFromEnv builds options from a level env var such as LOG_LEVEL.
func LogOptionsFromEnv(levelEnv string) LogOptions {
	opts := LogOptions{}
	if v, ok := os.LookupEnv(levelEnv); ok {
		opts[LevelOpt] = v
	}
	return opts
}

func GetFormatter(format LogFormat) logrus.Formatter {
	switch format {
	case LogFormatJSON:
		return &logrus.JSONFormatter{DisableTimestamp: false}
	default:
		return &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}
	}
}

func SetLogLevel(level logrus.Level) {
	DefaultLogger.SetLevel(level)
}

func SetLogFormat(format LogFormat) {
	DefaultLogger.SetFormatter(GetFormatter(format))
}

// SetupLogging applies the options to DefaultLogger and redirects it to w.
func SetupLogging(opts LogOptions, w io.Writer) {
	if w != nil {
		DefaultLogger.SetOutput(w)
	}
	SetLogFormat(opts.GetLogFormat())
	SetLogLevel(opts.GetLogLevel())
}
