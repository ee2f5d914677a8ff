// Package logging builds the logrus logger shared by the CLI and the driver.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

type Options struct {
	Level   string
	JSON    bool
	Verbose bool
}

func New(w io.Writer, opts Options) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	// Verbose lifts the default info level to debug. An explicit warn or
	// error level still wins.
	switch strings.ToLower(opts.Level) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		if opts.Verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}
	}

	return logger
}

// Discard returns a logger that drops everything, for tests and library
// callers that pass no logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
