// Package telemetry sets up the process-wide logrus logger shared by every
// package in this module, following the level-name-to-logrus.Level mapping
// latentloop-latentfs's daemon uses for its own log level flag.
package telemetry

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Configure sets the global logrus logger's level and destination. levelName
// is case-insensitive and one of trace, debug, info, warn, error, or none
// (which discards all output). An empty levelName defaults to info.
func Configure(levelName string, out io.Writer) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(levelName) {
	case "none":
		log.SetOutput(io.Discard)
		return log
	case "trace":
		log.SetLevel(logrus.TraceLevel)
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	case "", "info":
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	log.SetOutput(out)
	return log
}

// WithComponent returns a logger entry tagged with the emitting package, the
// way each engine in this provider identifies itself in shared log output.
func WithComponent(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
