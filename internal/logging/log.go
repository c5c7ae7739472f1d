package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process logger. Packages log parse diagnostics at debug level
// through it so hosts can silence them without losing repository errors.
var Log = logrus.New()

func SetLogLevel(level string) error {
	// trace and panic levels are not used
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "info", "":
		Log.SetLevel(logrus.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	case "fatal":
		Log.SetLevel(logrus.FatalLevel)
	default:
		return fmt.Errorf("DOC_CONFIG_LOGGING: bad log level %q", level)
	}
	return nil
}

func SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "text", "":
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("DOC_CONFIG_LOGGING: bad log format %q", format)
	}
	return nil
}

func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// Configure applies level and format in one call, as read from config.
func Configure(level, format string) error {
	if err := SetLogLevel(level); err != nil {
		return err
	}
	return SetFormat(format)
}
