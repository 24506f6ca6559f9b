package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the component-scoped logging contract shared by every package.
type Logger interface {
	Debug(component, message string, fields map[string]interface{})
	Info(component, message string, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Error(component, message string, err error, fields map[string]interface{})
}

// LevelFromEnv reads LOG_LEVEL, falling back to DEBUG=1 and then info.
func LevelFromEnv() zerolog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"), os.Getenv("DEBUG") == "1")
}

func ParseLevel(name string, debug bool) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		if debug {
			return zerolog.DebugLevel
		}
		return zerolog.InfoLevel
	}
}
