package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger = zerolog.Logger

// New builds the process logger. Development environments get a human
// readable console writer; everything else logs JSON to stdout.
func New(env, level string) Logger {
	var out io.Writer = os.Stdout
	if isDevelopment(env) {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return zerolog.Nop()
}

func isDevelopment(env string) bool {
	switch strings.ToLower(env) {
	case "development", "dev", "local":
		return true
	}
	return false
}
