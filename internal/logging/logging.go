package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/admin-session/internal/config"
)

// New builds the process logger: a coloured console writer in DEV, JSON lines elsewhere.
// It also replaces the global zerolog logger so packages that default to log.Logger pick it up.
func New(cfg config.EnvConfig) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.GetEnv() == "DEV" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("app", cfg.GetAppName()).
		Logger()
	log.Logger = logger
	return logger
}
