// Package logger configures the process-wide zerolog logger.
package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type loggerKey struct{}

// Init sets the global level and output format ("json" or "console").
// An unknown level falls back to info with a warning.
func Init(level, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter is Init writing to w
func InitWriter(w io.Writer, level, format string) {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	invalid := err != nil || lvl == zerolog.NoLevel
	if invalid {
		lvl = zerolog.InfoLevel
	}

	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger().Level(lvl)
	if invalid {
		log.Warn().Str("level", level).Msg("invalid log level, defaulting to info")
	}
}

// Ctx returns the logger carried by ctx, or the global logger
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok {
			return l
		}
	}
	return &log.Logger
}

// WithLogger returns a context carrying l
func WithLogger(ctx context.Context, l *zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}
