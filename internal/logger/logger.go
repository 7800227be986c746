// Package logger configures the global zerolog logger and carries request IDs through contexts.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

const milliTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// maxBodyLog is how much of a request or response body is logged at debug level.
const maxBodyLog = 1000

// Options configures Init.
type Options struct {
	Level  string // zerolog level name, info when empty or invalid
	File   string // optional file that receives a copy of the output
	Pretty bool   // colored console output for development
}

// OptionsFromEnv reads LOG_LEVEL, LOG_FILE and DEV_MODE.
func OptionsFromEnv() Options {
	return Options{
		Level:  os.Getenv("LOG_LEVEL"),
		File:   os.Getenv("LOG_FILE"),
		Pretty: os.Getenv("DEV_MODE") == "true",
	}
}

// Init initializes the global logger.
func Init(opts Options) {
	zerolog.TimeFieldFormat = milliTimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	const callerWidth = 30
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		path := fmt.Sprintf("%s:%d", filepath.Base(file), line)
		if len(path) >= callerWidth {
			return path[len(path)-callerWidth:]
		}
		return path + strings.Repeat(" ", callerWidth-len(path))
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: milliTimeFormat,
		NoColor:    !opts.Pretty,
	}
	if opts.File != "" {
		f, ferr := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if ferr == nil {
			output = io.MultiWriter(output, f)
		}
	}

	log.Logger = log.Output(output).With().Caller().Logger()

	log.Info().
		Str("level", level.String()).
		Bool("pretty", opts.Pretty).
		Msg("Logger initialized")
}

// Get returns the global logger instance.
func Get() zerolog.Logger {
	return log.Logger
}

// NewRequestID returns a short random request ID.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request ID from context, or empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ForRequest returns a logger enriched with the request ID from context.
func ForRequest(ctx context.Context) zerolog.Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return log.Logger
	}
	return log.Logger.With().Str("requestId", id).Logger()
}

// ForGame returns the request logger with the game and acting player attached.
func ForGame(ctx context.Context, gameID, playerID string) zerolog.Logger {
	l := ForRequest(ctx).With().Str("gameId", gameID)
	if playerID != "" {
		l = l.Str("playerId", playerID)
	}
	return l.Logger()
}

// LogBody logs a request or response body at debug level, truncating long bodies.
func LogBody(logger zerolog.Logger, field string, body []byte) {
	if len(body) == 0 {
		return
	}
	ev := logger.Debug()
	if len(body) > maxBodyLog {
		body = body[:maxBodyLog]
		ev = ev.Bool("truncated", true)
	}
	ev.Str(field, string(body)).Msg("Body")
}
