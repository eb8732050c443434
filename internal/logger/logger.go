// Package logger provides structured logging using zerolog: console output
// with millisecond UTC timestamps, a fixed-width caller column and request
// and match scoped child loggers.
package logger

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	matchIDKey   contextKey = "match_id"
)

const (
	milliTimeFormat = "2006-01-02T15:04:05.000Z07:00"
	callerWidth     = 30
	// bodyLogLimit caps bodies written by LogRequest and LogResponse.
	bodyLogLimit = 1000
)

// Init configures the global logger from LOG_LEVEL, LOG_FORMAT, LOG_FILE
// and the DEV flags.
func Init() {
	zerolog.TimeFieldFormat = milliTimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	zerolog.CallerMarshalFunc = callerColumn

	level := levelFromEnv()
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(outputFromEnv()).With().Caller().Logger()
	log.Info().
		Str("level", level.String()).
		Bool("dev", isDevelopmentMode()).
		Str("service", "minimalists").
		Msg("Logger initialized")
}

// callerColumn pads or cuts file:line to a fixed width so messages line up.
func callerColumn(_ uintptr, file string, line int) string {
	path := fmt.Sprintf("%s:%d", filepath.Base(file), line)
	if len(path) >= callerWidth {
		return path[len(path)-callerWidth:]
	}
	return path + strings.Repeat(" ", callerWidth-len(path))
}

func levelFromEnv() zerolog.Level {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// outputFromEnv picks console or raw JSON output and tees into LOG_FILE
// when one is set and can be opened.
func outputFromEnv() io.Writer {
	var out io.Writer = os.Stdout
	if !strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: milliTimeFormat, NoColor: !isDevelopmentMode()}
	}
	name := os.Getenv("LOG_FILE")
	if name == "" {
		return out
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: open %s: %v\n", name, err)
		return out
	}
	return io.MultiWriter(out, f)
}

func isDevelopmentMode() bool {
	for _, k := range []string{"DEV", "DEV_MODE", "DEVELOPMENT"} {
		if os.Getenv(k) == "true" {
			return true
		}
	}
	return false
}

// Get returns the global logger.
func Get() zerolog.Logger {
	return log.Logger
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRequestID returns an 8 character random tag for correlating the log
// lines of one HTTP request or websocket session.
func NewRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req%05d", time.Now().UnixNano()%100000)
	}
	for i, x := range b {
		b[i] = idAlphabet[int(x)%len(idAlphabet)]
	}
	return string(b)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ForRequest tags the global logger with the request ID in ctx, if any.
func ForRequest(ctx context.Context) zerolog.Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return log.Logger
	}
	return log.Logger.With().Str("requestId", id).Logger()
}

// WithMatchID returns a new context carrying the match being served.
func WithMatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, matchIDKey, id)
}

// ForMatch returns a logger tagged with matchId, for a match's actor
// goroutine and the engine running inside it.
func ForMatch(id string) zerolog.Logger {
	return log.Logger.With().Str("matchId", id).Logger()
}

// ForContext combines ForRequest with the match ID stored in ctx, if any.
func ForContext(ctx context.Context) zerolog.Logger {
	l := ForRequest(ctx)
	if id, _ := ctx.Value(matchIDKey).(string); id != "" {
		l = l.With().Str("matchId", id).Logger()
	}
	return l
}

// LogRequest writes an API request body at debug level.
func LogRequest(l zerolog.Logger, body []byte) {
	logBody(l, "request_body", "Request body", body)
}

// LogResponse writes an API response body at debug level.
func LogResponse(l zerolog.Logger, body []byte) {
	logBody(l, "response", "Response body", body)
}

func logBody(l zerolog.Logger, field, msg string, body []byte) {
	if len(body) == 0 {
		return
	}
	ev := l.Debug()
	if len(body) > bodyLogLimit {
		body = body[:bodyLogLimit]
		ev = ev.Bool("truncated", true)
	}
	ev.Str(field, string(body)).Msg(msg)
}
