// Package sqlitelog writes SQLite trace events to a structured logger.
package sqlitelog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/corelite/sqlite"
	"github.com/corelite/sqlite/sqliteh"
)

// Config selects the logger's level, format, and destination.
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stdout or stderr

	// SlowQuery is the duration at which a successful query is
	// logged at info level instead of debug. Zero disables it.
	SlowQuery time.Duration `yaml:"slow_query"`
}

// NewLogger builds a slog.Logger from cfg.
// If w is nil the destination is picked by cfg.Output.
func NewLogger(cfg Config, w io.Writer) *slog.Logger {
	if w == nil {
		switch strings.ToLower(cfg.Output) {
		case "stderr":
			w = os.Stderr
		default:
			w = os.Stdout
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
// Unrecognized levels are info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Tracer implements sqliteh.Tracer by logging each event.
//
// Failures are logged at warn level. Queries slower than SlowQuery are
// logged at info, everything else at debug.
type Tracer struct {
	Logger    *slog.Logger
	SlowQuery time.Duration
}

// NewTracer returns a Tracer logging to l with the "component" attribute
// set to "sqlite".
func NewTracer(l *slog.Logger, slowQuery time.Duration) *Tracer {
	return &Tracer{
		Logger:    l.With("component", "sqlite"),
		SlowQuery: slowQuery,
	}
}

func errAttrs(err error) []any {
	attrs := []any{"error", err.Error()}
	var e *sqlite.Error
	if errors.As(err, &e) {
		attrs = append(attrs, "code", e.Code.String(), "loc", e.Loc)
	}
	return attrs
}

func (t *Tracer) Query(prepCtx context.Context, id sqliteh.TraceConnID, query string, duration time.Duration, err error) {
	args := []any{"conn", int(id), "query", query, "duration", duration}
	switch {
	case err != nil:
		t.Logger.WarnContext(prepCtx, "query failed", append(args, errAttrs(err)...)...)
	case t.SlowQuery > 0 && duration >= t.SlowQuery:
		t.Logger.InfoContext(prepCtx, "slow query", args...)
	default:
		t.Logger.DebugContext(prepCtx, "query", args...)
	}
}

func (t *Tracer) BeginTx(beginCtx context.Context, id sqliteh.TraceConnID, why string, readOnly bool, err error) {
	args := []any{"conn", int(id), "name", why, "read_only", readOnly}
	if err != nil {
		t.Logger.WarnContext(beginCtx, "begin failed", append(args, errAttrs(err)...)...)
		return
	}
	t.Logger.DebugContext(beginCtx, "begin", args...)
}

func (t *Tracer) Commit(id sqliteh.TraceConnID, err error) {
	t.txEnd("commit", id, err)
}

func (t *Tracer) Rollback(id sqliteh.TraceConnID, err error) {
	t.txEnd("rollback", id, err)
}

func (t *Tracer) txEnd(msg string, id sqliteh.TraceConnID, err error) {
	if err != nil {
		t.Logger.Warn(msg+" failed", append([]any{"conn", int(id)}, errAttrs(err)...)...)
		return
	}
	t.Logger.Debug(msg, "conn", int(id))
}
