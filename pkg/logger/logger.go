// Package logger is the structured logger of the partner portal.
// Call sites pass typed fields (logger.String, logger.Err, domain helpers
// such as logger.PartnerID); output goes through zerolog as JSON lines, or
// through zerolog.ConsoleWriter when Pretty is set.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Level is the minimum severity a Logger writes.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// ParseLevel reads LOG_LEVEL values. Unknown input means LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	}
	return LevelInfo
}

// Field is one key/value pair of a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field                 { return Field{key, value} }
func Int(key string, value int) Field                { return Field{key, value} }
func Int64(key string, value int64) Field            { return Field{key, value} }
func Bool(key string, value bool) Field              { return Field{key, value} }
func Duration(key string, value time.Duration) Field { return Field{key, value} }
func Time(key string, value time.Time) Field         { return Field{key, value} }
func Any(key string, value any) Field                { return Field{key, value} }

// Err logs err under the "error" key. A nil err is written as null.
func Err(err error) Field { return Field{zerolog.ErrorFieldName, err} }

// Options configures New.
type Options struct {
	Output io.Writer
	Level  Level

	// Caller adds file:line of the call site.
	Caller bool

	// Pretty switches to a human-readable console format for development.
	Pretty bool
}

// DefaultOptions writes JSON at info level to stdout with caller info.
func DefaultOptions() Options {
	return Options{Output: os.Stdout, Level: LevelInfo, Caller: true}
}

// Logger is immutable; With returns a child.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zc := zerolog.New(out).Level(opts.Level.zerolog()).With().Timestamp()
	if opts.Caller {
		// skip Logger.<level> and Logger.write
		zc = zc.CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 2)
	}
	return &Logger{zl: zc.Logger()}
}

// Default is New(DefaultOptions()).
func Default() *Logger { return New(DefaultOptions()) }

// Nop discards everything.
func Nop() *Logger { return &Logger{zl: zerolog.Nop()} }

// With returns a child logger that adds fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	zc := l.zl.With()
	for _, f := range fields {
		zc = zc.Interface(f.Key, plain(f.Value))
	}
	return &Logger{zl: zc.Logger()}
}

func (l *Logger) Debug(msg string, fields ...Field) { write(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { write(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { write(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { write(l.zl.Error(), msg, fields) }

// write is a no-op when the level is filtered out (ev == nil).
func write(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ev.Str(f.Key, v)
		case int:
			ev.Int(f.Key, v)
		case int64:
			ev.Int64(f.Key, v)
		case bool:
			ev.Bool(f.Key, v)
		case time.Duration:
			ev.Dur(f.Key, v)
		case time.Time:
			ev.Time(f.Key, v)
		case error:
			ev.AnErr(f.Key, v)
		default:
			ev.Interface(f.Key, plain(v))
		}
	}
	ev.Msg(msg)
}

// plain turns values without a useful JSON form into strings.
func plain(v any) any {
	switch x := v.(type) {
	case error:
		if x == nil {
			return nil
		}
		return x.Error()
	case decimal.Decimal:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	return v
}

type ctxKey struct{}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or Default when ctx has none.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

// RequestIDKey is the field set by the HTTP request-id middleware.
const RequestIDKey = "request_id"

func (l *Logger) WithRequestID(id string) *Logger { return l.With(String(RequestIDKey, id)) }

// Domain fields.
func PartnerID(id string) Field           { return String("partner_id", id) }
func ContributionID(id string) Field      { return String("contribution_id", id) }
func Amount(amount decimal.Decimal) Field { return String("amount", amount.String()) }
func Period(period string) Field          { return String("period", period) }
func Component(name string) Field         { return String("component", name) }
func Latency(d time.Duration) Field       { return Duration("latency", d) }
