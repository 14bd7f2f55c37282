// Package logging provides structured logging for raftd nodes.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents the logging level.
type Level int

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into a Level.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents the log output format.
type Format int

const (
	// FormatText outputs logs in human-readable text format.
	FormatText Format = iota
	// FormatJSON outputs logs in JSON format.
	FormatJSON
)

// ParseFormat parses a string into a Format.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// Logger is the interface for structured logging.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})
	// Info logs an info message with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})
	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})
	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
	// WithRequestID returns a new logger with the given request ID.
	WithRequestID(requestID string) Logger
	// WithFields returns a new logger with the given fields.
	WithFields(keysAndValues ...interface{}) Logger
	// SetLevel changes the minimum level of this logger and every logger
	// derived from the same root.
	SetLevel(level Level)
}

// sink is the destination shared by a root logger and everything derived
// from it.
type sink struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	level  atomic.Int32
}

func (s *sink) enabled(level Level) bool {
	return level >= Level(s.level.Load())
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	s.w.Write(line)
	s.mu.Unlock()
}

// logger is the default implementation of Logger.
type logger struct {
	sink      *sink
	fields    map[string]interface{}
	requestID string
}

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
	Output string // "stdout", "stderr" or a file path
}

// New creates a Logger from cfg. An output file that cannot be opened falls
// back to stderr.
func New(cfg Config) Logger {
	var w io.Writer = os.Stderr
	switch cfg.Output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
	default:
		if f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			w = f
		}
	}
	return NewWithWriter(w, ParseLevel(cfg.Level), ParseFormat(cfg.Format))
}

// NewWithWriter creates a Logger writing one line per entry to w.
func NewWithWriter(w io.Writer, level Level, format Format) Logger {
	s := &sink{w: w, format: format}
	s.level.Store(int32(level))
	return &logger{sink: s}
}

// NewDefault returns an info-level text logger on stderr.
func NewDefault() Logger {
	return NewWithWriter(os.Stderr, LevelInfo, FormatText)
}

// NewNop creates a no-op logger that discards all output.
func NewNop() Logger {
	return &nopLogger{}
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(LevelDebug, msg, keysAndValues)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(LevelInfo, msg, keysAndValues)
}

func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(LevelWarn, msg, keysAndValues)
}

func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(LevelError, msg, keysAndValues)
}

func (l *logger) WithRequestID(requestID string) Logger {
	return &logger{sink: l.sink, fields: l.fields, requestID: requestID}
}

func (l *logger) WithFields(keysAndValues ...interface{}) Logger {
	fields := make(map[string]interface{}, len(l.fields)+len(keysAndValues)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	addPairs(fields, keysAndValues)
	return &logger{sink: l.sink, fields: fields, requestID: l.requestID}
}

func (l *logger) SetLevel(level Level) {
	l.sink.level.Store(int32(level))
}

// addPairs copies alternating string keys and values into dst. Pairs with a
// non-string key and a trailing odd value are dropped.
func addPairs(dst map[string]interface{}, keysAndValues []interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		// Errors marshal to {} in JSON.
		if err, isErr := keysAndValues[i+1].(error); isErr && err != nil {
			dst[key] = err.Error()
			continue
		}
		dst[key] = keysAndValues[i+1]
	}
}

func (l *logger) log(level Level, msg string, keysAndValues []interface{}) {
	if !l.sink.enabled(level) {
		return
	}

	fields := make(map[string]interface{}, len(l.fields)+len(keysAndValues)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	addPairs(fields, keysAndValues)

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	var line []byte
	if l.sink.format == FormatJSON {
		line = encodeJSON(ts, level, msg, l.requestID, fields)
	} else {
		line = encodeText(ts, level, msg, l.requestID, fields)
	}
	l.sink.write(append(line, '\n'))
}

// encodeJSON renders one object; ts, level, msg and request_id win over
// fields of the same name.
func encodeJSON(ts string, level Level, msg, requestID string, fields map[string]interface{}) []byte {
	fields["ts"] = ts
	fields["level"] = level.String()
	fields["msg"] = msg
	if requestID != "" {
		fields["request_id"] = requestID
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return []byte(fmt.Sprintf(`{"ts":%q,"level":"error","msg":"unencodable log entry","error":%q}`, ts, err.Error()))
	}
	return data
}

// encodeText renders "ts [level] msg request_id=.. k=v" with fields sorted
// by key.
func encodeText(ts string, level Level, msg, requestID string, fields map[string]interface{}) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", ts, level, msg)
	if requestID != "" {
		b.WriteString(" request_id=")
		b.WriteString(requestID)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return []byte(b.String())
}

// nopLogger is a no-op logger that discards all output.
type nopLogger struct{}

func (n *nopLogger) Debug(_ string, _ ...interface{})   {}
func (n *nopLogger) Info(_ string, _ ...interface{})    {}
func (n *nopLogger) Warn(_ string, _ ...interface{})    {}
func (n *nopLogger) Error(_ string, _ ...interface{})   {}
func (n *nopLogger) WithRequestID(_ string) Logger      { return n }
func (n *nopLogger) WithFields(_ ...interface{}) Logger { return n }
func (n *nopLogger) SetLevel(_ Level)                   {}
