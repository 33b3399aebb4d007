package observability

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

// log levels in increasing severity
const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

func parseLevel(s string) int {
	switch s {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// StdoutLogger implements Logger with JSON-formatted lines, one per entry,
// suitable for log aggregation systems.
type StdoutLogger struct {
	fields   Fields
	minLevel int
	logger   *log.Logger
}

// NewStdoutLogger creates a logger writing JSON entries to out.
func NewStdoutLogger(out io.Writer, logLevel string, fields Fields) *StdoutLogger {
	if out == nil {
		out = os.Stdout
	}
	base := make(Fields, len(fields))
	for k, v := range fields {
		base[k] = v
	}
	return &StdoutLogger{
		fields:   base,
		minLevel: parseLevel(logLevel),
		logger:   log.New(out, "", 0),
	}
}

func (l *StdoutLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(levelInfo, "INFO", msg, nil, fields)
}

func (l *StdoutLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(levelWarn, "WARN", msg, nil, fields)
}

func (l *StdoutLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.log(levelError, "ERROR", msg, err, fields)
}

func (l *StdoutLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(levelDebug, "DEBUG", msg, nil, fields)
}

// WithFields returns a new Logger with additional persistent fields.
func (l *StdoutLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &StdoutLogger{
		fields:   merged,
		minLevel: l.minLevel,
		logger:   l.logger,
	}
}

func (l *StdoutLogger) log(level int, levelName, msg string, err error, fields Fields) {
	if level < l.minLevel {
		return
	}

	entry := make(map[string]interface{}, len(l.fields)+len(fields)+4)
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = levelName
	entry["message"] = msg

	for k, v := range l.fields {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}
	if err != nil {
		entry["error"] = err.Error()
	}

	jsonBytes, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		l.logger.Printf("failed to marshal log entry: %v", marshalErr)
		return
	}
	l.logger.Println(string(jsonBytes))
}
