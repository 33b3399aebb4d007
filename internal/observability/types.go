// Package observability provides structured logging and metrics collection
// for the datasheet pipeline.
//
// Core packages depend on the Logger and Metrics interfaces only; the
// concrete adapters (stdout JSON logging, Prometheus metrics) are selected
// by the entrypoint through a Provider.
package observability

import (
	"context"
	"io"
)

// Fields represents structured logging fields as key-value pairs.
// Values must be JSON-serializable.
type Fields map[string]interface{}

// Logger defines the contract for structured logging.
// All methods are context-aware to support correlation across workers.
type Logger interface {
	// Info logs general operational information.
	Info(ctx context.Context, msg string, fields Fields)

	// Warn logs potentially harmful situations that don't prevent operation.
	Warn(ctx context.Context, msg string, fields Fields)

	// Error logs a failure together with the associated error.
	Error(ctx context.Context, msg string, err error, fields Fields)

	// Debug logs detailed information, typically filtered in production.
	Debug(ctx context.Context, msg string, fields Fields)

	// WithFields returns a new Logger that includes the given fields
	// in every subsequent entry.
	WithFields(fields Fields) Logger
}

// Metrics defines the contract for metrics collection. Implementations
// should follow Prometheus naming conventions.
type Metrics interface {
	// RecordSuccess increments the success counter for an operation type.
	RecordSuccess(operation string)

	// RecordError increments the error counter for an operation and
	// error category (e.g. "timeout", "throttled", "invalid_content").
	RecordError(operation string, errorType string)

	// RecordDuration records an operation duration in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordFileSize records the size in bytes of a processed file.
	RecordFileSize(fileType string, bytes int64)

	// StartOperation increments the in-progress gauge for an operation.
	// Must be paired with EndOperation.
	StartOperation(operation string)

	// EndOperation decrements the in-progress gauge for an operation.
	EndOperation(operation string)
}

// Config holds observability configuration for the provider.
type Config struct {
	// ServiceName identifies the service in logs and metric names.
	ServiceName string

	// Environment is the deployment environment (development, production).
	Environment string

	// LogLevel is the minimum level to emit: debug, info, warn, error.
	LogLevel string

	// LogOutput is where log lines are written. Defaults to os.Stdout.
	LogOutput io.Writer

	// AdditionalFields are included in every log entry.
	AdditionalFields Fields
}

// Provider manages Logger and Metrics instances per component.
type Provider interface {
	// Logger returns a Logger scoped to the named component.
	Logger(component string) Logger

	// Metrics returns a Metrics instance scoped to the named component.
	Metrics(component string) Metrics

	// Close releases provider resources.
	Close() error
}
