package observability

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// provider is the default Provider implementation. It hands out stdout
// loggers scoped per component and a single shared Prometheus metrics
// instance. Repeated calls for the same component return the same logger.
type provider struct {
	mu      sync.Mutex
	cfg     Config
	metrics *PrometheusMetrics
	loggers map[string]Logger
}

// NewProvider creates a Provider from the given configuration. The metrics
// instance registers itself with reg (or the default registry when nil).
func NewProvider(cfg Config, reg prometheus.Registerer) Provider {
	return &provider{
		cfg:     cfg,
		metrics: NewPrometheusMetrics(cfg.ServiceName, reg),
		loggers: make(map[string]Logger),
	}
}

func (p *provider) Logger(component string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.loggers[component]; ok {
		return l
	}

	fields := Fields{
		"service":     p.cfg.ServiceName,
		"environment": p.cfg.Environment,
		"component":   component,
	}
	for k, v := range p.cfg.AdditionalFields {
		fields[k] = v
	}

	l := NewStdoutLogger(p.cfg.LogOutput, p.cfg.LogLevel, fields)
	p.loggers[component] = l
	return l
}

func (p *provider) Metrics(component string) Metrics {
	return p.metrics
}

func (p *provider) Close() error {
	return nil
}

// NopLogger discards all entries. Useful in tests.
type NopLogger struct{}

func (NopLogger) Info(ctx context.Context, msg string, fields Fields)             {}
func (NopLogger) Warn(ctx context.Context, msg string, fields Fields)             {}
func (NopLogger) Error(ctx context.Context, msg string, err error, fields Fields) {}
func (NopLogger) Debug(ctx context.Context, msg string, fields Fields)            {}
func (NopLogger) WithFields(fields Fields) Logger                                 { return NopLogger{} }

// NopMetrics discards all observations. Useful in tests.
type NopMetrics struct{}

func (NopMetrics) RecordSuccess(operation string)                   {}
func (NopMetrics) RecordError(operation string, errorType string)   {}
func (NopMetrics) RecordDuration(operation string, seconds float64) {}
func (NopMetrics) RecordFileSize(fileType string, bytes int64)      {}
func (NopMetrics) StartOperation(operation string)                  {}
func (NopMetrics) EndOperation(operation string)                    {}
