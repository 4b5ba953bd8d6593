package store

import "log/slog"

// Option configures a Store or one of its components.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *Metrics
	runner  Runner
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics sink. Default: none.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithRunner sets how maintenance is scheduled. Default: Inline.
func WithRunner(r Runner) Option {
	return func(o *options) {
		o.runner = r
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.runner == nil {
		o.runner = Inline{}
	}
	return o
}
