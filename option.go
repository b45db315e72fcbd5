package payments

import (
	"github.com/vitwit/payments/events"
	"github.com/vitwit/payments/fees"
	"github.com/vitwit/payments/logger"
	"github.com/vitwit/payments/metrics"
	"github.com/vitwit/payments/scheduler"
	"github.com/vitwit/payments/store"
)

type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = r
	}
}

func WithStore(s store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

func WithScheduler(s scheduler.Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

func WithFeeHandler(h fees.Handler) Option {
	return func(e *Engine) {
		e.fees = h
	}
}

func WithResolver(r DisputeResolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

func WithEventSink(s events.Sink) Option {
	return func(e *Engine) {
		e.events = s
	}
}
