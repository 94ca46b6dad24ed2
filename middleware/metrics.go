package middleware

import (
	"context"

	"github.com/hedeqiang/tokenwatch/metrics"
	"github.com/hedeqiang/tokenwatch/notify"
)

// Metrics counts delivered and failed notifications by direction.
type Metrics struct{}

// NewMetrics creates a metrics collection middleware.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Wrap decorates the handler with metrics collection.
func (m *Metrics) Wrap(next Handler) Handler {
	return func(ctx context.Context, n notify.Notification) error {
		err := next(ctx, n)
		if err != nil {
			metrics.NotifyFailed.WithLabelValues(string(n.Direction)).Inc()
		} else {
			metrics.NotifySent.WithLabelValues(string(n.Direction)).Inc()
		}
		return err
	}
}
