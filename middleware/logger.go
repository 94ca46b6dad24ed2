package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/hedeqiang/tokenwatch/notify"
)

// Logger logs each delivery attempt and its outcome.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a logging middleware using the provided logger.
// If logger is nil, slog.Default is used.
func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{logger: l.With("component", "dispatch")}
}

// Wrap decorates the handler with delivery logging.
func (l *Logger) Wrap(next Handler) Handler {
	return func(ctx context.Context, n notify.Notification) error {
		start := time.Now()
		err := next(ctx, n)
		attrs := []any{
			"subscriber", n.SubscriberID,
			"direction", n.Direction,
			"block", n.BlockNumber,
			"tx", n.TxHash.Hex(),
			"log_index", n.LogIndex,
			"elapsed", time.Since(start),
		}
		if err != nil {
			l.logger.Warn("notification failed", append(attrs, "error", err)...)
			return err
		}
		l.logger.Debug("notification sent", attrs...)
		return nil
	}
}
