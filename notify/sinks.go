package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Func adapts a function to a Sink.
type Func func(ctx context.Context, n Notification) error

// Send calls f.
func (f Func) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Log writes notifications to a slog logger instead of delivering them.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a logging sink.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "notify")}
}

// Send logs n at info level.
func (l *Log) Send(_ context.Context, n Notification) error {
	l.logger.Info("alert",
		"subscriber", n.SubscriberID,
		"direction", n.Direction,
		"watched", n.Watched.Hex(),
		"counterparty", n.Counterparty.Hex(),
		"block", n.BlockNumber,
		"tx", n.TxHash.Hex(),
		"text", n.Text,
	)
	return nil
}

// Multi fans a notification out to several sinks. Every sink is tried;
// failures are joined.
type Multi []Sink

// Send delivers n to every sink.
func (m Multi) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	err := errors.Join(errs...)
	if !errors.Is(err, ErrDispatch) {
		err = fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	return err
}
