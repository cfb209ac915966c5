package notifier

import (
	"context"

	"QuoteSentinel/internal/model"
)

// Sink delivers alert-triggered events.
//
//go:generate mockgen -package=alert_test -destination=../alert/mock_sink_test.go -source=sink.go Sink
type Sink interface {
	Name() string
	Notify(ctx context.Context, evt model.AlertEvent) error
}
