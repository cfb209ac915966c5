package alert

import (
	"context"
	"errors"
	"time"

	"QuoteSentinel/internal/model"
)

// Validation and lookup errors.
var (
	ErrInvalidThreshold = errors.New("threshold must be a finite non-negative number")
	ErrUnknownCondition = errors.New("unknown condition")
	ErrInvalidSymbol    = errors.New("symbol is required")
	ErrInvalidOwner     = errors.New("owner is required")
	ErrNotFound         = errors.New("alert not found")
)

// IsValidation reports whether err was caused by invalid alert input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidThreshold) ||
		errors.Is(err, ErrUnknownCondition) ||
		errors.Is(err, ErrInvalidSymbol) ||
		errors.Is(err, ErrInvalidOwner)
}

// Store persists alerts. Implementations return ErrNotFound for unknown ids.
//
//go:generate mockgen -package=alert_test -destination=mock_store_test.go -source=store.go Store
type Store interface {
	Create(ctx context.Context, a model.Alert) error
	List(ctx context.Context) ([]model.Alert, error)
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	MarkTriggered(ctx context.Context, id string, at time.Time) error
}
