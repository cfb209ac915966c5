package model

import (
	"fmt"
	"strings"
	"time"
)

// Condition is the direction of a price alert.
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// ParseCondition parses "above" or "below" (case-insensitive).
func ParseCondition(s string) (Condition, error) {
	switch Condition(strings.ToLower(strings.TrimSpace(s))) {
	case ConditionAbove:
		return ConditionAbove, nil
	case ConditionBelow:
		return ConditionBelow, nil
	default:
		return "", fmt.Errorf("unknown condition %q", s)
	}
}

// Reached reports whether price reaches threshold in this direction.
// Equality counts for both directions.
func (c Condition) Reached(price, threshold float64) bool {
	switch c {
	case ConditionAbove:
		return price >= threshold
	case ConditionBelow:
		return price <= threshold
	default:
		return false
	}
}

// Alert is a user-defined price threshold alert.
type Alert struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Symbol         string     `json:"symbol"`
	Condition      Condition  `json:"condition"`
	ThresholdPrice float64    `json:"threshold_price"`
	Description    string     `json:"description,omitempty"`
	Enabled        bool       `json:"enabled"`
	Triggered      bool       `json:"triggered"`
	CreatedAt      time.Time  `json:"created_at"`
	TriggeredAt    *time.Time `json:"triggered_at"`
}

// Pending reports whether the alert still takes part in evaluation.
func (a Alert) Pending() bool { return a.Enabled && !a.Triggered }

// AlertEvent is emitted once when an alert transitions to triggered.
type AlertEvent struct {
	Alert       Alert     `json:"alert"`
	Quote       Quote     `json:"quote"`
	TriggeredAt time.Time `json:"triggered_at"`
}
