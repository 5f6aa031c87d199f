package eventsim

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// EventType is the category label of a synthetic event.
type EventType string

// The closed set of event types.
const (
	EventTypePurchase EventType = "purchase"
	EventTypeView     EventType = "view"
	EventTypeClick    EventType = "click"
	EventTypeLogin    EventType = "login"
)

// Bounds of the generated event value.
const (
	MinValue = 1.0
	MaxValue = 1000.0
)

var eventTypes = []EventType{EventTypePurchase, EventTypeView, EventTypeClick, EventTypeLogin}

// EventTypes returns all valid event types.
func EventTypes() []EventType {
	return slices.Clone(eventTypes)
}

// IsValid reports whether t belongs to the fixed label set.
func (t EventType) IsValid() bool {
	return slices.Contains(eventTypes, t)
}

func (t EventType) String() string {
	return string(t)
}

// Event is one synthetic record representing a business action, persisted as one row.
// ID is assigned by the database and is zero for events that were not read back from it.
type Event struct {
	ID        int64     `db:"id"`
	EventType EventType `db:"event_type"`
	Value     float64   `db:"value"`
	CreatedAt int64     `db:"created_at"` // epoch milliseconds
}

// CreatedAtTime returns CreatedAt as a time.Time.
func (e Event) CreatedAtTime() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// Validate checks the event type, the value range and the value precision.
func (e Event) Validate() error {
	if !e.EventType.IsValid() {
		return errors.Join(ErrInvalidEventType, fmt.Errorf("got %q", e.EventType))
	}

	if e.Value < MinValue || e.Value > MaxValue {
		return errors.Join(ErrValueOutOfRange, fmt.Errorf("got %v, want [%v, %v]", e.Value, MinValue, MaxValue))
	}

	if RoundValue(e.Value) != e.Value {
		return errors.Join(ErrValuePrecision, fmt.Errorf("got %v", e.Value))
	}

	return nil
}

// RoundValue rounds v to two decimal places.
func RoundValue(v float64) float64 {
	return math.Round(v*100) / 100
}
