package history

import (
	"context"
	"time"
)

// EventType defines the kind of connection lifecycle event.
type EventType string

const (
	EventConnect    EventType = "connect"
	EventDisconnect EventType = "disconnect"
	EventCleanup    EventType = "cleanup"
	EventHeal       EventType = "heal"
	EventRotate     EventType = "rotate"
	EventEnforce    EventType = "enforce"
)

// Event is one audit record. It is append-only observability output; the
// supervisor never reads events back to rebuild state.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Label      string    `json:"label,omitempty"`
	Protocol   string    `json:"protocol,omitempty"`
	PID        int       `json:"pid,omitempty"`
	Killed     int       `json:"killed,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
