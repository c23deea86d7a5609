// Package queue publishes inventory events to RabbitMQ and consumes the
// booking.confirmed queue into logs/booking.log.
package queue

import (
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// EventMessage is the wire payload of every inventory event.  It carries
// enough for downstream consumers to log, notify or feed analytics
// without querying the inventory.  Owner tokens are never published.
type EventMessage struct {
	Type        string   `json:"type"`
	ScreeningID string   `json:"screening_id"`
	HoldID      string   `json:"hold_id,omitempty"`
	BookingID   string   `json:"booking_id,omitempty"`
	Actor       string   `json:"actor,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Seats       []string `json:"seats"`
	SeatRemain  int      `json:"seat_remain"`
	OccurredAt  string   `json:"occurred_at"`
}

// NewEventMessage converts a domain event into its wire form.
func NewEventMessage(ev model.Event) EventMessage {
	seats := ev.SeatIDs
	if seats == nil {
		seats = []string{}
	}
	return EventMessage{
		Type:        string(ev.Type),
		ScreeningID: ev.ScreeningID,
		HoldID:      ev.HoldID,
		BookingID:   ev.BookingID,
		Actor:       ev.Actor,
		Reason:      ev.Reason,
		Seats:       seats,
		SeatRemain:  ev.SeatRemain,
		OccurredAt:  ev.At.UTC().Format(time.RFC3339Nano),
	}
}

// QueueName is the durable queue an event type is routed to.  Queues
// are named after the event type, e.g. booking.confirmed.
func QueueName(t model.EventType) string { return string(t) }
