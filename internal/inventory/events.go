package inventory

import (
	"context"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// EventSink receives domain events after the transition they describe
// has been committed.  Publish must not block on the network; it is
// called outside every screening critical section.
type EventSink interface {
	Publish(ctx context.Context, ev model.Event)
}

type nopSink struct{}

func (nopSink) Publish(context.Context, model.Event) {}
