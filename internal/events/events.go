// Package events carries what a committed call produced out of the engine:
// attribute events for observers and transfer instructions for the token
// layer.
package events

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"plinko/internal/money"
)

// Attribute is one key/value pair on an event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event describes one state change. Attributes keep insertion order.
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Action     string      `json:"action"`
	Height     uint64      `json:"height"`
	Time       time.Time   `json:"time"`
	Attributes []Attribute `json:"attributes"`
}

// New starts an event whose first attribute is action.
func New(action string, height uint64, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Action:     action,
		Height:     height,
		Time:       at,
		Attributes: []Attribute{{Key: "action", Value: action}},
	}
}

// With appends an attribute.
func (e Event) With(key, value string) Event {
	e.Attributes = append(slices.Clip(e.Attributes), Attribute{Key: key, Value: value})
	return e
}

// Attr returns the first attribute named key.
func (e Event) Attr(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Transfer instructs the token layer to pay Recipient.
type Transfer struct {
	Recipient string       `json:"recipient"`
	Denom     string       `json:"denom"`
	Amount    money.Amount `json:"amount"`
}

// Publisher delivers committed events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// TransferSink executes payouts after commit.
type TransferSink interface {
	Deliver(ctx context.Context, transfers []Transfer) error
}

// Noop discards everything.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error        { return nil }
func (Noop) Deliver(context.Context, []Transfer) error { return nil }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Outbox holds what one call produced until its transaction commits.
type Outbox struct {
	Events    []Event
	Transfers []Transfer
}

func (o *Outbox) Emit(e Event) {
	o.Events = append(o.Events, e)
}

func (o *Outbox) Pay(t Transfer) {
	o.Transfers = append(o.Transfers, t)
}

// Flush hands everything to pub and sink, then empties the outbox.
// Publishing failures are only logged. Delivery failures are returned.
func (o *Outbox) Flush(ctx context.Context, pub Publisher, sink TransferSink) error {
	for _, e := range o.Events {
		if err := pub.Publish(ctx, e); err != nil {
			log.WithFields(log.Fields{
				"component": "events",
				"action":    e.Action,
				"eventId":   e.ID,
				"error":     err,
			}).Error("failed to publish event during flush")
		}
	}

	var err error
	if len(o.Transfers) > 0 {
		err = sink.Deliver(ctx, o.Transfers)
	}
	o.Discard()
	return err
}

// Discard drops everything pending.
func (o *Outbox) Discard() {
	o.Events = nil
	o.Transfers = nil
}
