package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher sends events to <prefix>.events.<action> and transfer
// batches to <prefix>.transfers.
type NATSPublisher struct {
	conn   natsConn
	prefix string
}

// ConnectNATS dials url with the reconnect policy used by the other services
// on the bus.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).WithField("component", "nats").Error("NATS disconnected with error")
			} else {
				log.WithField("component", "nats").Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.WithField("component", "nats").Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.WithFields(log.Fields{"component": "nats", "url": url}).Info("connected to NATS")
	return nc, nil
}

func NewNATSPublisher(conn natsConn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "plinko"
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

func (p *NATSPublisher) EventSubject(action string) string {
	return p.prefix + ".events." + action
}

func (p *NATSPublisher) TransferSubject() string {
	return p.prefix + ".transfers"
}

func (p *NATSPublisher) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.EventSubject(event.Action)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"component": "nats",
		"eventId":   event.ID,
		"subject":   subject,
	}).Debug("published event")
	return nil
}

func (p *NATSPublisher) Deliver(_ context.Context, transfers []Transfer) error {
	payload, err := json.Marshal(transfers)
	if err != nil {
		return fmt.Errorf("failed to marshal transfers: %w", err)
	}
	if err := p.conn.Publish(p.TransferSubject(), payload); err != nil {
		return fmt.Errorf("failed to publish transfers to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"component": "nats",
		"count":     len(transfers),
	}).Info("queued transfers")
	return nil
}
