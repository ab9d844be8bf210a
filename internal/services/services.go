// Package services holds the ledger's use cases. HTTP handlers and
// commands call services; services validate input, talk to storage and
// announce changes on the event bus.
package services

import (
	"context"
	"time"

	"taxledger/internal/amqp"
	"taxledger/internal/log"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	Publish(ctx context.Context, evt amqp.Event) error
}

// SummaryInvalidator drops derived per-user views after a write.
type SummaryInvalidator interface {
	Invalidate(userID int64)
}

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// publish sends an event without failing the caller. The write it
// describes has already been committed.
func publish(ctx context.Context, logger *log.Logger, pub EventPublisher, typ amqp.EventType, userID int64, payload any) {
	if pub == nil {
		return
	}
	evt, err := amqp.NewEvent(typ, userID, payload)
	if err == nil {
		err = pub.Publish(ctx, evt)
	}
	if err != nil {
		logger.WarnContext(ctx, "Failed to publish event",
			"event_type", typ,
			log.FieldUserID, userID,
			log.FieldError, err)
	}
}
