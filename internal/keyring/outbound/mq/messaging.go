package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/authhelper/internal/keyring/usecase"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"github.com/shandysiswandi/authhelper/internal/pkg/messaging"
	"github.com/shandysiswandi/authhelper/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishCredentialCreated(ctx context.Context, msg usecase.CredentialCreatedEvent) error {
	return m.publish(ctx, "PublishCredentialCreated", event.CredentialCreatedDestination, msg.Name, event.CredentialCreatedMessage{
		ID:        msg.ID,
		Name:      msg.Name,
		Kind:      msg.Kind.String(),
		Issuer:    msg.Issuer,
		Source:    msg.Source.String(),
		CreatedAt: msg.CreatedAt.UnixMilli(),
	})
}

func (m *Messaging) PublishCredentialDeleted(ctx context.Context, msg usecase.CredentialDeletedEvent) error {
	return m.publish(ctx, "PublishCredentialDeleted", event.CredentialDeletedDestination, msg.Name, event.CredentialDeletedMessage{
		ID:        msg.ID,
		Name:      msg.Name,
		DeletedAt: msg.DeletedAt.UnixMilli(),
	})
}

func (m *Messaging) PublishCounterAdvanced(ctx context.Context, msg usecase.CounterAdvancedEvent) error {
	return m.publish(ctx, "PublishCounterAdvanced", event.CredentialCounterAdvancedDestination, msg.Name, event.CredentialCounterAdvancedMessage{
		ID:         msg.ID,
		Name:       msg.Name,
		From:       msg.From,
		To:         msg.To,
		Reason:     msg.Reason,
		AdvancedAt: msg.AdvancedAt.UnixMilli(),
	})
}

// publish keys every message by credential name so brokers that support
// ordering keep one credential's events in order.
func (m *Messaging) publish(ctx context.Context, op, destination, name string, payload any) error {
	ctx, span := m.ins.Tracer("keyring.outbound.mq").Start(ctx, op)
	defer span.End()

	span.SetAttributes(attribute.String("messaging.destination.name", destination))

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, destination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(name),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
