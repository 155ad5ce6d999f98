package mq

import (
	"context"
	"encoding/json"

	"github.com/gatekeyhq/gatekey/internal/pkg/instrument"
	"github.com/gatekeyhq/gatekey/internal/pkg/messaging"
	"github.com/gatekeyhq/gatekey/internal/shared/event"
	"github.com/gatekeyhq/gatekey/internal/twofactor/usecase"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) publish(ctx context.Context, name, destination string, payload any) error {
	ctx, span := m.ins.Tracer("twofactor.outbound.mq").Start(ctx, name)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, destination, messaging.OutgoingMessage{
		Body:    body,
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (m *Messaging) PublishEnabled(ctx context.Context, msg usecase.EnabledEvent) error {
	return m.publish(ctx, "PublishEnabled", event.TwoFactorEnabledDestination,
		event.TwoFactorEnabledMessage{UserID: msg.UserID})
}

func (m *Messaging) PublishDisabled(ctx context.Context, msg usecase.DisabledEvent) error {
	return m.publish(ctx, "PublishDisabled", event.TwoFactorDisabledDestination,
		event.TwoFactorDisabledMessage{UserID: msg.UserID})
}

func (m *Messaging) PublishPhoneVerified(ctx context.Context, msg usecase.PhoneVerifiedEvent) error {
	return m.publish(ctx, "PublishPhoneVerified", event.TwoFactorPhoneVerifiedDestination,
		event.TwoFactorPhoneVerifiedMessage{UserID: msg.UserID})
}
