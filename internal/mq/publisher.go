package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConfirmed — брокер отклонил публикацию (nack).
var ErrNotConfirmed = errors.New("publish not confirmed by broker")

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
		now:    time.Now,
	}
}

// Publish публикует сообщение в exchange с ключом routingKey.
//
// Сообщения персистентные. Если соединение открыто с Confirm,
// Publish ждёт подтверждения брокера.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		string(exchange),
		string(routingKey),
		true,  // mandatory: без подходящей очереди сообщение вернётся
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	// confirm == nil, если канал не в режиме подтверждений
	if confirm != nil {
		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("wait confirm %s: %w", msg.ID, err)
		}
		if !acked {
			return fmt.Errorf("%w: %s", ErrNotConfirmed, msg.ID)
		}
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// publish оборачивает payload в конверт и публикует его.
func (p *Publisher) publish(ctx context.Context, exchange Exchange, key RoutingKey, msgType MessageType, payload any) error {
	return p.Publish(ctx, exchange, key, &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: p.now(),
	})
}

// PublishStepDue сообщает worker'ам, что шаг пора выполнять.
func (p *Publisher) PublishStepDue(ctx context.Context, payload StepDuePayload) error {
	return p.publish(ctx, ExchangeSteps, RoutingKeyDue, MessageTypeStepDue, payload)
}

// PublishCaseFinished уведомляет кредитора о завершении дела.
func (p *Publisher) PublishCaseFinished(ctx context.Context, payload CaseFinishedPayload) error {
	return p.publish(ctx, ExchangeNotifications, RoutingKeyCreditor, MessageTypeCaseFinished, payload)
}

// PublishDebtorNotice отправляет письмо должнику.
func (p *Publisher) PublishDebtorNotice(ctx context.Context, payload DebtorNoticePayload) error {
	return p.publish(ctx, ExchangeNotifications, RoutingKeyDebtor, MessageTypeDebtorNotice, payload)
}

// PublishFeePosted передаёт начисление в бухгалтерию.
func (p *Publisher) PublishFeePosted(ctx context.Context, payload FeePostedPayload) error {
	return p.publish(ctx, ExchangeCommands, RoutingKeyFees, MessageTypeFeePosted, payload)
}

// PublishBailiffHandover передаёт дело приставу.
func (p *Publisher) PublishBailiffHandover(ctx context.Context, payload BailiffHandoverPayload) error {
	return p.publish(ctx, ExchangeCommands, RoutingKeyHandover, MessageTypeBailiffHandover, payload)
}
