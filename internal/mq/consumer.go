package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение.
//
// nil — ack. Ошибка, обёрнутая Permanent, — nack без повтора (DLQ).
// Любая другая ошибка — nack с возвратом в очередь.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	ID          string
	Type        MessageType
	Payload     json.RawMessage
	Redelivered bool
}

// permanentError помечает ошибку как неисправимую повтором.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает err как неисправимую: сообщение уйдёт в DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent проверяет, помечена ли ошибка как неисправимая.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue   Queue
	Handler Handler

	// Prefetch — сколько неподтверждённых сообщений держать (default: 1).
	Prefetch int

	Logger *slog.Logger
}

// Consumer читает очередь и передаёт сообщения в Handler.
// После восстановления соединения подписка возобновляется.
type Consumer struct {
	conn     *Connection
	queue    Queue
	handler  Handler
	prefetch int
	logger   *slog.Logger
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, cfg ConsumerConfig) *Consumer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
		logger:   logger.With("queue", cfg.Queue),
	}
}

// Run читает очередь до отмены ctx.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("subscribe failed, waiting for reconnect", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, resubscribing")
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	// ручной ack, не exclusive
	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed")
				return
			}
			c.handle(ctx, raw)
		}
	}
}

// Исход обработки сообщения.
type disposition int

const (
	dispositionAck disposition = iota
	dispositionRequeue
	dispositionReject
)

// dispose решает судьбу сообщения по ошибке обработчика.
func dispose(err error) disposition {
	switch {
	case err == nil:
		return dispositionAck
	case IsPermanent(err):
		return dispositionReject
	default:
		return dispositionRequeue
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	d, err := decode(raw.Body)
	if err != nil {
		c.logger.Error("malformed message", "error", err, "body", string(raw.Body))
		_ = raw.Nack(false, false)
		return
	}
	d.Redelivered = raw.Redelivered

	err = c.handler(ctx, d)

	switch dispose(err) {
	case dispositionAck:
		_ = raw.Ack(false)
	case dispositionReject:
		c.logger.Error("message rejected", "message_id", d.ID, "type", d.Type, "error", err)
		_ = raw.Nack(false, false)
	case dispositionRequeue:
		c.logger.Warn("handler failed, requeueing", "message_id", d.ID, "type", d.Type, "error", err)
		_ = raw.Nack(false, true)
	}
}

// decode разбирает конверт сообщения.
func decode(body []byte) (*Delivery, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return nil, errors.New("message without type")
	}
	return &Delivery{
		ID:      env.ID,
		Type:    env.Type,
		Payload: env.Payload,
	}, nil
}
