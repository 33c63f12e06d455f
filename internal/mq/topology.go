package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Обменники.
const (
	// ExchangeSteps — шаги, готовые к выполнению.
	ExchangeSteps Exchange = "collector.steps"

	// ExchangeNotifications — уведомления кредитору и должнику.
	ExchangeNotifications Exchange = "collector.notifications"

	// ExchangeCommands — команды внешним системам (бухгалтерия, пристав).
	ExchangeCommands Exchange = "collector.commands"

	// ExchangeDLQ — недоставляемые сообщения.
	ExchangeDLQ Exchange = "collector.dlq"
)

// Очереди.
const (
	QueueStepsDue             Queue = "steps.due"
	QueueNotificationCreditor Queue = "notifications.creditor"
	QueueNotificationDebtor   Queue = "notifications.debtor"
	QueueLedgerFees           Queue = "ledger.fees"
	QueueBailiffHandovers     Queue = "bailiff.handovers"
	QueueDLQSteps             Queue = "dlq.steps"
)

// Ключи маршрутизации.
const (
	RoutingKeyDue      RoutingKey = "due"
	RoutingKeyCreditor RoutingKey = "creditor"
	RoutingKeyDebtor   RoutingKey = "debtor"
	RoutingKeyFees     RoutingKey = "fees"
	RoutingKeyHandover RoutingKey = "handover"
	RoutingKeyDLQSteps RoutingKey = "steps"
)

// Binding — очередь, её обменник и ключ.
type Binding struct {
	Queue      Queue
	Exchange   Exchange
	RoutingKey RoutingKey

	// DeadLetter — отправлять отклонённые сообщения в DLQ.
	DeadLetter bool
}

// Topology — полная схема брокера.
var Topology = []Binding{
	{QueueStepsDue, ExchangeSteps, RoutingKeyDue, true},
	{QueueNotificationCreditor, ExchangeNotifications, RoutingKeyCreditor, false},
	{QueueNotificationDebtor, ExchangeNotifications, RoutingKeyDebtor, false},
	{QueueLedgerFees, ExchangeCommands, RoutingKeyFees, false},
	{QueueBailiffHandovers, ExchangeCommands, RoutingKeyHandover, false},
	{QueueDLQSteps, ExchangeDLQ, RoutingKeyDLQSteps, false},
}

// Declare объявляет обменники, очереди и привязки. Операция идемпотентна.
func Declare(conn *Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	return declare(ch)
}

func declare(ch *amqp.Channel) error {
	for _, ex := range exchanges() {
		// durable, не auto-delete, не internal, с ожиданием ответа
		if err := ch.ExchangeDeclare(string(ex), amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	for _, b := range Topology {
		if _, err := ch.QueueDeclare(string(b.Queue), true, false, false, false, queueArgs(b)); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.Queue, err)
		}
		if err := ch.QueueBind(string(b.Queue), string(b.RoutingKey), string(b.Exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.Queue, b.Exchange, err)
		}
	}
	return nil
}

// exchanges возвращает обменники топологии без повторов.
func exchanges() []Exchange {
	var out []Exchange
	seen := make(map[Exchange]bool)
	for _, b := range Topology {
		if !seen[b.Exchange] {
			seen[b.Exchange] = true
			out = append(out, b.Exchange)
		}
	}
	return out
}

func queueArgs(b Binding) amqp.Table {
	if !b.DeadLetter {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQSteps),
	}
}
