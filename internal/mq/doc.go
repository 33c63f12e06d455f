// Package mq — транспорт RabbitMQ движка взыскания.
//
// Структура:
//   - connection.go — соединение с автоматическим reconnect и publisher confirms
//   - topology.go   — обменники, очереди и привязки
//   - messages.go   — конверт и payload сообщений
//   - publisher.go  — публикация сообщений
//   - consumer.go   — чтение очереди с ack/nack/DLQ
//
// Топология:
//
//	collector.steps (direct)
//	└── steps.due [due]                  → worker, DLQ dlq.steps
//	collector.notifications (direct)
//	├── notifications.creditor [creditor] ← case.finished
//	└── notifications.debtor [debtor]     ← debtor.notice
//	collector.commands (direct)
//	├── ledger.fees [fees]                ← fee.posted
//	└── bailiff.handovers [handover]      ← bailiff.handover
//	collector.dlq (direct)
//	└── dlq.steps [steps]
package mq
