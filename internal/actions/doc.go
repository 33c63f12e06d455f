// Package actions содержит исполнителей действий шагов взыскания.
//
// Registry реализует engine.Performers: по типу действия находит
// исполнителя, решает, выполнимо ли действие для дела, и выполняет
// его с таймаутом. Исход переводится в domain.ActionResult:
//
//	nil                          → succeeded
//	ErrIndeterminate / таймаут   → indeterminate (действие остаётся unperformed)
//	любая другая ошибка          → failed
//
// Исполнители публикуют команды внешним системам через RabbitMQ
// (письма должнику, начисления, передача приставу). CaseNotifier
// реализует engine.Notifier.
package actions
