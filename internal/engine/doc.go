// Package engine содержит движок планирования и выполнения шагов взыскания.
//
// Включает:
//   - engine.go     — Engine, Perform/PerformIfDue, переходы шага
//   - actionset.go  — ActionSet: выполнение действий и пересчёт времени шага
//   - schedule.go   — планирование преемников, создание шагов, сохранение
//   - interfaces.go — зависимости движка (репозитории, каталог, исполнители)
//
// Выполнение шага:
//
//	unperformed ──perform──► performed
//	     │
//	     ├─ дело не open/finished → +1 рабочий день
//	     ├─ финальный этап без пристава → уведомление кредитора, дело finished, +1 день
//	     └─ действие не выполнено → остаётся unperformed до следующего прохода
//
// Каждое сохранение шага проходит через календарь рабочих дней,
// поэтому ScheduledAt никогда не попадает на выходной или праздник.
//
// Использование:
//
//	eng := engine.New(engine.Config{
//	    Steps:      stepRepo,
//	    Actions:    actionRepo,
//	    Cases:      caseRepo,
//	    Templates:  catalog,
//	    Performers: registry,
//	    Notifier:   notifier,
//	    Tx:         store,
//	    Logger:     logger,
//	})
//
//	report, err := eng.PerformIfDue(ctx, stepID)
package engine
