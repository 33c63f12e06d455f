// Package scheduler — диспетчер шагов взыскания.
//
// Проход (Tick) выбирает шаги, время которых наступило, и публикует
// по сообщению step.due на каждый. Если брокер недоступен, шаг
// выполняется на месте через Engine.PerformIfDue.
//
// Структура:
//   - scheduler.go — Scheduler.Tick: выборка и передача шагов
//   - cron.go      — расписание проходов (cron + часовой пояс)
//   - runner.go    — цикл проходов по расписанию
//   - leader.go    — выбор лидера через pg_try_advisory_lock
//   - redis_leader.go — выбор лидера через ключ Redis с TTL (REDIS_URL)
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Steps:     stepRepo,
//	    Publisher: publisher, // опционально
//	    Performer: eng,
//	    Logger:    logger,
//	})
//
//	schedule, _ := scheduler.ParseSchedule("*/5 * * * *", amsterdam)
//	runner := scheduler.NewRunner(scheduler.RunnerConfig{
//	    Scheduler: sched,
//	    Schedule:  schedule,
//	    Lock:      scheduler.NewPgLeader(pool, scheduler.LockKey),
//	})
//	runner.Run(ctx)
//
// Проход выполняет только лидер, поэтому несколько экземпляров
// scheduler не дублируют работу.
package scheduler
