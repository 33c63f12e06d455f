// Package worker выполняет шаги взыскания из очереди steps.due.
//
// Каждое сообщение — одна единица работы: Engine.PerformIfDue
// в собственной транзакции. Повторная доставка безопасна: шаг,
// уже выполненный или перенесённый, пропускается под блокировкой.
//
// Без брокера worker работает в режиме polling: раз в PollInterval
// выбирает шаги, время которых наступило, и выполняет их сам.
//
// Использование:
//
//	w := worker.New(worker.Config{
//	    Performer: eng,
//	    Steps:     stepRepo,
//	    Conn:      conn, // nil — polling
//	    Logger:    logger,
//	})
//	w.Start(ctx)
//	defer w.Stop()
package worker
