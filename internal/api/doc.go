// Package api содержит HTTP API оператора.
//
// Структура:
//   - handler.go       — Handler с DI (репозитории, движок, каталог, logger)
//   - routes.go        — регистрация маршрутов
//   - middleware.go    — middleware (recovery, logging)
//   - response.go      — унифицированные JSON-ответы и обработка ошибок
//   - dto.go           — Data Transfer Objects (request/response)
//   - case_handler.go  — обработчики для /cases
//   - step_handler.go  — обработчики для /steps
//   - info_handler.go  — каталог этапов и календарь
//
// API обслуживается процессом collector-scheduler рядом с /healthz и /metrics.
package api
