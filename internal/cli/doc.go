// Package cli реализует инструмент командной строки Collector.
//
// # Обзор
//
// CLI — утилита оператора: работает напрямую с БД и брокером через
// те же компоненты, что и сервисы (internal/app). Конфигурация
// читается из окружения и .env, как у scheduler и worker.
//
// # Ключевые компоненты
//
// ## Runtime
//
// Лениво загружает конфигурацию и поднимает сервисы только для команд,
// которым нужна БД. Команды calendar и template работают без БД.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: collector step list 2024-00017 --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - case: create, show, pause, resume, paid
//   - step: list, perform, schedule-next, start, adhoc
//   - tick: один проход диспетчера
//   - calendar: adjust, check
//   - template: list, check
//   - migrate
//
// Каждая группа создаётся через фабричную функцию (NewCaseCmd и т.д.),
// принимающую Runtime и outputFn — замыкание для ленивого создания
// Output после парсинга PersistentFlags.
package cli
