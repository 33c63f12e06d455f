package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/telemetry"
)

// RequestIDHeader — заголовок с ID запроса.
const RequestIDHeader = "X-Request-ID"

// Middleware оборачивает http.Handler.
type Middleware func(http.Handler) http.Handler

// wrap применяет middleware так, что первый оказывается внешним.
func wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type requestIDKey struct{}

// RequestIDFrom возвращает ID запроса из контекста ("" если нет).
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID принимает X-Request-ID клиента или выдаёт новый
// и возвращает его в ответе.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// Logging кладёт в контекст логгер запроса с request_id и ID дела
// или шага из пути, логирует итог и пишет метрики по шаблону маршрута.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := resourceLogger(logger.With(
				"request_id", RequestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			), r)
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r.WithContext(telemetry.WithLogger(r.Context(), reqLogger)))

			elapsed := time.Since(start)
			telemetry.HTTPRequests.WithLabelValues(r.Pattern, strconv.Itoa(rw.status)).Inc()
			telemetry.HTTPDuration.WithLabelValues(r.Pattern).Observe(elapsed.Seconds())

			level := slog.LevelInfo
			if rw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			reqLogger.Log(r.Context(), level, "http request",
				"status", rw.status,
				"duration", elapsed,
			)
		})
	}
}

// resourceLogger добавляет step_id или case_id по {id} в пути.
// Дело может быть указано номером, тогда пишется case_ref.
func resourceLogger(logger *slog.Logger, r *http.Request) *slog.Logger {
	raw := r.PathValue("id")
	if raw == "" {
		return logger
	}
	id, err := uuid.Parse(raw)
	switch {
	case strings.Contains(r.Pattern, "/steps/{id}"):
		if err == nil {
			return telemetry.WithStepID(logger, id)
		}
	case err == nil:
		return telemetry.WithCaseID(logger, id)
	default:
		return logger.With("case_ref", raw)
	}
	return logger
}

// Recovery превращает панику обработчика в 500. Логирует через логгер
// запроса, если он есть, иначе через logger.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					telemetry.FromContextOr(r.Context(), logger).Error("panic recovered", "panic", p, "stack", string(debug.Stack()))
					Error(w, r, http.StatusInternalServerError, CodeInternal, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder запоминает код ответа.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
