package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Collector/internal/catalog"
	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/engine"
	"github.com/shaiso/Collector/internal/repo"
	"github.com/shaiso/Collector/internal/telemetry"
)

// ErrorCode — машинно-читаемый код ошибки в теле ответа.
type ErrorCode string

const (
	CodeBadRequest          ErrorCode = "BAD_REQUEST"
	CodeCaseNotFound        ErrorCode = "CASE_NOT_FOUND"
	CodeStepNotFound        ErrorCode = "STEP_NOT_FOUND"
	CodeUnknownTemplate     ErrorCode = "UNKNOWN_TEMPLATE"
	CodeStepPerformed       ErrorCode = "STEP_ALREADY_PERFORMED"
	CodeStepExists          ErrorCode = "STEP_EXISTS"
	CodeValidation          ErrorCode = "VALIDATION_FAILED"
	CodeNotifierUnavailable ErrorCode = "NOTIFIER_UNAVAILABLE"
	CodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — код, сообщение и ID запроса для поиска в логах.
type ErrorDetail struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// DataResponse — тело успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — тело ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// errorRules сопоставляют ошибки хранилища, каталога и движка
// со статусом ответа. Проверяются по порядку.
var errorRules = []struct {
	target error
	status int
	code   ErrorCode
}{
	{catalog.ErrTemplateNotFound, http.StatusBadRequest, CodeUnknownTemplate},
	{engine.ErrStepPerformed, http.StatusConflict, CodeStepPerformed},
	{repo.ErrAlreadyExists, http.StatusConflict, CodeStepExists},
	{domain.ErrValidation, http.StatusUnprocessableEntity, CodeValidation},
	{engine.ErrNoNotifier, http.StatusUnprocessableEntity, CodeNotifierUnavailable},
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Success отвечает 200 с данными.
func Success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отвечает 201 с созданным ресурсом.
func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, DataResponse{Data: data})
}

// List отвечает 200 со списком и его длиной.
func List(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отвечает ошибкой с кодом и ID запроса.
func Error(w http.ResponseWriter, r *http.Request, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFrom(r.Context()),
	}})
}

// BadRequest отвечает 400 на некорректный запрос.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, CodeBadRequest, message)
}

// HandleError пишет ответ для ошибки err. repo.ErrNotFound становится
// 404 с кодом notFound, неизвестные ошибки логируются и отдаются как 500.
// Возвращает false, если err == nil.
func HandleError(w http.ResponseWriter, r *http.Request, err error, notFound ErrorCode) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, repo.ErrNotFound) {
		Error(w, r, http.StatusNotFound, notFound, notFoundMessage(notFound))
		return true
	}
	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			Error(w, r, rule.status, rule.code, err.Error())
			return true
		}
	}

	telemetry.FromContext(r.Context()).Error("request failed", "error", err)
	Error(w, r, http.StatusInternalServerError, CodeInternal, "internal server error")
	return true
}

func notFoundMessage(code ErrorCode) string {
	switch code {
	case CodeCaseNotFound:
		return "case not found"
	case CodeStepNotFound:
		return "step not found"
	default:
		return "not found"
	}
}
