package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Collector/internal/calendar"
	"github.com/shaiso/Collector/internal/catalog"
	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/engine"
	"github.com/shaiso/Collector/internal/repo"
)

// --- fakes ---

type fakeCases map[uuid.UUID]*domain.Case

func (f fakeCases) GetByID(_ context.Context, id uuid.UUID) (*domain.Case, error) {
	if c, ok := f[id]; ok {
		return c, nil
	}
	return nil, repo.ErrNotFound
}

func (f fakeCases) GetByReference(_ context.Context, ref string) (*domain.Case, error) {
	for _, c := range f {
		if c.Reference == ref {
			return c, nil
		}
	}
	return nil, repo.ErrNotFound
}

type fakeSteps map[uuid.UUID]*domain.CaseStep

func (f fakeSteps) GetByID(_ context.Context, id uuid.UUID) (*domain.CaseStep, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, repo.ErrNotFound
}

func (f fakeSteps) ListByCase(_ context.Context, caseID uuid.UUID) ([]domain.CaseStep, error) {
	var out []domain.CaseStep
	for _, s := range f {
		if s.CaseID == caseID {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeEngine struct {
	performErr error
	forced     bool
	started    string
	adHocLabel string
	at         time.Time
}

func (f *fakeEngine) Perform(_ context.Context, id uuid.UUID) (*engine.Report, error) {
	f.forced = true
	return f.report(id)
}

func (f *fakeEngine) PerformIfDue(_ context.Context, id uuid.UUID) (*engine.Report, error) {
	return f.report(id)
}

func (f *fakeEngine) report(id uuid.UUID) (*engine.Report, error) {
	if f.performErr != nil {
		return nil, f.performErr
	}
	return &engine.Report{StepID: id, Outcome: engine.OutcomePerformed}, nil
}

func (f *fakeEngine) ScheduleNext(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeEngine) StartWorkflow(_ context.Context, caseID uuid.UUID, ref string, at time.Time) (*domain.CaseStep, error) {
	if ref == "missing" {
		return nil, fmt.Errorf("%w: %q", catalog.ErrTemplateNotFound, ref)
	}
	f.started, f.at = ref, at
	return domain.NewCaseStep(caseID, &ref, "", at, at), nil
}

func (f *fakeEngine) CreateAdHocStep(_ context.Context, caseID uuid.UUID, label string, at time.Time) (*domain.CaseStep, error) {
	f.adHocLabel, f.at = label, at
	return domain.NewCaseStep(caseID, nil, label, at, at), nil
}

type fakeTemplates []*domain.WorkflowTemplate

func (f fakeTemplates) All() []*domain.WorkflowTemplate { return f }

var fixedNow = time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

type testAPI struct {
	mux    *http.ServeMux
	engine *fakeEngine
	kase   *domain.Case
	step   *domain.CaseStep
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	billing := decimal.RequireFromString("9.5")
	c := &domain.Case{
		ID:           uuid.New(),
		Reference:    "2024-00017",
		State:        domain.CaseOpen,
		Principal:    decimal.RequireFromString("1250"),
		BillingPrice: &billing,
	}
	ref := "1"
	step := domain.NewCaseStep(c.ID, &ref, "Aanmaning", fixedNow, fixedNow)

	eng := &fakeEngine{}
	h := NewHandler(Config{
		Cases:     fakeCases{c.ID: c},
		Steps:     fakeSteps{step.ID: step},
		Engine:    eng,
		Templates: fakeTemplates{{Reference: "1", Label: "Aanmaning", Kind: domain.StepKindFirstCollection, Price: billing}},
		Calendar:  calendar.New(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return fixedNow },
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &testAPI{mux: mux, engine: eng, kase: c, step: step}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp), "decode response")
	return resp.Data
}

// --- tests ---

func TestGetCase_ByIDAndReference(t *testing.T) {
	a := newTestAPI(t)

	for _, key := range []string{a.kase.ID.String(), a.kase.Reference} {
		rec := a.do(t, http.MethodGet, "/api/v1/cases/"+key, "")
		require.Equal(t, http.StatusOK, rec.Code, "GET %s", key)

		got := decodeData[CaseResponse](t, rec)
		assert.Equal(t, a.kase.ID, got.ID)
		assert.Equal(t, "9.50", got.Billing)
	}
}

func TestGetCase_NotFound(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/v1/cases/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCaseSteps(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/v1/cases/"+a.kase.Reference+"/steps", "")
	require.Equal(t, http.StatusOK, rec.Code)

	steps := decodeData[[]StepResponse](t, rec)
	require.Len(t, steps, 1)
	assert.Equal(t, a.step.ID, steps[0].ID)
	assert.Equal(t, "1", steps[0].Template)
}

func TestCreateCaseStep(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "template", body: `{"template":"1","at":"2024-06-20T09:00:00Z"}`, wantStatus: http.StatusCreated},
		{name: "ad hoc", body: `{"label":"Phone call"}`, wantStatus: http.StatusCreated},
		{name: "empty", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "broken body", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "unknown template", body: `{"template":"missing"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t)
			rec := a.do(t, http.MethodPost, "/api/v1/cases/"+a.kase.ID.String()+"/steps", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateCaseStep_DefaultsToNow(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/cases/"+a.kase.ID.String()+"/steps", `{"label":"Phone call"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Phone call", a.engine.adHocLabel)
	assert.True(t, a.engine.at.Equal(fixedNow), "at = %v", a.engine.at)
}

func TestPerformStep(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/steps/"+a.step.ID.String()+"/perform", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, a.engine.forced, "perform without force must use PerformIfDue")

	report := decodeData[engine.Report](t, rec)
	assert.Equal(t, engine.OutcomePerformed, report.Outcome)

	a.do(t, http.MethodPost, "/api/v1/steps/"+a.step.ID.String()+"/perform?force=true", "")
	assert.True(t, a.engine.forced, "force=true must use Perform")
}

func TestPerformStep_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "not found", err: fmt.Errorf("load step: %w", repo.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "validation", err: &domain.ValidationError{Entity: "case_step", Field: "TemplateRef", Rule: "unique"}, wantStatus: http.StatusUnprocessableEntity},
		{name: "performed", err: engine.ErrStepPerformed, wantStatus: http.StatusConflict},
		{name: "no notifier", err: fmt.Errorf("finalize: %w", engine.ErrNoNotifier), wantStatus: http.StatusUnprocessableEntity},
		{name: "internal", err: fmt.Errorf("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t)
			a.engine.performErr = tt.err

			rec := a.do(t, http.MethodPost, "/api/v1/steps/"+a.step.ID.String()+"/perform", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestPerformStep_InvalidID(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/steps/nope/perform", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleNext_EmptyList(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/steps/"+a.step.ID.String()+"/schedule-next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":[]`)
}

func TestListTemplates(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/v1/templates", "")
	tpls := decodeData[[]TemplateResponse](t, rec)
	require.Len(t, tpls, 1)
	assert.Equal(t, "9.50", tpls[0].Price)
	assert.Equal(t, "first_collection", tpls[0].Kind)
}

func TestAdjustTime(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/v1/calendar/adjust?t=2024-06-15T10:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeData[AdjustResponse](t, rec)
	assert.False(t, got.BusinessDay, "saturday")
	assert.True(t, got.Adjusted.Equal(time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC)), "adjusted = %v", got.Adjusted)

	rec = a.do(t, http.MethodGet, "/api/v1/calendar/adjust?t=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestErrorBody_CodeAndRequestID(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/steps/"+uuid.NewString(), nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeStepNotFound, body.Error.Code)
	assert.Equal(t, "step not found", body.Error.Message)
	assert.Equal(t, "req-42", body.Error.RequestID)
}

func TestRequestID_GeneratedWhenMissing(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/v1/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err, "generated request id should be a UUID")
}

func TestHandleError_Mapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{repo.ErrNotFound, http.StatusNotFound, CodeCaseNotFound},
		{fmt.Errorf("start: %w", catalog.ErrTemplateNotFound), http.StatusBadRequest, CodeUnknownTemplate},
		{engine.ErrStepPerformed, http.StatusConflict, CodeStepPerformed},
		{repo.ErrAlreadyExists, http.StatusConflict, CodeStepExists},
		{engine.ErrNoNotifier, http.StatusUnprocessableEntity, CodeNotifierUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.wantCode), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			require.True(t, HandleError(rec, req, tt.err, CodeCaseNotFound))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}

	assert.False(t, HandleError(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), nil, CodeCaseNotFound))
}
