package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/domain"
)

var errNotFound = errors.New("not found")

// memStore — хранилище в памяти для тестов движка.
// Возвращает копии, как настоящая БД.
type memStore struct {
	mu      sync.Mutex
	steps   map[uuid.UUID]domain.CaseStep
	actions map[uuid.UUID]domain.Action
	cases   map[uuid.UUID]domain.Case

	effects     []domain.CaseEffect
	stepUpdates int

	failStepUpdate error
}

func newMemStore() *memStore {
	return &memStore{
		steps:   make(map[uuid.UUID]domain.CaseStep),
		actions: make(map[uuid.UUID]domain.Action),
		cases:   make(map[uuid.UUID]domain.Case),
	}
}

// --- StepRepository ---

type memSteps struct{ s *memStore }

func (r memSteps) GetForUpdate(_ context.Context, id uuid.UUID) (*domain.CaseStep, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	step, ok := r.s.steps[id]
	if !ok {
		return nil, errNotFound
	}
	return &step, nil
}

func (r memSteps) Create(_ context.Context, step *domain.CaseStep) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.steps[step.ID]; ok {
		return fmt.Errorf("duplicate id %s", step.ID)
	}
	r.s.steps[step.ID] = *step
	return nil
}

func (r memSteps) Update(_ context.Context, step *domain.CaseStep) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failStepUpdate != nil {
		return r.s.failStepUpdate
	}
	if _, ok := r.s.steps[step.ID]; !ok {
		return errNotFound
	}
	r.s.steps[step.ID] = *step
	r.s.stepUpdates++
	return nil
}

func (r memSteps) ExistsForTemplate(_ context.Context, caseID uuid.UUID, ref string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, step := range r.s.steps {
		if step.CaseID == caseID && step.TemplateRef != nil && *step.TemplateRef == ref {
			return true, nil
		}
	}
	return false, nil
}

// --- ActionRepository ---

type memActions struct{ s *memStore }

func (r memActions) ListByStep(_ context.Context, stepID uuid.UUID) ([]domain.Action, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Action
	for _, a := range r.s.actions {
		if a.StepID == stepID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Action) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (r memActions) Create(_ context.Context, a *domain.Action) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.actions[a.ID] = *a
	return nil
}

func (r memActions) Update(_ context.Context, a *domain.Action) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.actions[a.ID]; !ok {
		return errNotFound
	}
	r.s.actions[a.ID] = *a
	return nil
}

func (r memActions) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.actions[id]; !ok {
		return errNotFound
	}
	delete(r.s.actions, id)
	return nil
}

// --- CaseRepository ---

type memCases struct{ s *memStore }

func (r memCases) GetForUpdate(_ context.Context, id uuid.UUID) (*domain.Case, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cases[id]
	if !ok {
		return nil, errNotFound
	}
	return &c, nil
}

func (r memCases) Apply(_ context.Context, c *domain.Case, effect domain.CaseEffect, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.Apply(effect, now)
	r.s.cases[c.ID] = *c
	r.s.effects = append(r.s.effects, effect)
	return nil
}

// --- helpers ---

func (s *memStore) step(id uuid.UUID) domain.CaseStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps[id]
}

func (s *memStore) kase(id uuid.UUID) domain.Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases[id]
}

func (s *memStore) actionsOf(stepID uuid.UUID) []domain.Action {
	list, _ := memActions{s}.ListByStep(context.Background(), stepID)
	return list
}

func (s *memStore) stepsOf(caseID uuid.UUID) []domain.CaseStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CaseStep
	for _, step := range s.steps {
		if step.CaseID == caseID {
			out = append(out, step)
		}
	}
	return out
}

// --- Templates ---

type fakeTemplates map[string]*domain.WorkflowTemplate

func (f fakeTemplates) Template(ref string) (*domain.WorkflowTemplate, error) {
	tpl, ok := f[ref]
	if !ok {
		return nil, fmt.Errorf("template %q: %w", ref, errNotFound)
	}
	return tpl, nil
}

// --- Performers ---

type fakePerformers struct {
	mu             sync.Mutex
	notPerformable map[string]bool
	results        map[string]domain.ResultStatus
	calls          []string
	onPerform      func(c *domain.Case, a *domain.Action)
}

func newFakePerformers() *fakePerformers {
	return &fakePerformers{
		notPerformable: make(map[string]bool),
		results:        make(map[string]domain.ResultStatus),
	}
}

func (f *fakePerformers) Performable(_ context.Context, _ *domain.Case, a *domain.Action) bool {
	return !f.notPerformable[a.Type]
}

func (f *fakePerformers) Perform(_ context.Context, c *domain.Case, a *domain.Action) domain.ActionResult {
	f.mu.Lock()
	f.calls = append(f.calls, a.Type)
	f.mu.Unlock()

	if f.onPerform != nil {
		f.onPerform(c, a)
	}

	status, ok := f.results[a.Type]
	if !ok {
		status = domain.ResultSucceeded
	}
	res := domain.ActionResult{Status: status}
	if status != domain.ResultSucceeded {
		res.Error = "boom"
	}
	return res
}

// --- Notifier ---

type fakeNotifier struct {
	calls int
	err   error
	last  domain.Case
}

func (f *fakeNotifier) SendCaseFinished(_ context.Context, c *domain.Case) error {
	if f.err != nil {
		return f.err
	}
	f.calls++
	f.last = *c
	return nil
}

// --- Clock ---

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
