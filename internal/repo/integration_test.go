//go:build integration

package repo

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/shaiso/Collector/internal/domain"
)

var postgresContainer *postgres.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if postgresContainer != nil {
		_ = postgresContainer.Terminate(context.Background())
	}

	os.Exit(code)
}

// setupTestDB поднимает PostgreSQL (один контейнер на пакет),
// применяет миграции и очищает таблицы.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error
		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("collector_test"),
			postgres.WithUsername("collector"),
			postgres.WithPassword("collector"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	dsn, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	version, err := Migrate(dsn)
	require.NoError(t, err)
	require.EqualValues(t, 1, version)

	pool, err := NewPool(ctx, PoolConfig{DSN: dsn, ApplicationName: "collector-test"})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE cases CASCADE")
	require.NoError(t, err)

	return pool
}

func newTestCase(t *testing.T, pool *pgxpool.Pool) *domain.Case {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &domain.Case{
		ID:        uuid.New(),
		Reference: "IT-" + uuid.NewString()[:8],
		State:     domain.CaseOpen,
		Principal: decimal.RequireFromString("1250.00"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.UpdatePrices()
	require.NoError(t, NewCaseRepo(pool).Create(context.Background(), c))
	return c
}

func TestCaseRepo_CreateAndGet(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	cases := NewCaseRepo(pool)

	c := newTestCase(t, pool)

	got, err := cases.GetByReference(ctx, c.Reference)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.True(t, got.Principal.Equal(c.Principal))
	assert.True(t, got.CollectionCosts.Equal(domain.CollectionCosts(c.Principal)))
	assert.Nil(t, got.BillingPrice)

	err = cases.Create(ctx, c)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = cases.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCaseRepo_ApplyBillingConcurrent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	cases := NewCaseRepo(pool)
	store := NewStore(pool)

	c := newTestCase(t, pool)
	price := decimal.RequireFromString("9.50")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.WithinTx(ctx, func(ctx context.Context) error {
				locked, err := cases.GetForUpdate(ctx, c.ID)
				if err != nil {
					return err
				}
				return cases.Apply(ctx, locked, domain.BillingEffect(price), time.Now())
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "76.00", got.BillingTotal().StringFixed(2))
}

func TestStepRepo_UniqueTemplatePerCase(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	steps := NewStepRepo(pool)

	c := newTestCase(t, pool)
	now := time.Now().UTC()
	ref := "1"

	require.NoError(t, steps.Create(ctx, domain.NewCaseStep(c.ID, &ref, "first", now, now)))

	err := steps.Create(ctx, domain.NewCaseStep(c.ID, &ref, "again", now, now))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// ручные шаги не ограничены
	require.NoError(t, steps.Create(ctx, domain.NewCaseStep(c.ID, nil, "call", now, now)))
	require.NoError(t, steps.Create(ctx, domain.NewCaseStep(c.ID, nil, "call", now, now)))

	exists, err := steps.ExistsForTemplate(ctx, c.ID, ref)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStepRepo_ListDue(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	steps := NewStepRepo(pool)

	c := newTestCase(t, pool)
	now := time.Now().UTC()

	due := domain.NewCaseStep(c.ID, nil, "due", now.Add(-time.Hour), now)
	future := domain.NewCaseStep(c.ID, nil, "future", now.Add(48*time.Hour), now)
	performed := domain.NewCaseStep(c.ID, nil, "done", now.Add(-2*time.Hour), now)
	performed.MarkPerformed(now)

	for _, s := range []*domain.CaseStep{due, future, performed} {
		require.NoError(t, steps.Create(ctx, s))
	}

	list, err := steps.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)

	history, err := steps.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	unnotified, err := steps.ListUnnotified(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, unnotified, 3)
}

func TestStepRepo_ListDueToday(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	steps := NewStepRepo(pool)

	c := newTestCase(t, pool)
	now := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)

	yesterday := domain.NewCaseStep(c.ID, nil, "yesterday", now.Add(-24*time.Hour), now)
	morning := domain.NewCaseStep(c.ID, nil, "morning", now.Add(-time.Hour), now)
	evening := domain.NewCaseStep(c.ID, nil, "evening", now.Add(10*time.Hour), now)
	tomorrow := domain.NewCaseStep(c.ID, nil, "tomorrow", now.Add(24*time.Hour), now)

	for _, s := range []*domain.CaseStep{yesterday, morning, evening, tomorrow} {
		require.NoError(t, steps.Create(ctx, s))
	}

	list, err := steps.ListDueToday(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, morning.ID, list[0].ID)
	assert.Equal(t, evening.ID, list[1].ID)
}

func TestStore_WithinTxRollback(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	cases := NewCaseRepo(pool)
	store := NewStore(pool)

	c := newTestCase(t, pool)
	errBoom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if err := cases.SetState(ctx, c.ID, domain.CasePaused); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	got, err := cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseOpen, got.State)
}

func TestActionRepo_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	steps := NewStepRepo(pool)
	actions := NewActionRepo(pool)

	c := newTestCase(t, pool)
	now := time.Now().UTC()
	step := domain.NewCaseStep(c.ID, nil, "manual", now, now)
	require.NoError(t, steps.Create(ctx, step))

	tpl := domain.ActionTemplate{Type: "fee_posting", DelayDays: 2, Amount: decimal.RequireFromString("5")}
	a := tpl.CloneToCaseAction(step.ID, now)
	require.NoError(t, actions.Create(ctx, a))

	list, err := actions.ListByStep(ctx, step.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, domain.ConditionPerform, list[0].Condition)

	a.MarkPerformed(now)
	require.NoError(t, actions.Update(ctx, a))

	list, err = actions.ListByStep(ctx, step.ID)
	require.NoError(t, err)
	assert.True(t, list[0].IsPerformed())

	require.NoError(t, actions.Delete(ctx, a.ID))
	assert.ErrorIs(t, actions.Delete(ctx, a.ID), ErrNotFound)
}
