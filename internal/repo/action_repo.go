package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Collector/internal/domain"
)

// ActionRepo — репозиторий для работы с case_actions.
type ActionRepo struct {
	pool *pgxpool.Pool
}

// NewActionRepo создаёт новый ActionRepo.
func NewActionRepo(pool *pgxpool.Pool) *ActionRepo {
	return &ActionRepo{pool: pool}
}

const actionColumns = `
	id, step_id, type, condition, state, delay_days, run_at, document,
	amount_cents, performed_at, created_at`

// Create создаёт новое действие.
func (r *ActionRepo) Create(ctx context.Context, a *domain.Action) error {
	query := `
		INSERT INTO case_actions (` + actionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		a.ID,
		a.StepID,
		a.Type,
		a.Condition,
		a.State,
		a.DelayDays,
		a.RunAt,
		a.Document,
		toCents(a.Amount),
		a.PerformedAt,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// ListByStep возвращает действия шага в порядке создания.
func (r *ActionRepo) ListByStep(ctx context.Context, stepID uuid.UUID) ([]domain.Action, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM case_actions
		WHERE step_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, stepID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

// Update сохраняет состояние действия.
// RunAt однажды вычисленный не перезаписывается.
func (r *ActionRepo) Update(ctx context.Context, a *domain.Action) error {
	query := `
		UPDATE case_actions
		SET state = $2, performed_at = $3, run_at = COALESCE(run_at, $4)
		WHERE id = $1
	`
	result, err := conn(ctx, r.pool).Exec(ctx, query, a.ID, a.State, a.PerformedAt, a.RunAt)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет действие.
func (r *ActionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM case_actions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete action: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanAction сканирует одну строку в Action.
func scanAction(row pgx.Row) (*domain.Action, error) {
	var a domain.Action
	var amount int64

	err := row.Scan(
		&a.ID,
		&a.StepID,
		&a.Type,
		&a.Condition,
		&a.State,
		&a.DelayDays,
		&a.RunAt,
		&a.Document,
		&amount,
		&a.PerformedAt,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan action: %w", err)
	}

	a.Amount = fromCents(amount)
	return &a, nil
}
