package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Collector/internal/domain"
)

// caseTemplateKey — частичный уникальный индекс (case_id, template_ref).
const caseTemplateKey = "case_steps_case_template_key"

// StepRepo — репозиторий для работы с case_steps.
type StepRepo struct {
	pool *pgxpool.Pool
}

// NewStepRepo создаёт новый StepRepo.
func NewStepRepo(pool *pgxpool.Pool) *StepRepo {
	return &StepRepo{pool: pool}
}

const stepColumns = `
	id, case_id, template_ref, label, state, scheduled_at, performed_at,
	creditor_notified, notified_debtor, created_at, updated_at`

// Create создаёт новый шаг.
//
// Нарушение уникальности (дело, шаблон) возвращается как ErrAlreadyExists
// и одновременно как domain.ValidationError.
func (r *StepRepo) Create(ctx context.Context, step *domain.CaseStep) error {
	query := `
		INSERT INTO case_steps (` + stepColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		step.ID,
		step.CaseID,
		step.TemplateRef,
		step.Label,
		step.State,
		step.ScheduledAt,
		step.PerformedAt,
		step.CreditorNotified,
		step.NotifiedDebtor,
		step.CreatedAt,
		step.UpdatedAt,
	)
	if constraint, ok := isUniqueViolation(err); ok && constraint == caseTemplateKey {
		return fmt.Errorf("%w: %w", ErrAlreadyExists,
			&domain.ValidationError{Entity: "case_step", Field: "TemplateRef", Rule: "unique"})
	}
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// GetByID возвращает шаг по ID.
func (r *StepRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CaseStep, error) {
	query := `SELECT ` + stepColumns + ` FROM case_steps WHERE id = $1`
	return scanStep(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// GetForUpdate возвращает шаг и блокирует его строку до конца транзакции.
func (r *StepRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.CaseStep, error) {
	query := `SELECT ` + stepColumns + ` FROM case_steps WHERE id = $1 FOR UPDATE`
	return scanStep(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// Update сохраняет изменяемые поля шага.
func (r *StepRepo) Update(ctx context.Context, step *domain.CaseStep) error {
	query := `
		UPDATE case_steps
		SET label = $2, state = $3, scheduled_at = $4, performed_at = $5,
		    creditor_notified = $6, notified_debtor = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := conn(ctx, r.pool).Exec(ctx, query,
		step.ID,
		step.Label,
		step.State,
		step.ScheduledAt,
		step.PerformedAt,
		step.CreditorNotified,
		step.NotifiedDebtor,
		step.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsForTemplate проверяет, есть ли в деле шаг этапа ref.
func (r *StepRepo) ExistsForTemplate(ctx context.Context, caseID uuid.UUID, ref string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM case_steps WHERE case_id = $1 AND template_ref = $2
		)
	`
	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, query, caseID, ref).Scan(&exists); err != nil {
		return false, fmt.Errorf("step exists: %w", err)
	}
	return exists, nil
}

// ListDue возвращает невыполненные шаги, время которых наступило к now,
// в порядке планового времени.
func (r *StepRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.CaseStep, error) {
	return r.ListDueAfter(ctx, now, nil, limit)
}

// ListDueAfter — страница ListDue, начинающаяся после шага after
// по (scheduled_at, id). Пустой after — первая страница.
func (r *StepRepo) ListDueAfter(ctx context.Context, now time.Time, after *domain.CaseStep, limit int) ([]domain.CaseStep, error) {
	if after == nil {
		query := `
			SELECT ` + stepColumns + `
			FROM case_steps
			WHERE state = 'unperformed' AND scheduled_at <= $1
			ORDER BY scheduled_at ASC, id ASC
			LIMIT $2
		`
		return r.list(ctx, "list due steps", query, now, limit)
	}

	query := `
		SELECT ` + stepColumns + `
		FROM case_steps
		WHERE state = 'unperformed' AND scheduled_at <= $1
		  AND (scheduled_at, id) > ($2, $3)
		ORDER BY scheduled_at ASC, id ASC
		LIMIT $4
	`
	return r.list(ctx, "list due steps", query, now, after.ScheduledAt, after.ID, limit)
}

// ListDueToday возвращает невыполненные шаги, запланированные
// на календарный день now (в часовом поясе now). Просроченные шаги
// прошлых дней сюда не попадают.
func (r *StepRepo) ListDueToday(ctx context.Context, now time.Time, limit int) ([]domain.CaseStep, error) {
	start, end := dayBounds(now)

	query := `
		SELECT ` + stepColumns + `
		FROM case_steps
		WHERE state = 'unperformed' AND scheduled_at >= $1 AND scheduled_at < $2
		ORDER BY scheduled_at ASC, id ASC
		LIMIT $3
	`
	return r.list(ctx, "list steps due today", query, start, end, limit)
}

// dayBounds возвращает начало дня t и начало следующего дня.
func dayBounds(t time.Time) (start, end time.Time) {
	year, month, day := t.Date()
	start = time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// ListUnnotified возвращает шаги дела, о которых должник ещё не уведомлён.
func (r *StepRepo) ListUnnotified(ctx context.Context, caseID uuid.UUID) ([]domain.CaseStep, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM case_steps
		WHERE case_id = $1 AND notified_debtor = FALSE
		ORDER BY scheduled_at ASC
	`
	return r.list(ctx, "list unnotified steps", query, caseID)
}

// ListByCase возвращает историю дела: все шаги по дате истории.
func (r *StepRepo) ListByCase(ctx context.Context, caseID uuid.UUID) ([]domain.CaseStep, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM case_steps
		WHERE case_id = $1
		ORDER BY COALESCE(performed_at, scheduled_at) ASC, created_at ASC
	`
	return r.list(ctx, "list case steps", query, caseID)
}

func (r *StepRepo) list(ctx context.Context, op, query string, args ...any) ([]domain.CaseStep, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var steps []domain.CaseStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// scanStep сканирует одну строку в CaseStep.
// pgx.Rows реализует pgx.Row, поэтому функция подходит и для списков.
func scanStep(row pgx.Row) (*domain.CaseStep, error) {
	var step domain.CaseStep

	err := row.Scan(
		&step.ID,
		&step.CaseID,
		&step.TemplateRef,
		&step.Label,
		&step.State,
		&step.ScheduledAt,
		&step.PerformedAt,
		&step.CreditorNotified,
		&step.NotifiedDebtor,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step: %w", err)
	}
	return &step, nil
}
