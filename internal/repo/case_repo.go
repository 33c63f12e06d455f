package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shaiso/Collector/internal/domain"
)

// CaseRepo — репозиторий для работы с cases.
//
// Суммы хранятся в центах (BIGINT).
type CaseRepo struct {
	pool *pgxpool.Pool
}

// NewCaseRepo создаёт новый CaseRepo.
func NewCaseRepo(pool *pgxpool.Pool) *CaseRepo {
	return &CaseRepo{pool: pool}
}

const caseColumns = `
	id, reference, state, autoforward, bailiff_id, debtor_name, debtor_email,
	principal_cents, collection_costs_cents, billing_cents,
	collections_started_at, finished_at, created_at, updated_at`

// Create создаёт новое дело.
func (r *CaseRepo) Create(ctx context.Context, c *domain.Case) error {
	query := `
		INSERT INTO cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		c.ID,
		c.Reference,
		c.State,
		c.Autoforward,
		nullUUID(c.BailiffID),
		c.DebtorName,
		c.DebtorEmail,
		toCents(c.Principal),
		toCents(c.CollectionCosts),
		nullCents(c.BillingPrice),
		c.CollectionsStartedAt,
		c.FinishedAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if _, ok := isUniqueViolation(err); ok {
		return fmt.Errorf("case %s: %w", c.Reference, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

// GetByID возвращает дело по ID.
func (r *CaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	return scanCase(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// GetByReference возвращает дело по номеру.
func (r *CaseRepo) GetByReference(ctx context.Context, reference string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE reference = $1`
	return scanCase(conn(ctx, r.pool).QueryRow(ctx, query, reference))
}

// GetForUpdate возвращает дело и блокирует его строку до конца транзакции.
func (r *CaseRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1 FOR UPDATE`
	return scanCase(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// SetState меняет состояние дела (пауза, оплата, возобновление).
func (r *CaseRepo) SetState(ctx context.Context, id uuid.UUID, state domain.CaseState) error {
	query := `UPDATE cases SET state = $2, updated_at = now() WHERE id = $1`
	result, err := conn(ctx, r.pool).Exec(ctx, query, id, state)
	if err != nil {
		return fmt.Errorf("set case state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Apply применяет эффект шага к делу и сохраняет его.
//
// Начисление делается инкрементом в SQL, поэтому параллельные шаги
// одного дела не теряют суммы даже без блокировки строки. Итог
// начисления читается обратно в c.BillingPrice.
func (r *CaseRepo) Apply(ctx context.Context, c *domain.Case, effect domain.CaseEffect, now time.Time) error {
	c.Apply(effect, now)

	query := `
		UPDATE cases
		SET state = $2,
		    collection_costs_cents = $3,
		    collections_started_at = $4,
		    finished_at = $5,
		    billing_cents = CASE WHEN $6::boolean
		                         THEN COALESCE(billing_cents, 0) + $7
		                         ELSE billing_cents END,
		    updated_at = $8
		WHERE id = $1
		RETURNING billing_cents
	`
	var billing *int64
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		c.ID,
		c.State,
		toCents(c.CollectionCosts),
		c.CollectionsStartedAt,
		c.FinishedAt,
		effect.Bill,
		toCents(effect.BillingDelta),
		c.UpdatedAt,
	).Scan(&billing)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("apply case effect: %w", err)
	}

	c.BillingPrice = fromNullCents(billing)
	return nil
}

// scanCase сканирует одну строку в Case.
func scanCase(row pgx.Row) (*domain.Case, error) {
	var c domain.Case
	var principal, costs int64
	var billing *int64

	err := row.Scan(
		&c.ID,
		&c.Reference,
		&c.State,
		&c.Autoforward,
		&c.BailiffID,
		&c.DebtorName,
		&c.DebtorEmail,
		&principal,
		&costs,
		&billing,
		&c.CollectionsStartedAt,
		&c.FinishedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan case: %w", err)
	}

	c.Principal = fromCents(principal)
	c.CollectionCosts = fromCents(costs)
	c.BillingPrice = fromNullCents(billing)
	return &c, nil
}

// --- Helpers ---

// toCents переводит сумму в центы с банковским округлением.
func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).RoundBank(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// nullCents возвращает nil для неустановленной суммы.
func nullCents(d *decimal.Decimal) *int64 {
	if d == nil {
		return nil
	}
	cents := toCents(*d)
	return &cents
}

func fromNullCents(cents *int64) *decimal.Decimal {
	if cents == nil {
		return nil
	}
	d := fromCents(*cents)
	return &d
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
