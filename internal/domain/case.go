package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Case — дело о взыскании долга.
//
// Case владеет своими шагами (CaseStep). Движок читает состояние дела,
// чтобы решить, можно ли выполнять шаг, и изменяет дело только через
// CaseEffect, который применяется под блокировкой строки.
type Case struct {
	// ID — уникальный идентификатор дела.
	ID uuid.UUID `json:"id"`

	// Reference — номер дела для людей ("2024-00017").
	Reference string `json:"reference"`

	// State — состояние дела.
	State CaseState `json:"state"`

	// Autoforward — передавать ли дело судебному приставу автоматически.
	Autoforward bool `json:"autoforward"`

	// BailiffID — назначенный судебный пристав (nil — не назначен).
	BailiffID *uuid.UUID `json:"bailiff_id,omitempty"`

	DebtorName  string `json:"debtor_name"`
	DebtorEmail string `json:"debtor_email,omitempty"`

	// Principal — основная сумма долга.
	Principal decimal.Decimal `json:"principal"`

	// CollectionCosts — внесудебные расходы на взыскание.
	// Пересчитывается через UpdatePrices.
	CollectionCosts decimal.Decimal `json:"collection_costs"`

	// BillingPrice — накопленная стоимость выполненных шагов.
	// nil — ещё ни один шаг не был выставлен.
	BillingPrice *decimal.Decimal `json:"billing_price,omitempty"`

	// CollectionsStartedAt — время запуска процесса взыскания.
	CollectionsStartedAt *time.Time `json:"collections_started_at,omitempty"`

	// FinishedAt — время завершения дела.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen возвращает true, если дело в работе.
func (c *Case) IsOpen() bool {
	return c.State == CaseOpen
}

// IsFinished возвращает true, если взыскание завершено.
func (c *Case) IsFinished() bool {
	return c.State == CaseFinished
}

// Performable возвращает true, если шаги дела можно выполнять.
// Приостановленные и оплаченные дела шаги откладывают.
func (c *Case) Performable() bool {
	return c.IsOpen() || c.IsFinished()
}

// StartCollectionsProcess фиксирует начало взыскания.
// Повторный вызов время начала не меняет.
func (c *Case) StartCollectionsProcess(now time.Time) {
	if c.CollectionsStartedAt == nil {
		c.CollectionsStartedAt = &now
	}
}

// UpdatePrices пересчитывает расходы на взыскание по основной сумме долга.
func (c *Case) UpdatePrices() {
	c.CollectionCosts = CollectionCosts(c.Principal)
}

// Finish переводит дело в состояние finished.
func (c *Case) Finish(now time.Time) {
	c.State = CaseFinished
	c.FinishedAt = &now
}

// AddBilling прибавляет сумму к накопленной стоимости дела.
func (c *Case) AddBilling(amount decimal.Decimal) {
	total := decimal.Zero
	if c.BillingPrice != nil {
		total = *c.BillingPrice
	}
	total = total.Add(amount)
	c.BillingPrice = &total
}

// BillingTotal возвращает накопленную стоимость (0, если не задана).
func (c *Case) BillingTotal() decimal.Decimal {
	if c.BillingPrice == nil {
		return decimal.Zero
	}
	return *c.BillingPrice
}

// Apply применяет эффект шага к делу в памяти.
//
// Порядок: старт взыскания, пересчёт цен, завершение, начисление.
// Сохранение — ответственность CaseRepository.Apply.
func (c *Case) Apply(effect CaseEffect, now time.Time) {
	if effect.StartCollections {
		c.StartCollectionsProcess(now)
	}
	if effect.RecomputePrices {
		c.UpdatePrices()
	}
	if effect.Finish && !c.IsFinished() {
		c.Finish(now)
	}
	if effect.Bill {
		c.AddBilling(effect.BillingDelta)
	}
	c.UpdatedAt = now
}

// CaseEffect — изменение дела, запрошенное шагом.
//
// Шаг не изменяет дело напрямую: он формирует эффект, а репозиторий
// применяет его атомарно в транзакции выполнения шага.
type CaseEffect struct {
	// StartCollections — запустить процесс взыскания.
	StartCollections bool

	// RecomputePrices — пересчитать расходы на взыскание.
	RecomputePrices bool

	// Finish — перевести дело в finished (если ещё не).
	Finish bool

	// Bill — начислить BillingDelta (даже нулевую).
	Bill bool

	// BillingDelta — сумма начисления за выполненный шаг.
	BillingDelta decimal.Decimal
}

// BillingEffect возвращает эффект начисления цены шага.
func BillingEffect(price decimal.Decimal) CaseEffect {
	return CaseEffect{Bill: true, BillingDelta: price}
}

// Шкала внесудебных расходов на взыскание (WIK).
var (
	collectionCostsMin = decimal.NewFromInt(40)
	collectionCostsMax = decimal.NewFromInt(6775)

	collectionCostsTiers = []struct {
		upTo decimal.Decimal // верхняя граница ступени (0 — без границы)
		rate decimal.Decimal
	}{
		{decimal.NewFromInt(2500), decimal.RequireFromString("0.15")},
		{decimal.NewFromInt(5000), decimal.RequireFromString("0.10")},
		{decimal.NewFromInt(10000), decimal.RequireFromString("0.05")},
		{decimal.NewFromInt(200000), decimal.RequireFromString("0.01")},
		{decimal.Zero, decimal.RequireFromString("0.005")},
	}
)

// CollectionCosts рассчитывает расходы на взыскание по ступенчатой шкале:
// 15% с первых 2500, 10% со следующих 2500, 5% со следующих 5000,
// 1% со следующих 190000 и 0.5% с остатка. Не меньше 40 и не больше 6775.
func CollectionCosts(principal decimal.Decimal) decimal.Decimal {
	if !principal.IsPositive() {
		return decimal.Zero
	}

	total := decimal.Zero
	lower := decimal.Zero
	for _, tier := range collectionCostsTiers {
		upper := principal
		if !tier.upTo.IsZero() && tier.upTo.LessThan(principal) {
			upper = tier.upTo
		}
		if upper.GreaterThan(lower) {
			total = total.Add(upper.Sub(lower).Mul(tier.rate))
		}
		if !tier.upTo.IsZero() {
			lower = tier.upTo
		}
		if !lower.LessThan(principal) {
			break
		}
	}

	switch {
	case total.LessThan(collectionCostsMin):
		total = collectionCostsMin
	case total.GreaterThan(collectionCostsMax):
		total = collectionCostsMax
	}
	return total.Round(2)
}
