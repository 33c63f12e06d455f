package actions

import (
	"context"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/mq"
)

// DebtorNotice отправляет письмо должнику.
// Невыполнимо, если у должника нет адреса.
type DebtorNotice struct {
	pub Publisher
}

func (p *DebtorNotice) Performable(c *domain.Case, _ *domain.Action) bool {
	return c.DebtorEmail != ""
}

func (p *DebtorNotice) Perform(ctx context.Context, c *domain.Case, a *domain.Action) error {
	return p.pub.PublishDebtorNotice(ctx, mq.DebtorNoticePayload{
		ActionID:      a.ID,
		CaseID:        c.ID,
		CaseReference: c.Reference,
		DebtorName:    c.DebtorName,
		DebtorEmail:   c.DebtorEmail,
		Document:      a.Document,
	})
}

// FeePosting передаёт начисление сбора в бухгалтерию.
// Невыполнимо для нулевой или отрицательной суммы.
type FeePosting struct {
	pub Publisher
}

func (p *FeePosting) Performable(_ *domain.Case, a *domain.Action) bool {
	return a.Amount.IsPositive()
}

func (p *FeePosting) Perform(ctx context.Context, c *domain.Case, a *domain.Action) error {
	return p.pub.PublishFeePosted(ctx, mq.FeePostedPayload{
		ActionID:      a.ID,
		CaseID:        c.ID,
		CaseReference: c.Reference,
		Amount:        a.Amount,
		Document:      a.Document,
	})
}

// BailiffHandover передаёт дело назначенному приставу.
// Выполнимо только при автопередаче и назначенном приставе.
type BailiffHandover struct {
	pub Publisher
}

func (p *BailiffHandover) Performable(c *domain.Case, _ *domain.Action) bool {
	return c.Autoforward && c.BailiffID != nil
}

func (p *BailiffHandover) Perform(ctx context.Context, c *domain.Case, a *domain.Action) error {
	return p.pub.PublishBailiffHandover(ctx, mq.BailiffHandoverPayload{
		ActionID:      a.ID,
		CaseID:        c.ID,
		CaseReference: c.Reference,
		BailiffID:     *c.BailiffID,
		Principal:     c.Principal,
		Document:      a.Document,
	})
}
