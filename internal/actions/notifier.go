package actions

import (
	"context"
	"fmt"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/mq"
)

// CaseNotifier уведомляет кредитора о завершении дела.
//
// Отправка синхронная: ошибка транспорта возвращается движку,
// и транзакция шага откатывается.
type CaseNotifier struct {
	pub Publisher
}

// NewCaseNotifier создаёт новый CaseNotifier.
func NewCaseNotifier(pub Publisher) *CaseNotifier {
	return &CaseNotifier{pub: pub}
}

// SendCaseFinished публикует case.finished.
func (n *CaseNotifier) SendCaseFinished(ctx context.Context, c *domain.Case) error {
	payload := mq.CaseFinishedPayload{
		CaseID:        c.ID,
		CaseReference: c.Reference,
		FinishedAt:    c.FinishedAt,
		BillingTotal:  c.BillingTotal(),
	}
	if err := n.pub.PublishCaseFinished(ctx, payload); err != nil {
		return fmt.Errorf("case %s finished notification: %w", c.Reference, err)
	}
	return nil
}
