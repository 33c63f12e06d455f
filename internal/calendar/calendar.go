// Package calendar сдвигает даты на ближайший рабочий день.
//
// Рабочий день — любой день, кроме субботы, воскресенья и
// государственного праздника Нидерландов (набор праздников из
// github.com/rickar/cal/v2/nl). Дополнительные нерабочие дни можно
// добавить через WithExtraHolidays.
//
// Использование:
//
//	cal := calendar.New()
//	due := cal.Adjust(time.Date(2024, 12, 25, 9, 0, 0, 0, loc)) // 2024-12-27 09:00
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/nl"
)

// maxShiftDays — предел сдвига на случай некорректного набора праздников.
const maxShiftDays = 366

// Calendar — календарь рабочих дней.
type Calendar struct {
	bc *cal.BusinessCalendar
}

// Option настраивает Calendar.
type Option func(*Calendar)

// WithExtraHolidays добавляет нерабочие дни к национальным праздникам.
func WithExtraHolidays(holidays ...*cal.Holiday) Option {
	return func(c *Calendar) {
		c.bc.AddHoliday(holidays...)
	}
}

// ParseClosingDays разбирает дополнительные нерабочие дни.
//
// Элемент "MM-DD" — ежегодный день (например, "12-31"),
// "YYYY-MM-DD" — разовый день только в этом году.
func ParseClosingDays(days []string) ([]*cal.Holiday, error) {
	holidays := make([]*cal.Holiday, 0, len(days))
	for _, raw := range days {
		day := strings.TrimSpace(raw)
		if day == "" {
			continue
		}

		h := &cal.Holiday{
			Name: "Sluitingsdag",
			Type: cal.ObservancePublic,
			Func: cal.CalcDayOfMonth,
		}
		if t, err := time.Parse("2006-01-02", day); err == nil {
			h.Month, h.Day = t.Month(), t.Day()
			h.StartYear, h.EndYear = t.Year(), t.Year()
		} else if t, err := time.Parse("01-02", day); err == nil {
			h.Month, h.Day = t.Month(), t.Day()
		} else {
			return nil, fmt.Errorf("closing day %q: want MM-DD or YYYY-MM-DD", day)
		}
		holidays = append(holidays, h)
	}
	return holidays, nil
}

// New создаёт календарь с праздниками Нидерландов.
func New(opts ...Option) *Calendar {
	bc := cal.NewBusinessCalendar()
	bc.AddHoliday(nl.Holidays...)

	c := &Calendar{bc: bc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsBusinessDay возвращает true, если t приходится на рабочий день.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	actual, _, _ := c.bc.IsHoliday(t)
	return !actual
}

// Adjust возвращает самый ранний момент >= t, приходящийся на рабочий день.
//
// Сдвиг идёт целыми днями, время суток сохраняется. Если t уже
// рабочий день, возвращается без изменений. Нулевое время не сдвигается.
func (c *Calendar) Adjust(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	for i := 0; i < maxShiftDays && !c.IsBusinessDay(t); i++ {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// HolidayName возвращает название праздника, приходящегося на t, или "".
func (c *Calendar) HolidayName(t time.Time) string {
	actual, _, h := c.bc.IsHoliday(t)
	if !actual || h == nil {
		return ""
	}
	return h.Name
}
