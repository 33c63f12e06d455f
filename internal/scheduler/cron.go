package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер стандартных cron-выражений (5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule — расписание проходов диспетчера в часовом поясе.
type Schedule struct {
	expr  string
	sched cron.Schedule
	loc   *time.Location
}

// ParseSchedule разбирает cron-выражение. nil loc означает UTC.
func ParseSchedule(expr string, loc *time.Location) (*Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Schedule{expr: expr, sched: sched, loc: loc}, nil
}

// Next возвращает время следующего прохода после from (в UTC).
func (s *Schedule) Next(from time.Time) time.Time {
	return s.sched.Next(from.In(s.loc)).UTC()
}

func (s *Schedule) String() string {
	return fmt.Sprintf("%s (%s)", s.expr, s.loc)
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(expr string) error {
	_, err := ParseSchedule(expr, time.UTC)
	return err
}
