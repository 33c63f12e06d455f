package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Collector/internal/calendar"
)

// NewCalendarCmd создаёт группу команд календаря рабочих дней.
// Команды не требуют БД.
func NewCalendarCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Inspect the business-day calendar",
	}

	cmd.AddCommand(
		newCalendarAdjustCmd(rt, outputFn),
		newCalendarCheckCmd(rt, outputFn),
	)

	return cmd
}

// calendarDay — ответ команд календаря.
type calendarDay struct {
	Input       time.Time `json:"input"`
	Adjusted    time.Time `json:"adjusted"`
	BusinessDay bool      `json:"business_day"`
	Holiday     string    `json:"holiday,omitempty"`
}

func inspectDay(cal *calendar.Calendar, t time.Time) calendarDay {
	return calendarDay{
		Input:       t,
		Adjusted:    cal.Adjust(t),
		BusinessDay: cal.IsBusinessDay(t),
		Holiday:     cal.HolidayName(t),
	}
}

func printDays(out *Output, days []calendarDay) {
	rows := make([][]string, len(days))
	for i, d := range days {
		holiday := d.Holiday
		if holiday == "" {
			holiday = "-"
		}
		rows[i] = []string{
			d.Input.Format("2006-01-02 Mon"),
			strconv.FormatBool(d.BusinessDay),
			holiday,
			d.Adjusted.Format(time.RFC3339),
		}
	}
	out.Print([]string{"DATE", "BUSINESS_DAY", "HOLIDAY", "ADJUSTED"}, rows, days)
}

func newCalendarAdjustCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "adjust TIME",
		Short: "Move a time to the earliest business day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTime(args[0], rt.location(), time.Now())
			if err != nil {
				return err
			}
			printDays(outputFn(), []calendarDay{inspectDay(rt.calendar(), t)})
			return nil
		},
	}
}

func newCalendarCheckCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "check DATE",
		Short: "Show business days and holidays starting at DATE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTime(args[0], rt.location(), time.Now())
			if err != nil {
				return err
			}
			if days < 1 {
				days = 1
			}

			cal := rt.calendar()
			list := make([]calendarDay, days)
			for i := range list {
				list[i] = inspectDay(cal, t.AddDate(0, 0, i))
			}
			printDays(outputFn(), list)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 1, "Number of days to show")

	return cmd
}
