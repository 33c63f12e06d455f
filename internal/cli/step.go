package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/engine"
	"github.com/shaiso/Collector/internal/scheduler"
)

// NewStepCmd создаёт группу команд для управления шагами дел.
func NewStepCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Manage case steps",
	}

	cmd.AddCommand(
		newStepListCmd(rt, outputFn),
		newStepTodayCmd(rt, outputFn),
		newStepPerformCmd(rt, outputFn),
		newStepScheduleNextCmd(rt, outputFn),
		newStepStartCmd(rt, outputFn),
		newStepAdHocCmd(rt, outputFn),
	)

	return cmd
}

// NewTickCmd создаёт команду одного прохода диспетчера.
func NewTickCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	var queue bool
	var batch int

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one dispatch pass over due steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.Services(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			cfg := scheduler.Config{
				Steps:     s.Steps,
				Performer: s.Engine,
				Logger:    rt.logger,
				BatchSize: batch,
			}
			if queue {
				if s.Publisher == nil {
					return fmt.Errorf("--queue requires RabbitMQ")
				}
				cfg.Publisher = s.Publisher
			}

			res, err := scheduler.New(cfg).Tick(cmd.Context())
			if err != nil {
				return err
			}

			out.Print(
				[]string{"DUE", "QUEUED", "INLINE", "FAILED"},
				[][]string{{strconv.Itoa(res.Due), strconv.Itoa(res.Queued), strconv.Itoa(res.Inline), strconv.Itoa(res.Failed)}},
				res,
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&queue, "queue", false, "Publish due steps to the queue instead of performing inline")
	cmd.Flags().IntVar(&batch, "batch", 0, "Maximum steps per pass (default from config)")

	return cmd
}

func newStepListCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	var dueOnly bool
	var unnotified bool

	cmd := &cobra.Command{
		Use:   "list CASE",
		Short: "List steps of a case (by ID or reference)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.Services(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			c, err := resolveCase(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}

			var steps []domain.CaseStep
			if unnotified {
				steps, err = s.Steps.ListUnnotified(cmd.Context(), c.ID)
			} else {
				steps, err = s.Steps.ListByCase(cmd.Context(), c.ID)
			}
			if err != nil {
				return err
			}
			if dueOnly {
				now := time.Now()
				steps = filterSteps(steps, func(st *domain.CaseStep) bool { return st.IsDue(now) })
			}

			out.Print(stepHeaders, stepRows(steps), steps)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dueOnly, "due", false, "Only unperformed steps whose time has come")
	cmd.Flags().BoolVar(&unnotified, "unnotified", false, "Only steps the debtor was not notified about")

	return cmd
}

func newStepTodayCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "today",
		Short: "List unperformed steps of all cases scheduled for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.Services(cmd.Context())
			if err != nil {
				return err
			}

			steps, err := s.Steps.ListDueToday(cmd.Context(), time.Now().In(rt.location()), limit)
			if err != nil {
				return err
			}

			outputFn().Print(stepHeaders, stepRows(steps), steps)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum steps to list")

	return cmd
}

func newStepPerformCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "perform STEP_ID",
		Short: "Perform a step (only if due, unless --force)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("step", args[0])
			if err != nil {
				return err
			}
			s, err := rt.Services(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			var report *engine.Report
			if force {
				report, err = s.Engine.Perform(cmd.Context(), id)
			} else {
				report, err = s.Engine.PerformIfDue(cmd.Context(), id)
			}
			if err != nil {
				return err
			}

			out.Report(report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Perform even if the step is not due yet")

	return cmd
}

func newStepScheduleNextCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule-next STEP_ID",
		Short: "Create missing successor steps of a step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("step", args[0])
			if err != nil {
				return err
			}
			s, err := rt.Services(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			created, err := s.Engine.ScheduleNext(cmd.Context(), id)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Successors created: %d", len(created)))
			rows := make([][]string, len(created))
			for i, c := range created {
				rows[i] = []string{c.String()}
			}
			out.Print([]string{"STEP_ID"}, rows, created)
			return nil
		},
	}
}

func newStepStartCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	var template string
	var at string

	cmd := &cobra.Command{
		Use:   "start CASE",
		Short: "Create the first step of a case from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.Services(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			c, err := resolveCase(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			when, err := parseTime(at, rt.location(), time.Now())
			if err != nil {
				return err
			}

			step, err := s.Engine.StartWorkflow(cmd.Context(), c.ID, template, when)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Step created: %s", step.ID))
			out.Print(stepHeaders, stepRows([]domain.CaseStep{*step}), step)
			return nil
		},
	}

	cmd.Flags().StringVar(&template, "template", domain.FirstCollectionReference, "Template reference")
	cmd.Flags().StringVar(&at, "at", "now", "Scheduled time (RFC3339 or YYYY-MM-DD)")

	return cmd
}

func newStepAdHocCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	var label string
	var at string

	cmd := &cobra.Command{
		Use:   "adhoc CASE",
		Short: "Create a manual step without a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.Services(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			c, err := resolveCase(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			when, err := parseTime(at, rt.location(), time.Now())
			if err != nil {
				return err
			}

			step, err := s.Engine.CreateAdHocStep(cmd.Context(), c.ID, label, when)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Step created: %s", step.ID))
			out.Print(stepHeaders, stepRows([]domain.CaseStep{*step}), step)
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Step label")
	cmd.Flags().StringVar(&at, "at", "now", "Scheduled time (RFC3339 or YYYY-MM-DD)")
	cmd.MarkFlagRequired("label")

	return cmd
}

// DATE — дата в истории дела: выполнения или плановая.
var stepHeaders = []string{"ID", "TEMPLATE", "LABEL", "STATE", "DATE", "SCHEDULED", "PERFORMED"}

func stepRows(steps []domain.CaseStep) [][]string {
	rows := make([][]string, len(steps))
	for i := range steps {
		st := &steps[i]
		rows[i] = []string{
			st.ID.String(),
			st.Reference(),
			st.Label,
			string(st.State),
			st.HistoryDate().Format("2006-01-02"),
			formatTime(&st.ScheduledAt),
			formatTime(st.PerformedAt),
		}
	}
	return rows
}

func filterSteps(steps []domain.CaseStep, keep func(*domain.CaseStep) bool) []domain.CaseStep {
	out := steps[:0]
	for i := range steps {
		if keep(&steps[i]) {
			out = append(out, steps[i])
		}
	}
	return out
}
