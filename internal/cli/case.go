package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/shaiso/Collector/internal/domain"
)

// NewCaseCmd создаёт группу команд для управления делами.
func NewCaseCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Manage collection cases",
	}

	cmd.AddCommand(
		newCaseCreateCmd(rt, outputFn),
		newCaseShowCmd(rt, outputFn),
		newCaseStateCmd(rt, outputFn, "pause", "Pause a case (its steps are deferred)", domain.CasePaused),
		newCaseStateCmd(rt, outputFn, "resume", "Resume a paused case", domain.CaseOpen),
		newCaseStateCmd(rt, outputFn, "paid", "Mark a case as paid", domain.CasePaid),
	)

	return cmd
}

// caseInput — параметры нового дела из флагов.
type caseInput struct {
	reference   string
	debtorName  string
	debtorEmail string
	principal   string
	autoforward bool
	bailiff     string
}

// build создаёт дело в состоянии open с расходами по шкале от основной суммы.
func (in caseInput) build(now time.Time) (*domain.Case, error) {
	if in.reference == "" {
		return nil, errors.New("--reference is required")
	}
	principal, err := decimal.NewFromString(in.principal)
	if err != nil {
		return nil, fmt.Errorf("invalid --principal %q: %w", in.principal, err)
	}
	if principal.IsNegative() {
		return nil, fmt.Errorf("--principal must not be negative")
	}

	c := &domain.Case{
		ID:          uuid.New(),
		Reference:   in.reference,
		State:       domain.CaseOpen,
		Autoforward: in.autoforward,
		DebtorName:  in.debtorName,
		DebtorEmail: in.debtorEmail,
		Principal:   principal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.UpdatePrices()

	if in.bailiff != "" {
		id, err := parseID("bailiff", in.bailiff)
		if err != nil {
			return nil, err
		}
		c.BailiffID = &id
	}
	return c, nil
}

func newCaseCreateCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	var in caseInput
	var start string
	var at string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a case and optionally start its workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			c, err := in.build(now)
			if err != nil {
				return err
			}

			var when time.Time
			if start != "" {
				if when, err = parseTime(at, rt.location(), now); err != nil {
					return err
				}
			}

			s, err := rt.Services(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			if err := s.Cases.Create(cmd.Context(), c); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Case created: %s (%s)", c.Reference, c.ID))

			if start != "" {
				step, err := s.Engine.StartWorkflow(cmd.Context(), c.ID, start, when)
				if err != nil {
					return fmt.Errorf("start workflow: %w", err)
				}
				out.Success(fmt.Sprintf("First step %q scheduled at %s", start, formatTime(&step.ScheduledAt)))
			}

			out.Print(caseHeaders, caseRows(c), c)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.reference, "reference", "", "Case reference (unique)")
	cmd.Flags().StringVar(&in.debtorName, "debtor-name", "", "Debtor name")
	cmd.Flags().StringVar(&in.debtorEmail, "debtor-email", "", "Debtor e-mail (required for debtor notices)")
	cmd.Flags().StringVar(&in.principal, "principal", "0", "Principal amount, e.g. 1250.00")
	cmd.Flags().BoolVar(&in.autoforward, "autoforward", false, "Hand the case to a bailiff at the final stage")
	cmd.Flags().StringVar(&in.bailiff, "bailiff", "", "Assigned bailiff ID")
	cmd.Flags().StringVar(&start, "start", "", "Template reference of the first step (empty: do not start)")
	cmd.Flags().StringVar(&at, "at", "now", "First step time (RFC3339 or YYYY-MM-DD)")
	cmd.MarkFlagRequired("reference")

	return cmd
}

func newCaseShowCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show CASE",
		Short: "Show case details (by ID or reference)",
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

			out.Print(caseHeaders, caseRows(c), c)
			return nil
		},
	}
}

func newCaseStateCmd(rt *Runtime, outputFn func() *Output, use, short string, state domain.CaseState) *cobra.Command {
	return &cobra.Command{
		Use:   use + " CASE",
		Short: short,
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
			if c.IsFinished() {
				return fmt.Errorf("case %s is finished", c.Reference)
			}
			if err := s.Cases.SetState(cmd.Context(), c.ID, state); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Case %s: %s → %s", c.Reference, c.State, state))
			return nil
		},
	}
}

var caseHeaders = []string{"ID", "REFERENCE", "STATE", "DEBTOR", "PRINCIPAL", "COSTS", "BILLING", "AUTOFORWARD"}

func caseRows(c *domain.Case) [][]string {
	return [][]string{{
		c.ID.String(),
		c.Reference,
		string(c.State),
		c.DebtorName,
		formatMoney(c.Principal),
		formatMoney(c.CollectionCosts),
		formatMoney(c.BillingTotal()),
		strconv.FormatBool(c.Autoforward),
	}}
}
