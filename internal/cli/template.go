package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Collector/internal/app"
	"github.com/shaiso/Collector/internal/catalog"
	"github.com/shaiso/Collector/internal/domain"
)

// NewTemplateCmd создаёт группу команд каталога этапов.
// Команды не требуют БД.
func NewTemplateCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Inspect the workflow template catalog",
	}

	cmd.AddCommand(
		newTemplateListCmd(rt, outputFn),
		newTemplateNextCmd(rt, outputFn),
		newTemplateCheckCmd(outputFn),
	)

	return cmd
}

func newTemplateListCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates (from --file, TEMPLATES_FILE or the built-in catalog)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(cmd, rt, file)
			if err != nil {
				return err
			}

			all := cat.All()
			out := outputFn()
			out.Print(templateHeaders, templateRows(all), all)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Catalog YAML file")

	return cmd
}

// successorView — этап-преемник с его смещением.
type successorView struct {
	Reference string `json:"reference"`
	Label     string `json:"label"`
	Kind      string `json:"kind"`
	AfterDays int    `json:"after_days"`
}

func newTemplateNextCmd(rt *Runtime, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "next REF",
		Short: "Show the stages scheduled after stage REF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(cmd, rt, file)
			if err != nil {
				return err
			}
			tpl, err := cat.Template(args[0])
			if err != nil {
				return err
			}
			next, err := cat.NextSteps(tpl.Reference)
			if err != nil {
				return err
			}

			views := make([]successorView, len(next))
			rows := make([][]string, len(next))
			for i, n := range next {
				days, _ := tpl.AfterStepInDays(n.Reference)
				views[i] = successorView{Reference: n.Reference, Label: n.Label, Kind: string(n.Kind), AfterDays: days}
				rows[i] = []string{n.Reference, n.Label, string(n.Kind), strconv.Itoa(days)}
			}

			outputFn().Print([]string{"REF", "LABEL", "KIND", "AFTER DAYS"}, rows, views)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Catalog YAML file")

	return cmd
}

// loadCatalog читает каталог из --file, TEMPLATES_FILE или встроенный.
func loadCatalog(cmd *cobra.Command, rt *Runtime, file string) (*catalog.Catalog, error) {
	if !cmd.Flags().Changed("file") {
		if cfg, err := rt.Config(); err == nil {
			file = cfg.TemplatesFile
		}
	}
	return app.LoadCatalog(file)
}

func newTemplateCheckCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a catalog YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := app.LoadCatalog(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Catalog OK: %d templates, roots: %s",
				len(cat.All()), strings.Join(cat.Roots(), ", ")))
			return nil
		},
	}
}

var templateHeaders = []string{"REF", "LABEL", "KIND", "PRICE", "ACTIONS", "NEXT"}

func templateRows(tpls []*domain.WorkflowTemplate) [][]string {
	rows := make([][]string, len(tpls))
	for i, t := range tpls {
		next := make([]string, len(t.Next))
		for j, n := range t.Next {
			next[j] = formatSuccessor(n)
		}
		rows[i] = []string{
			t.Reference,
			t.Label,
			string(t.Kind),
			formatMoney(t.Price),
			strconv.Itoa(len(t.Actions)),
			strings.Join(next, " "),
		}
	}
	return rows
}
