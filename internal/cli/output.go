package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/engine"
)

// Output печатает результаты команд: таблицы в stdout, сообщения в stderr.
// В JSON-режиме таблицы заменяются исходными структурами.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output поверх stdout/stderr.
func NewOutput(jsonMode bool) *Output {
	return &Output{jsonMode: jsonMode, w: os.Stdout, errW: os.Stderr}
}

// Print выводит таблицу либо jsonData.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table печатает выровненную таблицу с разделителем под заголовком.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	sep := make([]string, len(headers))
	for i, h := range headers {
		sep[i] = strings.Repeat("-", max(len(h), 3))
	}
	for _, line := range append([][]string{headers, sep}, rows...) {
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
}

// JSON печатает v с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		o.Error("encode json: " + err.Error())
	}
}

// Success печатает сообщение в stderr, чтобы не смешивать его с данными.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error печатает ошибку в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// Report печатает итог выполнения шага: исход, результаты действий
// и созданных преемников.
func (o *Output) Report(r *engine.Report) {
	if o.jsonMode {
		o.JSON(r)
		return
	}

	o.Table(
		[]string{"STEP_ID", "CASE_ID", "OUTCOME", "SCHEDULED"},
		[][]string{{r.StepID.String(), r.CaseID.String(), string(r.Outcome), formatTime(&r.ScheduledAt)}},
	)

	if len(r.Results) > 0 {
		fmt.Fprintln(o.w)
		o.Table([]string{"ACTION_ID", "TYPE", "RESULT", "ERROR"}, actionResultRows(r.Results))
	}

	if len(r.Scheduled) > 0 {
		o.Success("Successors scheduled: " + joinIDs(r.Scheduled))
	}
}

func actionResultRows(results []domain.ActionResult) [][]string {
	rows := make([][]string, len(results))
	for i, res := range results {
		errText := res.Error
		if errText == "" {
			errText = "-"
		}
		rows[i] = []string{res.ActionID.String(), res.Type, string(res.Status), errText}
	}
	return rows
}

func joinIDs(ids []uuid.UUID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = id.String()
	}
	return strings.Join(s, ", ")
}

// formatTime форматирует момент времени; nil и нулевое время — "-".
func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// formatMoney печатает сумму в евро с двумя знаками.
func formatMoney(d decimal.Decimal) string {
	return "€" + d.StringFixed(2)
}

// formatSuccessor печатает ссылку преемника со смещением, например "2+14d".
func formatSuccessor(s domain.Successor) string {
	return s.Reference + "+" + strconv.Itoa(s.AfterDays) + "d"
}
