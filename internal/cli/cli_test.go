package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shaiso/Collector/internal/config"
	"github.com/shaiso/Collector/internal/domain"
	"github.com/shaiso/Collector/internal/engine"
)

func testRuntime() *Runtime {
	return &Runtime{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		loadCfg: func() (*config.Config, error) {
			return &config.Config{DispatchTimezone: "UTC"}, nil
		},
	}
}

func bufferOutput(jsonMode bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &stdout, errW: &stderr}, &stdout, &stderr
}

func TestParseTime(t *testing.T) {
	now := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	loc := time.FixedZone("CET", 3600)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "now", want: now},
		{in: "", want: now},
		{in: "2024-12-25T10:00:00Z", want: time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)},
		{in: "2024-12-25", want: time.Date(2024, 12, 25, 0, 0, 0, 0, loc)},
		{in: "2024-12-25 14:30", want: time.Date(2024, 12, 25, 14, 30, 0, 0, loc)},
		{in: "25/12/2024", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTime(tt.in, loc, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCaseInput_Build(t *testing.T) {
	now := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

	c, err := caseInput{reference: "2024-00017", debtorName: "J. Jansen", principal: "1250.00"}.build(now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.State != domain.CaseOpen {
		t.Errorf("state = %s, want open", c.State)
	}
	if !c.Principal.Equal(decimal.RequireFromString("1250")) {
		t.Errorf("principal = %s", c.Principal)
	}
	if !c.CollectionCosts.Equal(domain.CollectionCosts(c.Principal)) {
		t.Errorf("collection costs not computed: %s", c.CollectionCosts)
	}
	if c.BillingPrice != nil {
		t.Error("billing must start unset")
	}
}

func TestCaseInput_BuildInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   caseInput
	}{
		{name: "no reference", in: caseInput{principal: "10"}},
		{name: "bad principal", in: caseInput{reference: "X", principal: "ten"}},
		{name: "negative principal", in: caseInput{reference: "X", principal: "-1"}},
		{name: "bad bailiff", in: caseInput{reference: "X", principal: "1", bailiff: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.in.build(time.Now()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOutput_Table(t *testing.T) {
	out, stdout, _ := bufferOutput(false)
	out.Print([]string{"REF", "LABEL"}, [][]string{{"1", "Aanmaning"}}, nil)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, separator and one row, got %q", stdout.String())
	}
	if !strings.HasPrefix(lines[1], "---") {
		t.Errorf("expected separator line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "Aanmaning") {
		t.Errorf("row missing label: %q", lines[2])
	}
}

func TestCalendarAdjustCmd_JSON(t *testing.T) {
	out, stdout, _ := bufferOutput(true)
	cmd := NewCalendarCmd(testRuntime(), func() *Output { return out })
	cmd.SetArgs([]string{"adjust", "2024-12-25T10:00:00Z"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var days []calendarDay
	if err := json.Unmarshal(stdout.Bytes(), &days); err != nil {
		t.Fatalf("unmarshal %q: %v", stdout.String(), err)
	}
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	d := days[0]
	if d.BusinessDay {
		t.Error("Christmas must not be a business day")
	}
	want := time.Date(2024, 12, 27, 10, 0, 0, 0, time.UTC)
	if !d.Adjusted.Equal(want) {
		t.Errorf("adjusted = %v, want %v", d.Adjusted, want)
	}
}

func TestCalendarAdjustCmd_ClosingDaysFromConfig(t *testing.T) {
	out, stdout, _ := bufferOutput(true)
	rt := testRuntime()
	rt.loadCfg = func() (*config.Config, error) {
		return &config.Config{DispatchTimezone: "UTC", ClosingDays: []string{"2024-12-27"}}, nil
	}
	cmd := NewCalendarCmd(rt, func() *Output { return out })
	cmd.SetArgs([]string{"adjust", "2024-12-25T10:00:00Z"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var days []calendarDay
	if err := json.Unmarshal(stdout.Bytes(), &days); err != nil {
		t.Fatalf("unmarshal %q: %v", stdout.String(), err)
	}
	// 27-го закрыто, дальше выходные
	want := time.Date(2024, 12, 30, 10, 0, 0, 0, time.UTC)
	if len(days) != 1 || !days[0].Adjusted.Equal(want) {
		t.Errorf("adjusted = %+v, want %v", days, want)
	}
}

func TestCalendarCheckCmd_Days(t *testing.T) {
	out, stdout, _ := bufferOutput(true)
	cmd := NewCalendarCmd(testRuntime(), func() *Output { return out })
	cmd.SetArgs([]string{"check", "2024-06-14", "--days", "3"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var days []calendarDay
	if err := json.Unmarshal(stdout.Bytes(), &days); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// пятница, суббота, воскресенье
	wantBusiness := []bool{true, false, false}
	if len(days) != len(wantBusiness) {
		t.Fatalf("expected %d days, got %d", len(wantBusiness), len(days))
	}
	for i, d := range days {
		if d.BusinessDay != wantBusiness[i] {
			t.Errorf("day %d (%s): business=%v", i, d.Input.Weekday(), d.BusinessDay)
		}
	}
}

func TestTemplateListCmd_Default(t *testing.T) {
	out, stdout, _ := bufferOutput(true)
	cmd := NewTemplateCmd(testRuntime(), func() *Output { return out })
	cmd.SetArgs([]string{"list"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var tpls []domain.WorkflowTemplate
	if err := json.Unmarshal(stdout.Bytes(), &tpls); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(tpls) == 0 {
		t.Fatal("built-in catalog must not be empty")
	}

	var hasFirst bool
	for _, tpl := range tpls {
		if tpl.Reference == domain.FirstCollectionReference {
			hasFirst = true
		}
	}
	if !hasFirst {
		t.Error("built-in catalog must contain the first collection stage")
	}
}

func TestOutput_ReportTable(t *testing.T) {
	out, stdout, stderr := bufferOutput(false)
	next := uuid.New()
	out.Report(&engine.Report{
		StepID:    uuid.New(),
		CaseID:    uuid.New(),
		Outcome:   engine.OutcomeActionsFailed,
		Results:   []domain.ActionResult{{ActionID: uuid.New(), Type: "debtor_notice", Status: domain.ResultFailed}},
		Scheduled: []uuid.UUID{next},
	})

	if !strings.Contains(stdout.String(), "actions_failed") {
		t.Errorf("outcome missing: %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "debtor_notice") {
		t.Errorf("action row missing: %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), next.String()) {
		t.Errorf("scheduled successor missing: %q", stderr.String())
	}
}

func TestFormatMoney(t *testing.T) {
	if got := formatMoney(decimal.RequireFromString("9.5")); got != "€9.50" {
		t.Errorf("formatMoney = %q", got)
	}
	if got := formatSuccessor(domain.Successor{Reference: "2", AfterDays: 14}); got != "2+14d" {
		t.Errorf("formatSuccessor = %q", got)
	}
}

func TestTemplateNextCmd(t *testing.T) {
	out, stdout, _ := bufferOutput(true)
	cmd := NewTemplateCmd(testRuntime(), func() *Output { return out })
	cmd.SetArgs([]string{"next", domain.FirstCollectionReference})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var next []successorView
	if err := json.Unmarshal(stdout.Bytes(), &next); err != nil {
		t.Fatalf("unmarshal %q: %v", stdout.String(), err)
	}
	if len(next) != 1 || next[0].Reference != "2" || next[0].AfterDays != 14 {
		t.Errorf("unexpected successors: %+v", next)
	}
}

func TestTemplateNextCmd_UnknownRef(t *testing.T) {
	out, _, _ := bufferOutput(false)
	cmd := NewTemplateCmd(testRuntime(), func() *Output { return out })
	cmd.SetArgs([]string{"next", "99"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestTemplateCheckCmd_MissingFile(t *testing.T) {
	out, _, _ := bufferOutput(false)
	cmd := NewTemplateCmd(testRuntime(), func() *Output { return out })
	cmd.SetArgs([]string{"check", "/nonexistent/catalog.yaml"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRuntime_ConfigCached(t *testing.T) {
	calls := 0
	rt := &Runtime{loadCfg: func() (*config.Config, error) {
		calls++
		return &config.Config{DispatchTimezone: "UTC"}, nil
	}}

	rt.Config()
	rt.Config()
	if calls != 1 {
		t.Errorf("config loaded %d times, want 1", calls)
	}
}

func TestRuntime_LocationFallsBackToUTC(t *testing.T) {
	rt := &Runtime{loadCfg: func() (*config.Config, error) {
		return nil, errors.New("no config")
	}}
	if rt.location() != time.UTC {
		t.Error("expected UTC fallback")
	}
}

func TestStepRows_HistoryDate(t *testing.T) {
	ref := "2"
	scheduled := time.Date(2024, 6, 26, 9, 0, 0, 0, time.UTC)
	performed := time.Date(2024, 6, 20, 14, 30, 0, 0, time.UTC)

	steps := []domain.CaseStep{
		{ID: uuid.New(), TemplateRef: &ref, Label: "Tweede aanmaning", State: domain.StepPerformed, ScheduledAt: scheduled, PerformedAt: &performed},
		{ID: uuid.New(), Label: "Bellen", State: domain.StepUnperformed, ScheduledAt: scheduled},
	}

	rows := stepRows(steps)
	if len(rows) != 2 || len(rows[0]) != len(stepHeaders) {
		t.Fatalf("unexpected shape: %v", rows)
	}
	if rows[0][4] != "2024-06-20" {
		t.Errorf("performed step date = %q", rows[0][4])
	}
	if rows[1][4] != "2024-06-26" {
		t.Errorf("pending step date = %q", rows[1][4])
	}
}
