package mq

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestBackoff(t *testing.T) {
	delays := []time.Duration{}
	d := time.Duration(0)
	for i := 0; i < 8; i++ {
		d = backoff(d)
		delays = append(delays, d)
	}

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("attempt %d: got %s, want %s", i+1, delays[i], want[i])
		}
	}
}

func TestTopology(t *testing.T) {
	queues := make(map[Queue]Binding)
	for _, b := range Topology {
		if _, dup := queues[b.Queue]; dup {
			t.Errorf("queue %s declared twice", b.Queue)
		}
		queues[b.Queue] = b
	}

	due, ok := queues[QueueStepsDue]
	if !ok {
		t.Fatal("steps.due missing")
	}
	if due.Exchange != ExchangeSteps || !due.DeadLetter {
		t.Errorf("steps.due should be on %s with DLQ: %+v", ExchangeSteps, due)
	}

	args := queueArgs(due)
	if args["x-dead-letter-exchange"] != string(ExchangeDLQ) {
		t.Errorf("unexpected DLQ args: %v", args)
	}
	if _, ok := queues[QueueDLQSteps]; !ok {
		t.Error("dlq.steps missing")
	}
	if queueArgs(queues[QueueLedgerFees]) != nil {
		t.Error("ledger.fees has no DLQ")
	}

	if got := len(exchanges()); got != 4 {
		t.Errorf("expected 4 exchanges, got %d", got)
	}
}

func TestDecodeAndParsePayload(t *testing.T) {
	stepID, caseID := uuid.New(), uuid.New()
	scheduled := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)

	body, err := json.Marshal(&Message{
		ID:        "m-1",
		Type:      MessageTypeStepDue,
		Payload:   StepDuePayload{StepID: stepID, CaseID: caseID, ScheduledAt: scheduled},
		Timestamp: scheduled,
	})
	if err != nil {
		t.Fatal(err)
	}

	d, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.ID != "m-1" || d.Type != MessageTypeStepDue {
		t.Errorf("unexpected envelope: %+v", d)
	}

	payload, err := ParsePayload[StepDuePayload](d)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload.StepID != stepID || payload.CaseID != caseID || !payload.ScheduledAt.Equal(scheduled) {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, body := range []string{`not json`, `{"id":"x","payload":{}}`} {
		if _, err := decode([]byte(body)); err == nil {
			t.Errorf("decode(%q) should fail", body)
		}
	}

	if _, err := ParsePayload[StepDuePayload](&Delivery{ID: "x"}); err == nil {
		t.Error("empty payload should fail")
	}
}

func TestDecimalPayloadKeepsPrecision(t *testing.T) {
	body, err := json.Marshal(&Message{
		ID:      "m-2",
		Type:    MessageTypeFeePosted,
		Payload: FeePostedPayload{Amount: decimal.RequireFromString("40.10")},
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err := decode(body)
	if err != nil {
		t.Fatal(err)
	}
	fee, err := ParsePayload[FeePostedPayload](d)
	if err != nil {
		t.Fatal(err)
	}
	if !fee.Amount.Equal(decimal.RequireFromString("40.1")) {
		t.Errorf("amount = %s", fee.Amount)
	}
}

func TestDispose(t *testing.T) {
	base := errors.New("step not found")

	tests := []struct {
		name string
		err  error
		want disposition
	}{
		{"success", nil, dispositionAck},
		{"transient", errors.New("db timeout"), dispositionRequeue},
		{"permanent", Permanent(base), dispositionReject},
		{"wrapped permanent", fmt.Errorf("handle: %w", Permanent(base)), dispositionReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dispose(tt.err); got != tt.want {
				t.Errorf("dispose(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}

	if !errors.Is(Permanent(base), base) {
		t.Error("Permanent should unwrap to the original error")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
