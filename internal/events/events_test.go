package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeStreamValues(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b, _ := json.Marshal(LoanEvent{Type: LoanStatusChanged, LoanID: "l1", Owner: "a@x.com", Actor: "m@x.com", Status: "Approved", At: at})

	ev, err := Decode(map[string]any{"type": "loan.status_changed", "payload": string(b)})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != LoanStatusChanged || ev.LoanID != "l1" || ev.Status != "Approved" || !ev.At.Equal(at) {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if _, err := Decode(map[string]any{"type": "loan.created"}); err == nil {
		t.Fatal("expected error without payload")
	}
	if _, err := Decode(map[string]any{"payload": "{"}); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
