package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLoanJSONFlattensFields(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l := Loan{
		ID:        "abc",
		Email:     "a@b.com",
		Status:    LoanPending,
		CreatedAt: created,
		Fields:    map[string]any{"amount": 1200.0, "title": "Car"},
	}

	b, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if flat["amount"] != 1200.0 || flat["title"] != "Car" {
		t.Fatalf("descriptive fields not flattened: %v", flat)
	}
	if _, ok := flat["createdBy"]; ok {
		t.Fatalf("createdBy must be omitted when empty: %v", flat)
	}

	var back Loan
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("decode loan: %v", err)
	}
	if back.ID != "abc" || back.Status != LoanPending || !back.CreatedAt.Equal(created) {
		t.Fatalf("unexpected loan: %+v", back)
	}
	if back.Fields["title"] != "Car" {
		t.Fatalf("fields lost: %+v", back.Fields)
	}
}

func TestLoanPatchWithoutAndApply(t *testing.T) {
	p := LoanPatch{"_id": "x", "createdBy": "m@x", "status": "Approved", "amount": 5.0}
	clean := p.Without(FieldID, FieldCreatedBy)
	if _, ok := p["_id"]; !ok {
		t.Fatal("Without must not mutate the receiver")
	}

	l := Loan{ID: "1", CreatedBy: "orig@x"}
	clean.Apply(&l)
	if l.ID != "1" || l.CreatedBy != "orig@x" {
		t.Fatalf("protected fields changed: %+v", l)
	}
	if l.Status != LoanApproved || l.Fields["amount"] != 5.0 {
		t.Fatalf("patch not applied: %+v", l)
	}
}
