package postgres

import (
	"testing"
	"time"

	"github.com/finlix/backend/internal/models"
)

func TestLoanRowRoundTrip(t *testing.T) {
	in := models.Loan{
		ID:         "0b6f3a5e-0f57-4c0d-9a8e-3a9b7b0f1c11",
		Email:      "a@x.com",
		Status:     models.LoanPending,
		CreatedAt:  time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC),
		CreatedBy:  "m@x.com",
		ShowOnHome: true,
		Fields:     map[string]any{"title": "Home loan", "amount": 1500.5},
	}

	row, err := rowFromLoan(&in)
	if err != nil {
		t.Fatalf("rowFromLoan: %v", err)
	}
	out, err := row.model()
	if err != nil {
		t.Fatalf("model: %v", err)
	}

	if out.ID != in.ID || out.Email != in.Email || out.Status != in.Status || out.CreatedBy != in.CreatedBy || !out.ShowOnHome {
		t.Fatalf("typed columns differ: %+v", out)
	}
	if out.Fields["title"] != "Home loan" || out.Fields["amount"] != 1500.5 {
		t.Fatalf("extra fields differ: %+v", out.Fields)
	}
}

func TestLoanRowWithoutExtras(t *testing.T) {
	row, err := rowFromLoan(&models.Loan{ID: "x", Status: models.LoanApproved})
	if err != nil {
		t.Fatalf("rowFromLoan: %v", err)
	}
	if row.Extra != nil {
		t.Fatalf("expected nil extra, got %s", row.Extra)
	}
	l, err := row.model()
	if err != nil || l.Fields != nil {
		t.Fatalf("unexpected fields %v err %v", l.Fields, err)
	}
}
