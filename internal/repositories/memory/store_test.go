package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/utils"
)

func TestLoanRepoListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewLoanRepo()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []models.LoanStatus{models.LoanPending, models.LoanApproved, models.LoanReviewing} {
		l := &models.Loan{Email: "a@x.com", Status: status, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.Create(ctx, l); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := repo.Create(ctx, &models.Loan{Email: "b@x.com", Status: models.LoanPending, CreatedAt: base.Add(10 * time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := repo.List(ctx, models.LoanFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 loans, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatalf("not newest first at %d: %v > %v", i, all[i].CreatedAt, all[i-1].CreatedAt)
		}
	}

	own, _ := repo.List(ctx, models.LoanFilter{Email: "a@x.com"})
	if len(own) != 3 || own[0].Status != models.LoanReviewing {
		t.Fatalf("unexpected owner listing: %+v", own)
	}

	apps, _ := repo.List(ctx, models.LoanFilter{Statuses: []models.LoanStatus{models.LoanPending, models.LoanReviewing}})
	if len(apps) != 3 {
		t.Fatalf("expected 3 applications, got %d", len(apps))
	}
}

func TestLoanRepoConditionalWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewLoanRepo()

	l := &models.Loan{Email: "a@x.com", Status: models.LoanApproved}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := repo.UpdateIfStatus(ctx, l.ID, "a@x.com", models.LoanPending, models.LoanPatch{"status": "Cancelled"})
	if !errors.Is(err, utils.ErrNotMatched) {
		t.Fatalf("expected ErrNotMatched, got %v", err)
	}
	if err := repo.DeleteIfStatus(ctx, l.ID, "a@x.com", models.LoanPending); !errors.Is(err, utils.ErrNotMatched) {
		t.Fatalf("expected ErrNotMatched on delete, got %v", err)
	}

	got, _ := repo.GetByID(ctx, l.ID)
	if got.Status != models.LoanApproved {
		t.Fatalf("loan mutated by failed conditional update: %+v", got)
	}

	if err := repo.Update(ctx, "missing", models.LoanPatch{"status": "Approved"}); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, l.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, l.ID); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestLoanRepoReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewLoanRepo()

	l := &models.Loan{Email: "a@x.com", Status: models.LoanPending, Fields: map[string]any{"amount": 10.0}}
	_ = repo.Create(ctx, l)
	l.Fields["amount"] = 99.0

	got, _ := repo.GetByID(ctx, l.ID)
	if got.Fields["amount"] != 10.0 {
		t.Fatalf("stored loan aliased caller map: %v", got.Fields)
	}
}

func TestUserRepoUpsertAndCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo()

	u := &models.User{Email: "a@x.com", Name: "First", Role: models.RoleBorrower, Status: models.UserPending}
	created, err := repo.Upsert(ctx, u)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}

	created, err = repo.Upsert(ctx, &models.User{Email: "a@x.com", Name: "Second", Role: models.RoleManager, Status: models.UserPending})
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}

	stored, created, err := repo.CreateIfAbsent(ctx, &models.User{Email: "a@x.com", Name: "Third"})
	if err != nil || created {
		t.Fatalf("create-if-absent on existing: created=%v err=%v", created, err)
	}
	if stored.Name != "Second" || stored.Role != models.RoleManager {
		t.Fatalf("create-if-absent changed the record: %+v", stored)
	}

	all, _ := repo.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected one record per email, got %d", len(all))
	}

	if _, err := repo.SetRole(ctx, "nope", models.RoleAdmin); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	updated, err := repo.SetStatus(ctx, stored.ID, models.UserSuspended)
	if err != nil || updated.Status != models.UserSuspended || updated.Email != "a@x.com" {
		t.Fatalf("set status: %+v %v", updated, err)
	}
}
