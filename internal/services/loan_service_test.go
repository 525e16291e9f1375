package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/finlix/backend/internal/events"
	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/policy"
	"github.com/finlix/backend/internal/repositories/memory"
	"github.com/finlix/backend/internal/utils"
)

type recordingPublisher struct {
	mu   sync.Mutex
	evs  []events.LoanEvent
	fail bool
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.LoanEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("stream down")
	}
	p.evs = append(p.evs, ev)
	return nil
}

func newTestLoanService(t *testing.T) (LoanService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewLoanService(memory.NewLoanRepo(), policy.DefaultLoanRules(), pub, quietLogger()), pub
}

func TestBorrowerCreateForcesPending(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestLoanService(t)

	l, err := svc.CreateForBorrower(ctx, "a@x.com", map[string]any{
		"amount":     5000,
		"status":     "Approved",
		"showOnHome": true,
		"email":      "victim@x.com",
		"createdBy":  "boss@x.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Email != "a@x.com" || l.Status != models.LoanPending || l.ShowOnHome || l.CreatedBy != "" {
		t.Fatalf("borrower controlled reserved fields: %+v", l)
	}
	if l.Fields["amount"] != 5000 {
		t.Fatalf("free-form field lost: %+v", l.Fields)
	}
	if len(pub.evs) != 1 || pub.evs[0].Type != events.LoanCreated {
		t.Fatalf("expected one created event, got %+v", pub.evs)
	}
}

func TestManagerCreateSetsCreatedBy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLoanService(t)

	l, err := svc.CreateForManager(ctx, "m@x.com", map[string]any{"title": "Home", "status": "Reviewing", "showOnHome": true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.CreatedBy != "m@x.com" || l.Status != models.LoanReviewing || !l.ShowOnHome {
		t.Fatalf("unexpected manager loan: %+v", l)
	}

	l, err = svc.CreateForManager(ctx, "m@x.com", map[string]any{"title": "Car"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Status != models.LoanPending || l.ShowOnHome {
		t.Fatalf("manager defaults not applied: %+v", l)
	}

	if _, err := svc.CreateForManager(ctx, "m@x.com", map[string]any{"status": "Archived"}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := svc.CreateForManager(ctx, "m@x.com", map[string]any{"showOnHome": "yes"}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected invalid showOnHome, got %v", err)
	}
}

func TestOwnerCannotTouchApprovedLoan(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestLoanService(t)

	l, _ := svc.CreateForBorrower(ctx, "a@x.com", map[string]any{"amount": 100})
	if err := svc.SetStatus(ctx, "root@x.com", l.ID, models.LoanApproved, models.RoleAdmin); err != nil {
		t.Fatalf("approve: %v", err)
	}
	before := len(pub.evs)

	err := svc.OwnerUpdateStatus(ctx, "a@x.com", l.ID, "Cancelled")
	if !utils.IsCode(err, utils.CodeNotMatched) {
		t.Fatalf("expected not matched, got %v", err)
	}
	if err := svc.OwnerDelete(ctx, "a@x.com", l.ID); !utils.IsCode(err, utils.CodeNotMatched) {
		t.Fatalf("expected not matched on delete, got %v", err)
	}

	got, _ := svc.Get(ctx, l.ID)
	if got.Status != models.LoanApproved {
		t.Fatalf("approved loan was mutated: %+v", got)
	}
	if len(pub.evs) != before {
		t.Fatalf("rejected writes published events")
	}
}

func TestOwnerCancelsPendingLoan(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLoanService(t)
	l, _ := svc.CreateForBorrower(ctx, "a@x.com", nil)

	if err := svc.OwnerUpdateStatus(ctx, "b@x.com", l.ID, "Cancelled"); !utils.IsCode(err, utils.CodeForbidden) {
		t.Fatalf("expected forbidden for non-owner, got %v", err)
	}
	if err := svc.OwnerUpdateStatus(ctx, "a@x.com", "missing", "Cancelled"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.OwnerUpdateStatus(ctx, "a@x.com", l.ID, "Cancelled"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := svc.Get(ctx, l.ID)
	if got.Status != "Cancelled" {
		t.Fatalf("status = %q, want Cancelled", got.Status)
	}
}

func TestOwnerDeletePendingLoan(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLoanService(t)
	l, _ := svc.CreateForBorrower(ctx, "a@x.com", nil)

	if err := svc.OwnerDelete(ctx, "b@x.com", l.ID); !utils.IsCode(err, utils.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.OwnerDelete(ctx, "a@x.com", l.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, l.ID); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected deleted loan to be gone, got %v", err)
	}
}

func TestListingsAreNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLoanService(t)

	first, _ := svc.CreateForBorrower(ctx, "a@x.com", nil)
	time.Sleep(2 * time.Millisecond)
	second, _ := svc.CreateForBorrower(ctx, "a@x.com", nil)
	_, _ = svc.CreateForBorrower(ctx, "b@x.com", nil)

	own, err := svc.ListForActor(ctx, "a@x.com", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(own) != 2 || own[0].ID != second.ID || own[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", own)
	}

	if _, err := svc.ListForActor(ctx, "a@x.com", "b@x.com"); !utils.IsCode(err, utils.CodeForbidden) {
		t.Fatalf("expected forbidden for foreign filter, got %v", err)
	}

	all, _ := svc.ListAll(ctx)
	if len(all) != 3 {
		t.Fatalf("expected 3 loans, got %d", len(all))
	}

	_ = svc.SetStatus(ctx, "m@x.com", first.ID, models.LoanApproved, models.RoleManager)
	pending, _ := svc.ListByStatusIn(ctx, models.LoanPending)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
}

func TestSetStatusUsesRoleSpecificSet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLoanService(t)
	l, _ := svc.CreateForBorrower(ctx, "a@x.com", nil)

	if err := svc.SetStatus(ctx, "root@x.com", l.ID, models.LoanReviewing, models.RoleAdmin); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("admin must not set Reviewing by default, got %v", err)
	}
	if err := svc.SetStatus(ctx, "m@x.com", l.ID, models.LoanReviewing, models.RoleManager); err != nil {
		t.Fatalf("manager reviewing: %v", err)
	}
	if err := svc.SetStatus(ctx, "root@x.com", "missing", models.LoanApproved, models.RoleAdmin); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestManagerUpdateStripsProtectedKeys(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLoanService(t)
	l, _ := svc.CreateForBorrower(ctx, "a@x.com", nil)

	err := svc.ManagerUpdate(ctx, "m@x.com", l.ID, models.LoanPatch{
		"note":      "checked",
		"email":     "other@x.com",
		"createdBy": "m@x.com",
		"status":    "Reviewing",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := svc.Get(ctx, l.ID)
	if got.Email != "a@x.com" || got.CreatedBy != "" || got.Status != models.LoanReviewing || got.Fields["note"] != "checked" {
		t.Fatalf("unexpected loan after update: %+v", got)
	}

	if err := svc.ManagerUpdate(ctx, "m@x.com", l.ID, models.LoanPatch{"_id": "x"}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected empty patch error, got %v", err)
	}
	if err := svc.ManagerUpdate(ctx, "m@x.com", l.ID, models.LoanPatch{"status": "Gone"}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestShowOnHomeAndAdminDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLoanService(t)
	l, _ := svc.CreateForBorrower(ctx, "a@x.com", nil)

	if err := svc.SetShowOnHome(ctx, "root@x.com", l.ID, true); err != nil {
		t.Fatalf("show on home: %v", err)
	}
	got, _ := svc.Get(ctx, l.ID)
	if !got.ShowOnHome {
		t.Fatal("showOnHome not set")
	}
	if err := svc.AdminDelete(ctx, "root@x.com", l.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if err := svc.AdminDelete(ctx, "root@x.com", l.ID); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestLoanService(t)
	pub.fail = true

	if _, err := svc.CreateForBorrower(ctx, "a@x.com", nil); err != nil {
		t.Fatalf("create must succeed when the stream is down: %v", err)
	}
}
