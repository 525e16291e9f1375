package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finlix/backend/internal/events"
	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/policy"
	"github.com/finlix/backend/internal/repositories"
	"github.com/finlix/backend/internal/utils"
)

// Keys a caller can never write on a loan.
var protectedLoanKeys = []string{models.FieldID, "id", models.FieldCreatedAt, models.FieldCreatedBy, models.FieldEmail}

type LoanService interface {
	// ListForActor lists the actor's own loans; filterEmail must be empty or the actor.
	ListForActor(ctx context.Context, actorEmail, filterEmail string) ([]models.Loan, error)
	ListForOwner(ctx context.Context, email string) ([]models.Loan, error)
	ListAll(ctx context.Context) ([]models.Loan, error)
	ListByStatusIn(ctx context.Context, statuses ...models.LoanStatus) ([]models.Loan, error)
	Get(ctx context.Context, id string) (*models.Loan, error)

	CreateForBorrower(ctx context.Context, actorEmail string, fields map[string]any) (*models.Loan, error)
	CreateForManager(ctx context.Context, managerEmail string, fields map[string]any) (*models.Loan, error)

	// OwnerUpdateStatus and OwnerDelete act only on the actor's own Pending loans.
	OwnerUpdateStatus(ctx context.Context, actorEmail, id string, status models.LoanStatus) error
	OwnerDelete(ctx context.Context, actorEmail, id string) error

	// SetStatus is the privileged transition; by selects the admin or manager value set.
	SetStatus(ctx context.Context, actorEmail, id string, status models.LoanStatus, by models.Role) error
	SetShowOnHome(ctx context.Context, actorEmail, id string, show bool) error
	ManagerUpdate(ctx context.Context, actorEmail, id string, patch models.LoanPatch) error
	AdminDelete(ctx context.Context, actorEmail, id string) error
}

type loanService struct {
	loans  repositories.LoanRepository
	rules  policy.LoanRules
	events events.Publisher
	log    *logrus.Logger
	now    func() time.Time
}

func NewLoanService(loans repositories.LoanRepository, rules policy.LoanRules, pub events.Publisher, log *logrus.Logger) LoanService {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = logrus.New()
	}
	return &loanService{loans: loans, rules: rules, events: pub, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (s *loanService) ListForActor(ctx context.Context, actorEmail, filterEmail string) ([]models.Loan, error) {
	email, err := policy.AuthorizeLoanQuery(actorEmail, filterEmail)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "LoanService.ListForActor", models.LoanFilter{Email: email})
}

func (s *loanService) ListForOwner(ctx context.Context, email string) ([]models.Loan, error) {
	const op = "LoanService.ListForOwner"
	if email == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email is required", nil)
	}
	return s.list(ctx, op, models.LoanFilter{Email: email})
}

func (s *loanService) ListAll(ctx context.Context) ([]models.Loan, error) {
	return s.list(ctx, "LoanService.ListAll", models.LoanFilter{})
}

func (s *loanService) ListByStatusIn(ctx context.Context, statuses ...models.LoanStatus) ([]models.Loan, error) {
	const op = "LoanService.ListByStatusIn"
	if len(statuses) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one status is required", nil)
	}
	return s.list(ctx, op, models.LoanFilter{Statuses: statuses})
}

func (s *loanService) list(ctx context.Context, op string, f models.LoanFilter) ([]models.Loan, error) {
	out, err := s.loans.List(ctx, f)
	if err != nil {
		return nil, s.internal(op, "Failed to fetch loans", err)
	}
	return out, nil
}

func (s *loanService) Get(ctx context.Context, id string) (*models.Loan, error) {
	const op = "LoanService.Get"

	l, err := s.loans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Loan not found", err)
		}
		return nil, s.internal(op, "Failed to fetch loan", err)
	}
	return l, nil
}

func (s *loanService) CreateForBorrower(ctx context.Context, actorEmail string, fields map[string]any) (*models.Loan, error) {
	const op = "LoanService.CreateForBorrower"

	if actorEmail == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized access", nil)
	}
	extra := models.LoanPatch(fields).Without(append(protectedLoanKeys, models.FieldStatus, models.FieldShowOnHome)...)

	l := &models.Loan{
		Email:     actorEmail,
		Status:    models.LoanPending,
		CreatedAt: s.now(),
		Fields:    extra,
	}
	if err := s.loans.Create(ctx, l); err != nil {
		return nil, s.internal(op, "Failed to save loan application", err)
	}
	s.publish(ctx, events.LoanCreated, l, actorEmail)
	return l, nil
}

func (s *loanService) CreateForManager(ctx context.Context, managerEmail string, fields map[string]any) (*models.Loan, error) {
	const op = "LoanService.CreateForManager"

	if managerEmail == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized access", nil)
	}
	patch := models.LoanPatch(fields).Without(protectedLoanKeys...)

	status := models.LoanPending
	if raw, ok := patch[models.FieldStatus]; ok {
		st, ok := raw.(string)
		if !ok || !s.rules.ManagerStatuses.Allows(models.LoanStatus(st)) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "Invalid status", nil)
		}
		status = models.LoanStatus(st)
	}
	show := false
	if raw, ok := patch[models.FieldShowOnHome]; ok {
		b, ok := raw.(bool)
		if !ok {
			return nil, utils.E(utils.CodeInvalidArgument, op, "showOnHome must be a boolean", nil)
		}
		show = b
	}

	l := &models.Loan{
		Email:      managerEmail,
		Status:     status,
		CreatedAt:  s.now(),
		CreatedBy:  managerEmail,
		ShowOnHome: show,
		Fields:     patch.Without(models.FieldStatus, models.FieldShowOnHome),
	}
	if err := s.loans.Create(ctx, l); err != nil {
		return nil, s.internal(op, "Failed to create loan", err)
	}
	s.publish(ctx, events.LoanCreated, l, managerEmail)
	return l, nil
}

func (s *loanService) OwnerUpdateStatus(ctx context.Context, actorEmail, id string, status models.LoanStatus) error {
	const op = "LoanService.OwnerUpdateStatus"

	if status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "status is required", nil)
	}
	l, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.AuthorizeOwnership(actorEmail, l.Email); err != nil {
		return utils.E(utils.CodeForbidden, op, "Forbidden: Cannot modify other users' loan data", err)
	}
	if err := policy.CheckStatus(s.rules.OwnerTargets, status); err != nil {
		return err
	}

	err = s.loans.UpdateIfStatus(ctx, id, actorEmail, policy.OwnerMutableStatus, models.LoanPatch{models.FieldStatus: string(status)})
	if err != nil {
		if errors.Is(err, utils.ErrNotMatched) {
			return utils.E(utils.CodeNotMatched, op, "Loan not found or not in Pending status", err)
		}
		return s.internal(op, "Failed to update loan status", err)
	}
	l.Status = status
	s.publish(ctx, events.LoanStatusChanged, l, actorEmail)
	return nil
}

func (s *loanService) OwnerDelete(ctx context.Context, actorEmail, id string) error {
	const op = "LoanService.OwnerDelete"

	l, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.AuthorizeOwnership(actorEmail, l.Email); err != nil {
		return utils.E(utils.CodeForbidden, op, "Forbidden: Cannot delete other users' loan data", err)
	}

	if err := s.loans.DeleteIfStatus(ctx, id, actorEmail, policy.OwnerMutableStatus); err != nil {
		if errors.Is(err, utils.ErrNotMatched) {
			return utils.E(utils.CodeNotMatched, op, "Loan not found or not in Pending status", err)
		}
		return s.internal(op, "Failed to delete loan", err)
	}
	s.publish(ctx, events.LoanDeleted, l, actorEmail)
	return nil
}

func (s *loanService) SetStatus(ctx context.Context, actorEmail, id string, status models.LoanStatus, by models.Role) error {
	const op = "LoanService.SetStatus"

	allowed := s.rules.ManagerStatuses
	if by == models.RoleAdmin {
		allowed = s.rules.AdminStatuses
	}
	if err := policy.CheckStatus(allowed, status); err != nil {
		return err
	}
	if err := s.update(ctx, op, id, models.LoanPatch{models.FieldStatus: string(status)}); err != nil {
		return err
	}
	s.publish(ctx, events.LoanStatusChanged, &models.Loan{ID: id, Status: status}, actorEmail)
	return nil
}

func (s *loanService) SetShowOnHome(ctx context.Context, actorEmail, id string, show bool) error {
	const op = "LoanService.SetShowOnHome"

	if err := s.update(ctx, op, id, models.LoanPatch{models.FieldShowOnHome: show}); err != nil {
		return err
	}
	s.publish(ctx, events.LoanUpdated, &models.Loan{ID: id}, actorEmail)
	return nil
}

func (s *loanService) ManagerUpdate(ctx context.Context, actorEmail, id string, patch models.LoanPatch) error {
	const op = "LoanService.ManagerUpdate"

	clean := patch.Without(protectedLoanKeys...)
	if len(clean) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "no updatable fields supplied", nil)
	}
	if raw, ok := clean[models.FieldStatus]; ok {
		st, ok := raw.(string)
		if !ok {
			return utils.E(utils.CodeInvalidArgument, op, "Invalid status", nil)
		}
		if err := policy.CheckStatus(s.rules.ManagerStatuses, models.LoanStatus(st)); err != nil {
			return err
		}
	}
	if raw, ok := clean[models.FieldShowOnHome]; ok {
		if _, ok := raw.(bool); !ok {
			return utils.E(utils.CodeInvalidArgument, op, "showOnHome must be a boolean", nil)
		}
	}

	if err := s.update(ctx, op, id, clean); err != nil {
		return err
	}
	s.publish(ctx, events.LoanUpdated, &models.Loan{ID: id}, actorEmail)
	return nil
}

func (s *loanService) AdminDelete(ctx context.Context, actorEmail, id string) error {
	const op = "LoanService.AdminDelete"

	if err := s.loans.Delete(ctx, id); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "Loan not found", err)
		}
		return s.internal(op, "Failed to delete loan", err)
	}
	s.publish(ctx, events.LoanDeleted, &models.Loan{ID: id}, actorEmail)
	return nil
}

func (s *loanService) update(ctx context.Context, op, id string, patch models.LoanPatch) error {
	if err := s.loans.Update(ctx, id, patch); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "Loan not found", err)
		}
		return s.internal(op, "Failed to update loan", err)
	}
	return nil
}

func (s *loanService) publish(ctx context.Context, typ events.Type, l *models.Loan, actor string) {
	ev := events.LoanEvent{
		Type:   typ,
		LoanID: l.ID,
		Owner:  l.Email,
		Actor:  actor,
		Status: string(l.Status),
		At:     s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"event": typ, "loan_id": l.ID}).Warn("loan event not published")
	}
}

func (s *loanService) internal(op, msg string, err error) error {
	s.log.WithError(err).WithField("op", op).Error(msg)
	return utils.E(utils.CodeInternal, op, msg, err)
}
