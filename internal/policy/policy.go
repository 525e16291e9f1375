// Package policy holds the access-control decisions for users and loans.
// Everything here is pure: callers load the actor and the resource, then ask.
package policy

import (
	"sort"
	"strings"

	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/utils"
)

// OwnerMutableStatus is the only loan status in which a borrower may change
// or delete their own loan.
const OwnerMutableStatus = models.LoanPending

// AuthorizeRoleGate allows the actor only when it holds exactly the required role.
func AuthorizeRoleGate(actor, required models.Role) error {
	const op = "policy.AuthorizeRoleGate"
	if actor == "" || actor != required {
		return utils.E(utils.CodeForbidden, op, "Forbidden: "+titleRole(required)+" access required", nil)
	}
	return nil
}

// AuthorizeOwnership allows the actor only on records it owns.
func AuthorizeOwnership(actorEmail, ownerEmail string) error {
	const op = "policy.AuthorizeOwnership"
	if actorEmail == "" || actorEmail != ownerEmail {
		return utils.E(utils.CodeForbidden, op, "Forbidden: cannot access other users' data", nil)
	}
	return nil
}

// AuthorizeLoanQuery resolves the owner filter of a loan listing. An empty
// filter means the actor's own loans; any other email is refused.
func AuthorizeLoanQuery(actorEmail, filterEmail string) (string, error) {
	const op = "policy.AuthorizeLoanQuery"
	if actorEmail == "" {
		return "", utils.E(utils.CodeUnauthorized, op, "unauthorized access", nil)
	}
	if filterEmail == "" {
		return actorEmail, nil
	}
	if filterEmail != actorEmail {
		return "", utils.E(utils.CodeForbidden, op, "Forbidden: Cannot access other users' loan data", nil)
	}
	return filterEmail, nil
}

func titleRole(r models.Role) string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// StatusSet is an explicit set of accepted loan status values.
// The zero value accepts any non-empty status.
type StatusSet struct {
	allowed map[models.LoanStatus]struct{}
}

func NewStatusSet(statuses ...models.LoanStatus) StatusSet {
	s := StatusSet{allowed: make(map[models.LoanStatus]struct{}, len(statuses))}
	for _, st := range statuses {
		s.allowed[st] = struct{}{}
	}
	return s
}

// ParseStatusSet reads a comma separated list. An empty list yields the
// unrestricted set.
func ParseStatusSet(raw string) StatusSet {
	var out []models.LoanStatus
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, models.LoanStatus(p))
		}
	}
	if len(out) == 0 {
		return StatusSet{}
	}
	return NewStatusSet(out...)
}

func (s StatusSet) Unrestricted() bool { return s.allowed == nil }

func (s StatusSet) Allows(st models.LoanStatus) bool {
	if st == "" {
		return false
	}
	if s.allowed == nil {
		return true
	}
	_, ok := s.allowed[st]
	return ok
}

func (s StatusSet) Values() []models.LoanStatus {
	out := make([]models.LoanStatus, 0, len(s.allowed))
	for st := range s.allowed {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LoanStatuses is the full loan status domain.
var LoanStatuses = NewStatusSet(models.LoanPending, models.LoanReviewing, models.LoanApproved, models.LoanRejected)

// LoanRules configures which status values each kind of actor may write.
type LoanRules struct {
	// OwnerTargets limits what a borrower may set on their own Pending loan.
	OwnerTargets StatusSet
	// AdminStatuses is accepted by the admin status route.
	AdminStatuses StatusSet
	// ManagerStatuses is accepted by the manager status and update routes.
	ManagerStatuses StatusSet
}

func DefaultLoanRules() LoanRules {
	return LoanRules{
		OwnerTargets:    StatusSet{},
		AdminStatuses:   NewStatusSet(models.LoanPending, models.LoanApproved, models.LoanRejected),
		ManagerStatuses: LoanStatuses,
	}
}

// CheckStatus validates a requested status against set.
func CheckStatus(set StatusSet, st models.LoanStatus) error {
	const op = "policy.CheckStatus"
	if !set.Allows(st) {
		return utils.E(utils.CodeInvalidArgument, op, "Invalid status", nil)
	}
	return nil
}
