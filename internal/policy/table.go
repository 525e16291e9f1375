package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/finlix/backend/internal/models"
)

// Action names one route-level operation.
type Action string

const (
	ActionRegisterUser    Action = "users.register"
	ActionGetUserRole     Action = "users.role.get"
	ActionGetProfile      Action = "profile.get"
	ActionUpdateProfile   Action = "profile.update"
	ActionUploadPhoto     Action = "profile.photo"
	ActionListUsers       Action = "users.list"
	ActionSetUserRole     Action = "users.role.set"
	ActionSuspendUser     Action = "users.suspend"
	ActionApproveUser     Action = "users.approve"
	ActionUserStats       Action = "users.stats"
	ActionListOwnLoans    Action = "loans.list_own"
	ActionCreateLoan      Action = "loans.create"
	ActionOwnerUpdateLoan Action = "loans.owner_update"
	ActionOwnerDeleteLoan Action = "loans.owner_delete"
	ActionListLoansByUser Action = "loans.list_by_user"
	ActionAdminListLoans  Action = "loans.admin_list"
	ActionListApplication Action = "loans.applications"
	ActionAdminSetStatus  Action = "loans.status.admin"
	ActionShowOnHome      Action = "loans.show_on_home"
	ActionAdminDeleteLoan Action = "loans.admin_delete"
	ActionManagerUpdate   Action = "loans.manager_update"
	ActionManagerList     Action = "loans.manager_list"
	ActionListPending     Action = "loans.pending"
	ActionListApproved    Action = "loans.approved"
	ActionManagerStatus   Action = "loans.status.manager"
)

type GateKind int

const (
	GatePublic GateKind = iota
	GateAuthenticated
	GateRole
)

// Gate is the check a request must pass before its handler runs.
type Gate struct {
	Kind GateKind
	Role models.Role
}

var (
	Public        = Gate{Kind: GatePublic}
	Authenticated = Gate{Kind: GateAuthenticated}
)

func RequireRole(r models.Role) Gate { return Gate{Kind: GateRole, Role: r} }

func (g Gate) String() string {
	switch g.Kind {
	case GatePublic:
		return "public"
	case GateAuthenticated:
		return "authenticated"
	default:
		return "role:" + string(g.Role)
	}
}

// NeedsIdentity reports whether the gate requires a verified bearer token.
func (g Gate) NeedsIdentity() bool { return g.Kind != GatePublic }

// ParseGate accepts "public", "authenticated", "role:<role>" or a bare role name.
func ParseGate(s string) (Gate, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "public":
		return Public, nil
	case "authenticated", "auth":
		return Authenticated, nil
	}
	r := models.Role(strings.TrimPrefix(s, "role:"))
	if !r.Valid() {
		return Gate{}, fmt.Errorf("unknown gate %q", s)
	}
	return RequireRole(r), nil
}

// Table maps every action to its gate.
type Table map[Action]Gate

// DefaultTable reproduces the gates the lending API has always shipped with.
// Several admin-named loan routes are only authenticated here; tighten them
// with overrides rather than by editing this table.
func DefaultTable() Table {
	admin := RequireRole(models.RoleAdmin)
	manager := RequireRole(models.RoleManager)
	return Table{
		ActionRegisterUser:    Public,
		ActionGetUserRole:     Public,
		ActionGetProfile:      Authenticated,
		ActionUpdateProfile:   Authenticated,
		ActionUploadPhoto:     Authenticated,
		ActionListUsers:       admin,
		ActionSetUserRole:     admin,
		ActionSuspendUser:     admin,
		ActionApproveUser:     Authenticated,
		ActionUserStats:       manager,
		ActionListOwnLoans:    Authenticated,
		ActionCreateLoan:      Authenticated,
		ActionOwnerUpdateLoan: Authenticated,
		ActionOwnerDeleteLoan: Authenticated,
		ActionListLoansByUser: Authenticated,
		ActionAdminListLoans:  Authenticated,
		ActionListApplication: Authenticated,
		ActionAdminSetStatus:  admin,
		ActionShowOnHome:      Authenticated,
		ActionAdminDeleteLoan: Authenticated,
		ActionManagerUpdate:   manager,
		ActionManagerList:     manager,
		ActionListPending:     manager,
		ActionListApproved:    manager,
		ActionManagerStatus:   manager,
	}
}

// Gate returns the gate for a, failing closed to admin-only for unknown actions.
func (t Table) Gate(a Action) Gate {
	if g, ok := t[a]; ok {
		return g
	}
	return RequireRole(models.RoleAdmin)
}

// WithOverrides returns a copy of t with entries replaced from a list of the
// form "loans.admin_list=role:admin;users.approve=admin".
func (t Table) WithOverrides(raw string) (Table, error) {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}

	entries := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' })
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		name, gate, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("policy override %q: expected action=gate", e)
		}
		a := Action(strings.TrimSpace(name))
		if _, known := t[a]; !known {
			return nil, fmt.Errorf("policy override %q: unknown action %q", e, a)
		}
		g, err := ParseGate(gate)
		if err != nil {
			return nil, fmt.Errorf("policy override %q: %w", e, err)
		}
		out[a] = g
	}
	return out, nil
}

// Actions lists the table's actions in a stable order.
func (t Table) Actions() []Action {
	out := make([]Action, 0, len(t))
	for a := range t {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
