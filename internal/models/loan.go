package models

import (
	"encoding/json"
	"time"
)

type LoanStatus string

const (
	LoanPending   LoanStatus = "Pending"
	LoanReviewing LoanStatus = "Reviewing"
	LoanApproved  LoanStatus = "Approved"
	LoanRejected  LoanStatus = "Rejected"
)

// Document field names shared by every loan store.
const (
	FieldID         = "_id"
	FieldEmail      = "email"
	FieldStatus     = "status"
	FieldCreatedAt  = "createdAt"
	FieldCreatedBy  = "createdBy"
	FieldShowOnHome = "showOnHome"
)

// Loan is a loan application or a manager-published loan offer.
// Fields holds every descriptive attribute that is not one of the typed
// columns above; it is flattened into the top level on the wire.
type Loan struct {
	ID         string
	Email      string
	Status     LoanStatus
	CreatedAt  time.Time
	CreatedBy  string
	ShowOnHome bool
	Fields     map[string]any
}

func (l Loan) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Fields)+6)
	for k, v := range l.Fields {
		out[k] = v
	}
	out[FieldID] = l.ID
	out[FieldEmail] = l.Email
	out[FieldStatus] = l.Status
	out[FieldCreatedAt] = l.CreatedAt
	out[FieldShowOnHome] = l.ShowOnHome
	if l.CreatedBy != "" {
		out[FieldCreatedBy] = l.CreatedBy
	}
	return json.Marshal(out)
}

func (l *Loan) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = LoanFromDocument(raw)
	return nil
}

// LoanFromDocument splits a flat document into typed fields and extras.
func LoanFromDocument(doc map[string]any) Loan {
	var l Loan
	extra := make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case FieldID:
			l.ID, _ = v.(string)
		case FieldEmail:
			l.Email, _ = v.(string)
		case FieldStatus:
			s, _ := v.(string)
			l.Status = LoanStatus(s)
		case FieldCreatedBy:
			l.CreatedBy, _ = v.(string)
		case FieldShowOnHome:
			l.ShowOnHome, _ = v.(bool)
		case FieldCreatedAt:
			switch t := v.(type) {
			case time.Time:
				l.CreatedAt = t
			case string:
				l.CreatedAt, _ = time.Parse(time.RFC3339Nano, t)
			}
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		l.Fields = extra
	}
	return l
}

// LoanPatch is a partial loan update keyed by document field name.
type LoanPatch map[string]any

// Without returns a copy of p with the given keys removed.
func (p LoanPatch) Without(keys ...string) LoanPatch {
	out := make(LoanPatch, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Apply writes the patch onto l.
func (p LoanPatch) Apply(l *Loan) {
	for k, v := range p {
		switch k {
		case FieldID, FieldCreatedAt:
		case FieldEmail:
			l.Email, _ = v.(string)
		case FieldStatus:
			switch s := v.(type) {
			case string:
				l.Status = LoanStatus(s)
			case LoanStatus:
				l.Status = s
			}
		case FieldCreatedBy:
			l.CreatedBy, _ = v.(string)
		case FieldShowOnHome:
			l.ShowOnHome, _ = v.(bool)
		default:
			if l.Fields == nil {
				l.Fields = map[string]any{}
			}
			l.Fields[k] = v
		}
	}
}

type LoanFilter struct {
	Email    string
	Statuses []LoanStatus
}
