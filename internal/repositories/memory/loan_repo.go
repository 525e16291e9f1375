package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/repositories"
	"github.com/finlix/backend/internal/utils"
)

type loanRow struct {
	seq  int64
	loan models.Loan
}

type loanRepo struct {
	mu   sync.RWMutex
	seq  int64
	rows map[string]*loanRow
}

func NewLoanRepo() repositories.LoanRepository {
	return &loanRepo{rows: map[string]*loanRow{}}
}

func (r *loanRepo) Create(_ context.Context, l *models.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	r.seq++
	r.rows[l.ID] = &loanRow{seq: r.seq, loan: cloneLoan(*l)}
	return nil
}

func (r *loanRepo) GetByID(_ context.Context, id string) (*models.Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	out := cloneLoan(row.loan)
	return &out, nil
}

func (r *loanRepo) List(_ context.Context, f models.LoanFilter) ([]models.Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []*loanRow
	for _, row := range r.rows {
		if f.Email != "" && row.loan.Email != f.Email {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, row.loan.Status) {
			continue
		}
		hits = append(hits, row)
	}
	sortLoans(hits)

	out := make([]models.Loan, 0, len(hits))
	for _, row := range hits {
		out = append(out, cloneLoan(row.loan))
	}
	return out, nil
}

func (r *loanRepo) UpdateIfStatus(_ context.Context, id, owner string, expected models.LoanStatus, patch models.LoanPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.loan.Email != owner || row.loan.Status != expected {
		return utils.ErrNotMatched
	}
	patch.Apply(&row.loan)
	return nil
}

func (r *loanRepo) Update(_ context.Context, id string, patch models.LoanPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return utils.ErrNotFound
	}
	patch.Apply(&row.loan)
	return nil
}

func (r *loanRepo) DeleteIfStatus(_ context.Context, id, owner string, expected models.LoanStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.loan.Email != owner || row.loan.Status != expected {
		return utils.ErrNotMatched
	}
	delete(r.rows, id)
	return nil
}

func (r *loanRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return utils.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func hasStatus(set []models.LoanStatus, st models.LoanStatus) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}

func cloneLoan(l models.Loan) models.Loan {
	if l.Fields != nil {
		fields := make(map[string]any, len(l.Fields))
		for k, v := range l.Fields {
			fields[k] = v
		}
		l.Fields = fields
	}
	return l
}

// sortLoans orders newest first; equal timestamps keep reverse insertion order.
func sortLoans(rows []*loanRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].loan.CreatedAt.Equal(rows[j].loan.CreatedAt) {
			return rows[i].seq > rows[j].seq
		}
		return rows[i].loan.CreatedAt.After(rows[j].loan.CreatedAt)
	})
}
