package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/repositories"
	"github.com/finlix/backend/internal/utils"
)

// loanRow keeps the typed loan columns; descriptive fields live in extra.
type loanRow struct {
	ID         string         `gorm:"column:id;type:uuid;primaryKey"`
	Email      string         `gorm:"column:email;type:text;not null;index:idx_loans_email_created,priority:1"`
	Status     string         `gorm:"column:status;type:text;not null;index:idx_loans_status_created,priority:1"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamptz;index:idx_loans_email_created,priority:2,sort:desc;index:idx_loans_status_created,priority:2,sort:desc"`
	CreatedBy  string         `gorm:"column:created_by;type:text"`
	ShowOnHome bool           `gorm:"column:show_on_home;not null;default:false"`
	Extra      datatypes.JSON `gorm:"column:extra;type:jsonb"`
}

func (loanRow) TableName() string { return "loans" }

func (r loanRow) model() (models.Loan, error) {
	l := models.Loan{
		ID:         r.ID,
		Email:      r.Email,
		Status:     models.LoanStatus(r.Status),
		CreatedAt:  r.CreatedAt,
		CreatedBy:  r.CreatedBy,
		ShowOnHome: r.ShowOnHome,
	}
	if len(r.Extra) > 0 {
		if err := json.Unmarshal(r.Extra, &l.Fields); err != nil {
			return models.Loan{}, err
		}
	}
	return l, nil
}

func rowFromLoan(l *models.Loan) (loanRow, error) {
	row := loanRow{
		ID:         l.ID,
		Email:      l.Email,
		Status:     string(l.Status),
		CreatedAt:  l.CreatedAt.UTC(),
		CreatedBy:  l.CreatedBy,
		ShowOnHome: l.ShowOnHome,
	}
	if len(l.Fields) > 0 {
		b, err := json.Marshal(l.Fields)
		if err != nil {
			return loanRow{}, err
		}
		row.Extra = datatypes.JSON(b)
	}
	return row, nil
}

type loanRepo struct {
	db *gorm.DB
}

func NewLoanRepo(db *gorm.DB) repositories.LoanRepository {
	return &loanRepo{db: db}
}

// Migrate creates or updates the users and loans tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRow{}, &loanRow{})
}

func (r *loanRepo) Create(ctx context.Context, l *models.Loan) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	row, err := rowFromLoan(l)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *loanRepo) GetByID(ctx context.Context, id string) (*models.Loan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrNotFound
	}
	var row loanRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l, err := row.model()
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *loanRepo) List(ctx context.Context, f models.LoanFilter) ([]models.Loan, error) {
	q := r.db.WithContext(ctx).Model(&loanRow{})
	if f.Email != "" {
		q = q.Where("email = ?", f.Email)
	}
	if len(f.Statuses) > 0 {
		in := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			in = append(in, string(s))
		}
		q = q.Where("status IN ?", in)
	}

	var rows []loanRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Loan, 0, len(rows))
	for _, row := range rows {
		l, err := row.model()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *loanRepo) UpdateIfStatus(ctx context.Context, id, owner string, expected models.LoanStatus, patch models.LoanPatch) error {
	if _, err := uuid.Parse(id); err != nil {
		return utils.ErrNotMatched
	}
	err := r.patchLocked(ctx, patch, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ? AND email = ? AND status = ?", id, owner, string(expected))
	})
	if errors.Is(err, utils.ErrNotFound) {
		return utils.ErrNotMatched
	}
	return err
}

func (r *loanRepo) Update(ctx context.Context, id string, patch models.LoanPatch) error {
	if _, err := uuid.Parse(id); err != nil {
		return utils.ErrNotFound
	}
	return r.patchLocked(ctx, patch, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ?", id)
	})
}

// patchLocked reads the matching row under FOR UPDATE, merges the patch into
// the typed columns and the jsonb extras, and writes it back in one transaction.
func (r *loanRepo) patchLocked(ctx context.Context, patch models.LoanPatch, where func(*gorm.DB) *gorm.DB) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row loanRow
		err := where(tx.Clauses(clause.Locking{Strength: "UPDATE"})).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrNotFound
		}
		if err != nil {
			return err
		}

		l, err := row.model()
		if err != nil {
			return err
		}
		patch.Apply(&l)

		next, err := rowFromLoan(&l)
		if err != nil {
			return err
		}
		return tx.Model(&loanRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"email":        next.Email,
			"status":       next.Status,
			"created_by":   next.CreatedBy,
			"show_on_home": next.ShowOnHome,
			"extra":        next.Extra,
		}).Error
	})
}

func (r *loanRepo) DeleteIfStatus(ctx context.Context, id, owner string, expected models.LoanStatus) error {
	if _, err := uuid.Parse(id); err != nil {
		return utils.ErrNotMatched
	}
	res := r.db.WithContext(ctx).
		Where("id = ? AND email = ? AND status = ?", id, owner, string(expected)).
		Delete(&loanRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotMatched
	}
	return nil
}

func (r *loanRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return utils.ErrNotFound
	}
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&loanRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
