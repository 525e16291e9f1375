// Package repositories declares the storage contracts shared by the mongo,
// postgres and memory backends.
package repositories

import (
	"context"

	"github.com/finlix/backend/internal/models"
)

// UserRepository stores one user record per email.
// Lookups return utils.ErrNotFound when nothing matches.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)

	// Upsert writes name, photoURL, role, status and createdAt, creating the
	// record when the email is new. It reports whether a record was created.
	Upsert(ctx context.Context, u *models.User) (created bool, err error)
	// CreateIfAbsent inserts u unless the email exists, and returns the stored record.
	CreateIfAbsent(ctx context.Context, u *models.User) (stored *models.User, created bool, err error)

	UpdateProfile(ctx context.Context, email string, p models.ProfileFields) (*models.User, error)
	SetRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	SetStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error)
}

// LoanRepository stores loans. Every list is ordered by createdAt descending.
type LoanRepository interface {
	Create(ctx context.Context, l *models.Loan) error
	GetByID(ctx context.Context, id string) (*models.Loan, error)
	List(ctx context.Context, f models.LoanFilter) ([]models.Loan, error)

	// UpdateIfStatus applies patch only when id, owner and status all match,
	// in one atomic operation. A miss returns utils.ErrNotMatched.
	UpdateIfStatus(ctx context.Context, id, owner string, expected models.LoanStatus, patch models.LoanPatch) error
	// Update applies patch regardless of status; utils.ErrNotFound on unknown id.
	Update(ctx context.Context, id string, patch models.LoanPatch) error

	DeleteIfStatus(ctx context.Context, id, owner string, expected models.LoanStatus) error
	Delete(ctx context.Context, id string) error
}
