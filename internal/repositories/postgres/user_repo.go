package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/repositories"
	"github.com/finlix/backend/internal/utils"
)

type userRow struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey"`
	Email     string    `gorm:"column:email;type:text;uniqueIndex;not null"`
	Name      string    `gorm:"column:name;type:text"`
	PhotoURL  string    `gorm:"column:photo_url;type:text"`
	Role      string    `gorm:"column:role;type:text;not null"`
	Status    string    `gorm:"column:status;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz"`
}

func (userRow) TableName() string { return "users" }

func (r userRow) model() *models.User {
	return &models.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		PhotoURL:  r.PhotoURL,
		Role:      models.Role(r.Role),
		Status:    models.UserStatus(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

func rowFromUser(u *models.User) userRow {
	id := u.ID
	if id == "" {
		id = uuid.NewString()
	}
	return userRow{
		ID:        id,
		Email:     u.Email,
		Name:      u.Name,
		PhotoURL:  u.PhotoURL,
		Role:      string(u.Role),
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt.UTC(),
	}
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) repositories.UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.model(), nil
}

func (r *userRepo) List(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.model())
	}
	return out, nil
}

func (r *userRepo) Upsert(ctx context.Context, u *models.User) (bool, error) {
	created, err := r.upsertTx(ctx, u)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent insert of the same email won; overwrite it instead
		created, err = r.upsertTx(ctx, u)
	}
	return created, err
}

func (r *userRepo) upsertTx(ctx context.Context, u *models.User) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur userRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("email = ?", u.Email).Take(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row := rowFromUser(u)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			u.ID = row.ID
			created = true
			return nil
		}
		if err != nil {
			return err
		}
		u.ID = cur.ID
		return tx.Model(&userRow{}).Where("id = ?", cur.ID).Updates(map[string]any{
			"name":       u.Name,
			"photo_url":  u.PhotoURL,
			"role":       string(u.Role),
			"status":     string(u.Status),
			"created_at": u.CreatedAt.UTC(),
		}).Error
	})
	return created, err
}

func (r *userRepo) CreateIfAbsent(ctx context.Context, u *models.User) (*models.User, bool, error) {
	row := rowFromUser(u)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	stored, err := r.GetByEmail(ctx, u.Email)
	if err != nil {
		return nil, false, err
	}
	return stored, res.RowsAffected > 0, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, email string, p models.ProfileFields) (*models.User, error) {
	return r.updateWhere(ctx, "email = ?", email, map[string]any{
		"name":      p.Name,
		"photo_url": p.PhotoURL,
	})
}

func (r *userRepo) SetRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrNotFound
	}
	return r.updateWhere(ctx, "id = ?", id, map[string]any{"role": string(role)})
}

func (r *userRepo) SetStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrNotFound
	}
	return r.updateWhere(ctx, "id = ?", id, map[string]any{"status": string(status)})
}

func (r *userRepo) updateWhere(ctx context.Context, cond string, arg any, set map[string]any) (*models.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userRow{}).Where(cond, arg).Updates(set)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrNotFound
		}
		return tx.Where(cond, arg).Take(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return row.model(), nil
}
