// Package memory keeps users and loans in process memory. It backs tests
// and STORE_DRIVER=memory.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/repositories"
	"github.com/finlix/backend/internal/utils"
)

type userRepo struct {
	mu      sync.RWMutex
	byEmail map[string]*models.User
	order   []string
}

func NewUserRepo() repositories.UserRepository {
	return &userRepo{byEmail: map[string]*models.User{}}
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byEmail[email]
	if !ok {
		return nil, utils.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *userRepo) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(r.order))
	for _, email := range r.order {
		out = append(out, *r.byEmail[email])
	}
	return out, nil
}

func (r *userRepo) Upsert(_ context.Context, u *models.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.byEmail[u.Email]; ok {
		cur.Name = u.Name
		cur.PhotoURL = u.PhotoURL
		cur.Role = u.Role
		cur.Status = u.Status
		cur.CreatedAt = u.CreatedAt
		u.ID = cur.ID
		return false, nil
	}
	r.insertLocked(u)
	return true, nil
}

func (r *userRepo) CreateIfAbsent(_ context.Context, u *models.User) (*models.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.byEmail[u.Email]; ok {
		out := *cur
		return &out, false, nil
	}
	r.insertLocked(u)
	out := *u
	return &out, true, nil
}

func (r *userRepo) insertLocked(u *models.User) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	stored := *u
	r.byEmail[u.Email] = &stored
	r.order = append(r.order, u.Email)
}

func (r *userRepo) UpdateProfile(_ context.Context, email string, p models.ProfileFields) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byEmail[email]
	if !ok {
		return nil, utils.ErrNotFound
	}
	u.Name = p.Name
	u.PhotoURL = p.PhotoURL
	out := *u
	return &out, nil
}

func (r *userRepo) SetRole(_ context.Context, id string, role models.Role) (*models.User, error) {
	return r.mutateByID(id, func(u *models.User) { u.Role = role })
}

func (r *userRepo) SetStatus(_ context.Context, id string, status models.UserStatus) (*models.User, error) {
	return r.mutateByID(id, func(u *models.User) { u.Status = status })
}

func (r *userRepo) mutateByID(id string, fn func(*models.User)) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byEmail {
		if u.ID == id {
			fn(u)
			out := *u
			return &out, nil
		}
	}
	return nil, utils.ErrNotFound
}
