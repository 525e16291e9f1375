package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finlix/backend/internal/cache"
	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/repositories"
	"github.com/finlix/backend/internal/utils"
)

// UserInput is what a registration call may supply.
type UserInput struct {
	Name     string
	PhotoURL string
	Role     models.Role
	Status   models.UserStatus
}

type UserService interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// Upsert creates or fully overwrites the record for email.
	Upsert(ctx context.Context, email string, in UserInput) (*models.User, bool, error)
	// CreateIfAbsent registers a new borrower and leaves existing records alone.
	CreateIfAbsent(ctx context.Context, email string, in UserInput) (*models.User, bool, error)
	// GetRole is the public role display; unknown emails report models.RoleNone.
	GetRole(ctx context.Context, email string) (models.Role, error)
	// ActorRole is the cached lookup used by role gates.
	ActorRole(ctx context.Context, email string) (models.Role, error)
	ListAll(ctx context.Context) ([]models.User, error)
	SetRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	SetStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error)
	UpdateOwnProfile(ctx context.Context, email string, p models.ProfileFields) (*models.User, error)
	Stats(ctx context.Context) (models.UserStats, error)
}

type userService struct {
	users repositories.UserRepository
	cache cache.Cache
	ttl   time.Duration
	log   *logrus.Logger
	now   func() time.Time
}

func NewUserService(users repositories.UserRepository, c cache.Cache, ttl time.Duration, log *logrus.Logger) UserService {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = logrus.New()
	}
	return &userService{users: users, cache: c, ttl: ttl, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func userKey(email string) string { return "user:" + email }

func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "UserService.FindByEmail"

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email is required", nil)
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "User profile not found", err)
		}
		return nil, s.internal(op, "failed to fetch user", err)
	}
	return u, nil
}

func (s *userService) Upsert(ctx context.Context, email string, in UserInput) (*models.User, bool, error) {
	const op = "UserService.Upsert"

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, false, utils.E(utils.CodeInvalidArgument, op, "Email is required", nil)
	}
	if in.Role == "" {
		in.Role = models.RoleBorrower
	}
	if !in.Role.Valid() {
		return nil, false, utils.E(utils.CodeInvalidArgument, op, "Invalid role", nil)
	}
	if in.Status == "" {
		in.Status = models.UserPending
	}

	u := &models.User{
		Email:     email,
		Name:      in.Name,
		PhotoURL:  in.PhotoURL,
		Role:      in.Role,
		Status:    in.Status,
		CreatedAt: s.now(),
	}
	created, err := s.users.Upsert(ctx, u)
	if err != nil {
		return nil, false, s.internal(op, "failed to save user", err)
	}
	s.forget(ctx, email)

	stored, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, s.internal(op, "failed to reload user", err)
	}
	return stored, created, nil
}

func (s *userService) CreateIfAbsent(ctx context.Context, email string, in UserInput) (*models.User, bool, error) {
	const op = "UserService.CreateIfAbsent"

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, false, utils.E(utils.CodeInvalidArgument, op, "Email is required", nil)
	}

	// role and status are never taken from a self-registration
	u := &models.User{
		Email:     email,
		Name:      in.Name,
		PhotoURL:  in.PhotoURL,
		Role:      models.RoleBorrower,
		Status:    models.UserPending,
		CreatedAt: s.now(),
	}
	stored, created, err := s.users.CreateIfAbsent(ctx, u)
	if err != nil {
		return nil, false, s.internal(op, "failed to create user", err)
	}
	if created {
		s.forget(ctx, email)
	}
	return stored, created, nil
}

func (s *userService) GetRole(ctx context.Context, email string) (models.Role, error) {
	const op = "UserService.GetRole"

	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return models.RoleNone, nil
		}
		return "", s.internal(op, "failed to fetch role", err)
	}
	if u.Role == "" {
		return models.RoleNone, nil
	}
	return u.Role, nil
}

func (s *userService) ActorRole(ctx context.Context, email string) (models.Role, error) {
	const op = "UserService.ActorRole"

	var cached models.User
	hit, err := s.cache.GetJSON(ctx, userKey(email), &cached)
	if err != nil {
		s.log.WithError(err).WithField("op", op).Warn("user cache read failed")
	}
	if hit {
		return cached.Role, nil
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", utils.E(utils.CodeForbidden, op, "Forbidden: User not found", err)
		}
		return "", s.internal(op, "failed to fetch user", err)
	}
	if err := s.cache.SetJSON(ctx, userKey(email), u, s.ttl); err != nil {
		s.log.WithError(err).WithField("op", op).Warn("user cache write failed")
	}
	return u.Role, nil
}

func (s *userService) ListAll(ctx context.Context) ([]models.User, error) {
	const op = "UserService.ListAll"

	out, err := s.users.List(ctx)
	if err != nil {
		return nil, s.internal(op, "failed to fetch users", err)
	}
	return out, nil
}

func (s *userService) SetRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	const op = "UserService.SetRole"

	if !role.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Invalid role", nil)
	}
	u, err := s.users.SetRole(ctx, id, role)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "User not found", err)
		}
		return nil, s.internal(op, "failed to update user role", err)
	}
	s.forget(ctx, u.Email)
	return u, nil
}

func (s *userService) SetStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error) {
	const op = "UserService.SetStatus"

	if status != models.UserApproved && status != models.UserSuspended {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Invalid status", nil)
	}
	u, err := s.users.SetStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "User not found", err)
		}
		return nil, s.internal(op, "failed to update user status", err)
	}
	s.forget(ctx, u.Email)
	return u, nil
}

func (s *userService) UpdateOwnProfile(ctx context.Context, email string, p models.ProfileFields) (*models.User, error) {
	const op = "UserService.UpdateOwnProfile"

	if email == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized access", nil)
	}
	u, err := s.users.UpdateProfile(ctx, email, models.ProfileFields{Name: p.Name, PhotoURL: p.PhotoURL})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "User not found", err)
		}
		return nil, s.internal(op, "failed to update profile", err)
	}
	s.forget(ctx, email)
	return u, nil
}

func (s *userService) Stats(ctx context.Context) (models.UserStats, error) {
	const op = "UserService.Stats"

	users, err := s.users.List(ctx)
	if err != nil {
		return models.UserStats{}, s.internal(op, "failed to fetch user stats", err)
	}
	st := models.UserStats{TotalUsers: len(users)}
	for _, u := range users {
		switch u.Role {
		case models.RoleBorrower:
			st.BorrowerCount++
		case models.RoleManager:
			st.ManagerCount++
		case models.RoleAdmin:
			st.AdminCount++
		}
	}
	return st, nil
}

func (s *userService) forget(ctx context.Context, email string) {
	if err := s.cache.Del(ctx, userKey(email)); err != nil {
		s.log.WithError(err).WithField("email", email).Warn("user cache invalidation failed")
	}
}

func (s *userService) internal(op, msg string, err error) error {
	s.log.WithError(err).WithField("op", op).Error(msg)
	return utils.E(utils.CodeInternal, op, msg, err)
}
