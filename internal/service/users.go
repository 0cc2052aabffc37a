package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/id"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// UserService handles account reads, self-service profile updates and the
// admin user management operations.
type UserService struct {
	store      store.Store
	bcryptCost int
	logger     *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(st store.Store, bcryptCost int, logger *slog.Logger) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{store: st, bcryptCost: bcryptCost, logger: logger}
}

// GetUser returns the account with the given ID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("用户不存在")
		}
		return nil, domainerrors.Storage(err, "get user")
	}
	return user, nil
}

// ListUsers returns every account. Admin only; enforced by the handler.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, domainerrors.Storage(err, "list users")
	}
	return users, nil
}

// UpdateProfileRequest carries a self-service profile update. Role and
// password are deliberately absent; those go through the admin path and
// ChangePassword respectively.
type UpdateProfileRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,max=128"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone  *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Age    *int    `json:"age,omitempty"`
	AgeSet bool    `json:"-"`
}

// UpdateProfile applies a partial update to the calling user's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if req.Age != nil && !domain.ValidAge(*req.Age) {
		return nil, domainerrors.Validation("年龄必须在0到150之间")
	}

	patch := domain.UserPatch{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Age:    req.Age,
		AgeSet: req.AgeSet || req.Age != nil,
	}
	if patch.IsZero() {
		return nil, domainerrors.Validation("没有需要更新的字段")
	}

	if err := s.store.UpdateUser(ctx, userID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("用户不存在")
		}
		return nil, domainerrors.Storage(err, "update user")
	}

	return s.GetUser(ctx, userID)
}

// AdminCreateUserRequest carries an admin-created account, which may start
// with any role.
type AdminCreateUserRequest struct {
	Username string      `json:"username" validate:"required,min=3,max=64"`
	Password string      `json:"password" validate:"required,min=6,max=1024"`
	Name     string      `json:"name" validate:"required,max=128"`
	Email    string      `json:"email" validate:"omitempty,email"`
	Phone    string      `json:"phone" validate:"omitempty,max=32"`
	Age      *int        `json:"age,omitempty"`
	Role     domain.Role `json:"role" validate:"required,oneof=admin member user"`
}

// AdminCreateUser creates an account with an explicit role.
func (s *UserService) AdminCreateUser(ctx context.Context, req AdminCreateUserRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if req.Age != nil && !domain.ValidAge(*req.Age) {
		return nil, domainerrors.Validation("年龄必须在0到150之间")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	user := &domain.User{
		ID:           userID,
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         req.Role,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Age:          req.Age,
		CreatedAt:    time.Now(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("用户名已存在")
		}
		return nil, domainerrors.Storage(err, "create user")
	}

	s.logger.Info("admin created user", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

// AdminUpdateUserRequest carries an admin edit of any account, including
// role changes and password resets.
type AdminUpdateUserRequest struct {
	Name     *string      `json:"name,omitempty" validate:"omitempty,max=128"`
	Email    *string      `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string      `json:"phone,omitempty" validate:"omitempty,max=32"`
	Age      *int         `json:"age,omitempty"`
	AgeSet   bool         `json:"-"`
	Role     *domain.Role `json:"role,omitempty" validate:"omitempty,oneof=admin member user"`
	Password *string      `json:"password,omitempty" validate:"omitempty,min=6,max=1024"`
}

// AdminUpdateUser applies a partial edit to any account.
func (s *UserService) AdminUpdateUser(ctx context.Context, userID string, req AdminUpdateUserRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if req.Age != nil && !domain.ValidAge(*req.Age) {
		return nil, domainerrors.Validation("年龄必须在0到150之间")
	}

	patch := domain.UserPatch{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Age:    req.Age,
		AgeSet: req.AgeSet || req.Age != nil,
		Role:   req.Role,
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		h := string(hash)
		patch.PasswordHash = &h
	}
	if patch.IsZero() {
		return nil, domainerrors.Validation("没有需要更新的字段")
	}

	if err := s.store.UpdateUser(ctx, userID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("用户不存在")
		}
		return nil, domainerrors.Storage(err, "update user")
	}

	s.logger.Info("admin updated user", "user_id", userID)
	return s.GetUser(ctx, userID)
}

// AdminDeleteUser removes an account. The store refuses when the user still
// holds active loans; historical loan rows go with the account.
func (s *UserService) AdminDeleteUser(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("用户不存在")
		}
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return err
		}
		return domainerrors.Storage(err, "delete user")
	}

	s.logger.Info("admin deleted user", "user_id", userID)
	return nil
}
