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

// Default admin account created on first startup when no admin exists.
const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
	defaultAdminName     = "系统管理员"
	defaultAdminEmail    = "admin@library.com"
)

// AuthService handles registration, login and password changes.
type AuthService struct {
	store      store.Store
	bcryptCost int
	logger     *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(st store.Store, bcryptCost int, logger *slog.Logger) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{store: st, bcryptCost: bcryptCost, logger: logger}
}

// RegisterRequest contains the data for a self-service registration.
// Registered accounts always start with the user role.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=1024"`
	Name     string `json:"name" validate:"required,max=128"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Age      *int   `json:"age,omitempty"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest carries a password change for the calling user.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=1024"`
}

// Register creates a new user-role account.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if req.Age != nil && !domain.ValidAge(*req.Age) {
		return nil, domainerrors.Validation("年龄必须在0到150之间")
	}

	hash, err := s.hashPassword(req.Password)
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
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Age:          req.Age,
		CreatedAt:    time.Now(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("注册失败，用户名可能已存在")
		}
		return nil, domainerrors.Storage(err, "create user")
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies credentials and returns the account.
// A missing user and a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.InvalidCredentials("用户名或密码错误")
		}
		return nil, domainerrors.Storage(err, "lookup user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, domainerrors.InvalidCredentials("用户名或密码错误")
	}

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// ChangePassword verifies the old password and stores a hash of the new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if err := validate.Validate(req); err != nil {
		return err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("用户不存在")
		}
		return domainerrors.Storage(err, "lookup user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return domainerrors.InvalidCredentials("原密码错误")
	}

	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.UpdateUser(ctx, userID, domain.UserPatch{PasswordHash: &hash}); err != nil {
		return domainerrors.Storage(err, "update password")
	}

	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// EnsureDefaultAdmin creates the bootstrap admin account when the database
// holds no admin at all. Called once at startup.
func (s *AuthService) EnsureDefaultAdmin(ctx context.Context) error {
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return domainerrors.Storage(err, "count admins")
	}
	if n > 0 {
		return nil
	}

	hash, err := s.hashPassword(defaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	adminID, err := id.Generate("user")
	if err != nil {
		return fmt.Errorf("generate user id: %w", err)
	}

	admin := &domain.User{
		ID:           adminID,
		Username:     defaultAdminUsername,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Name:         defaultAdminName,
		Email:        defaultAdminEmail,
		CreatedAt:    time.Now(),
	}

	if err := s.store.CreateUser(ctx, admin); err != nil {
		// Racing startup already created it.
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return domainerrors.Storage(err, "create default admin")
	}

	s.logger.Info("default admin created", "username", defaultAdminUsername)
	return nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
