package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	st := newTestStore(t)
	svc := NewAuthService(st, testBcryptCost, testLogger())
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{
		Username: "zhangsan",
		Password: "secret123",
		Name:     "张三",
		Email:    "zhangsan@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.NotEmpty(t, user.ID)

	got, err := svc.Login(ctx, LoginRequest{Username: "zhangsan", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	st := newTestStore(t)
	svc := NewAuthService(st, testBcryptCost, testLogger())
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		Username: "zhangsan",
		Password: "secret123",
		Name:     "张三",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Username: "zhangsan", Password: "wrong"})
	assert.Equal(t, domainerrors.CodeInvalidCredentials, domainerrors.CodeOf(err))
	assert.Equal(t, "用户名或密码错误", err.Error())

	// An unknown username produces the same message.
	_, err = svc.Login(ctx, LoginRequest{Username: "nobody", Password: "secret123"})
	assert.Equal(t, domainerrors.CodeInvalidCredentials, domainerrors.CodeOf(err))
	assert.Equal(t, "用户名或密码错误", err.Error())
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	st := newTestStore(t)
	svc := NewAuthService(st, testBcryptCost, testLogger())
	ctx := context.Background()

	req := RegisterRequest{Username: "zhangsan", Password: "secret123", Name: "张三"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	assert.Equal(t, domainerrors.CodeAlreadyExists, domainerrors.CodeOf(err))
}

func TestAuthService_RegisterValidation(t *testing.T) {
	st := newTestStore(t)
	svc := NewAuthService(st, testBcryptCost, testLogger())
	ctx := context.Background()

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing username", RegisterRequest{Password: "secret123", Name: "x"}},
		{"short password", RegisterRequest{Username: "zhangsan", Password: "abc", Name: "x"}},
		{"missing name", RegisterRequest{Username: "zhangsan", Password: "secret123"}},
		{"bad email", RegisterRequest{Username: "zhangsan", Password: "secret123", Name: "x", Email: "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.req)
			assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
		})
	}

	age := 200
	_, err := svc.Register(ctx, RegisterRequest{
		Username: "zhangsan", Password: "secret123", Name: "x", Age: &age,
	})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
	assert.Equal(t, "年龄必须在0到150之间", err.Error())
}

func TestAuthService_ChangePassword(t *testing.T) {
	st := newTestStore(t)
	svc := NewAuthService(st, testBcryptCost, testLogger())
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{
		Username: "zhangsan", Password: "secret123", Name: "张三",
	})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{
		OldPassword: "wrong", NewPassword: "newsecret",
	})
	assert.Equal(t, domainerrors.CodeInvalidCredentials, domainerrors.CodeOf(err))
	assert.Equal(t, "原密码错误", err.Error())

	err = svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{
		OldPassword: "secret123", NewPassword: "newsecret",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Username: "zhangsan", Password: "newsecret"})
	require.NoError(t, err)
	_, err = svc.Login(ctx, LoginRequest{Username: "zhangsan", Password: "secret123"})
	assert.Error(t, err)
}

func TestAuthService_EnsureDefaultAdmin(t *testing.T) {
	st := newTestStore(t)
	svc := NewAuthService(st, testBcryptCost, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.EnsureDefaultAdmin(ctx))

	admin, err := svc.Login(ctx, LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.Equal(t, "系统管理员", admin.Name)

	// Idempotent: a second call creates nothing.
	require.NoError(t, svc.EnsureDefaultAdmin(ctx))
	n, err := st.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAuthService_EnsureDefaultAdmin_SkipsWhenAdminExists(t *testing.T) {
	st := newTestStore(t)
	svc := NewAuthService(st, testBcryptCost, testLogger())
	ctx := context.Background()

	seedUser(t, st, "user-1", "boss", domain.RoleAdmin)

	require.NoError(t, svc.EnsureDefaultAdmin(ctx))

	// No default admin account was added.
	_, err := svc.Login(ctx, LoginRequest{Username: "admin", Password: "admin123"})
	assert.Error(t, err)
}
