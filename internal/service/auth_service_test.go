package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/security"
)

func newTestService() (*AuthService, *repository.MemoryAccountRepository) {
	cfg := &config.AppConfig{
		Session:  config.SessionConfig{AdminEmail: "admin@example.com"},
		Security: config.SecurityConfig{JWTSecret: "test-secret", JWTTTL: time.Hour},
	}
	repo := repository.NewMemoryAccountRepository()
	return NewAuthService(repo, cfg, zerolog.Nop()), repo
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	reg, err := svc.Register(ctx, RegisterInput{Email: " Shopper@Example.com ", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "shopper@example.com", reg.User.Email)
	assert.Equal(t, "shopper", reg.User.Name)
	assert.Equal(t, models.UserRoleUser, reg.User.Role)
	assert.False(t, reg.User.IsAdmin)

	claims, err := security.ParseAccessToken(reg.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	login, err := svc.Login(ctx, LoginInput{Email: "shopper@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	_, err = svc.Login(ctx, LoginInput{Email: "shopper@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, RegisterInput{Email: "shopper@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newTestService()

	for _, in := range []RegisterInput{
		{Email: "not-an-email", Password: "secret123"},
		{Email: "a@localhost", Password: "secret123"},
		{Email: "a@b.co", Password: "12345"},
	} {
		_, err := svc.Register(context.Background(), in)
		var inputErr *InputError
		assert.ErrorAs(t, err, &inputErr, in.Email)
	}
}

func TestAuthService_AdminEmailGetsAdminRole(t *testing.T) {
	svc, _ := newTestService()

	res, err := svc.Register(context.Background(), RegisterInput{Email: "admin@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, res.User.Role)
	assert.True(t, res.User.IsAdmin)
}

func TestAuthService_Suspended(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	hash, err := security.HashPassword("secret123")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, models.Account{
		ID: "s1", Email: "s@b.co", PasswordHash: hash, Role: models.UserRoleUser, Status: models.UserStatusSuspended,
	}))

	_, err = svc.Login(ctx, LoginInput{Email: "s@b.co", Password: "secret123"})
	assert.ErrorIs(t, err, ErrUserSuspended)

	_, err = svc.Account(ctx, "s1")
	assert.ErrorIs(t, err, ErrUserSuspended)
}

func TestAuthService_Google(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	in := GoogleInput{Email: "g@b.co", Name: "Gee", GoogleID: "sub-1", Picture: "https://example.com/p.png"}

	_, err := svc.GoogleLogin(ctx, in)
	assert.ErrorIs(t, err, ErrGoogleNotLinked)

	reg, err := svc.GoogleRegister(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Gee", reg.User.Name)

	_, err = svc.GoogleRegister(ctx, in)
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := svc.GoogleLogin(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	// Google-only accounts cannot sign in with a password.
	_, err = svc.Login(ctx, LoginInput{Email: "g@b.co", Password: ""})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_GoogleLinksPasswordAccount(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	reg, err := svc.Register(ctx, RegisterInput{Email: "p@b.co", Password: "secret123"})
	require.NoError(t, err)

	login, err := svc.GoogleLogin(ctx, GoogleInput{Email: "p@b.co", GoogleID: "sub-9"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	linked, err := repo.FindByGoogleID(ctx, "sub-9")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, linked.ID)
}

func TestAuthService_ListUsers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.Register(ctx, RegisterInput{Email: "u@b.co", Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "admin@example.com", Password: "secret123"})
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin@example.com", users[0].Email)
	assert.True(t, users[0].IsAdmin)
	assert.False(t, users[1].IsAdmin)
}
