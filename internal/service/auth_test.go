package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rrens/projecthub/internal/domain"
	"github.com/Rrens/projecthub/internal/security"
)

func newAuthService(users *MockUserRepository) *AuthService {
	svc := NewAuthService(users, security.NewJWTManager("test-secret-key-with-32-chars!!", 15*time.Minute, time.Hour))
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes email and hashes password", func(t *testing.T) {
		users := new(MockUserRepository)
		svc := newAuthService(users)
		users.On("EmailExists", ctx, "ada@example.com").Return(false, nil)
		users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

		user, err := svc.Register(ctx, domain.UserCreate{Email: " Ada@Example.com ", Name: "Ada", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", user.Email)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
	})

	t.Run("duplicate email", func(t *testing.T) {
		users := new(MockUserRepository)
		svc := newAuthService(users)
		users.On("EmailExists", ctx, "ada@example.com").Return(true, nil)

		_, err := svc.Register(ctx, domain.UserCreate{Email: "ada@example.com", Name: "Ada", Password: "password123"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestAuthService_LoginAndRefresh(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: string(hash)}

	users := new(MockUserRepository)
	svc := newAuthService(users)
	users.On("GetByEmail", ctx, "ada@example.com").Return(user, nil)
	users.On("GetByID", ctx, user.ID).Return(user, nil)

	_, err = svc.Login(ctx, domain.UserLogin{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	pair, err := svc.Login(ctx, domain.UserLogin{Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, user.ID, pair.User.ID)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}
