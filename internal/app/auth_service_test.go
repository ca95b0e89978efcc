package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina-research/internal/cache"
	"lumina-research/internal/pkg/jwtutil"
)

func newTestAuth(t *testing.T) (*AuthService, *cache.MemoryBlobStore) {
	t.Helper()
	blobs := cache.NewMemoryBlobStore()
	return NewAuthService(blobs, "test-secret", time.Hour), blobs
}

func TestAuth_RegisterStartsSession(t *testing.T) {
	ctx := context.Background()
	auth, blobs := newTestAuth(t)

	res, err := auth.Register(ctx, RegisterInput{Name: "Ada", Email: " Ada@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.NotEmpty(t, res.User.ID)

	claims, err := jwtutil.ParseToken("test-secret", res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	current, err := auth.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, res.User.ID, current.ID)

	raw, ok, err := blobs.Get(ctx, usersKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(raw), "correct-horse")
}

func TestAuth_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{name: "missing name", input: RegisterInput{Email: "a@b.co", Password: "long-enough"}},
		{name: "bad email", input: RegisterInput{Name: "A", Email: "nope", Password: "long-enough"}},
		{name: "short password", input: RegisterInput{Name: "A", Email: "a@b.co", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Register(ctx, tt.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAuth_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)

	_, err := auth.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password-1"})
	require.NoError(t, err)
	_, err = auth.Register(ctx, RegisterInput{Name: "Other", Email: "ADA@example.com", Password: "password-2"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuth_LoginLogout(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)

	reg, err := auth.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password-1"})
	require.NoError(t, err)
	require.NoError(t, auth.Logout(ctx))

	current, err := auth.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = auth.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password-1"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = auth.Login(ctx, LoginInput{Email: "", Password: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := auth.Login(ctx, LoginInput{Email: "ada@example.com", Password: "password-1"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)

	current, err = auth.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "Ada", current.Name)
}

func TestAuth_GetUserByID(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)
	reg, err := auth.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password-1"})
	require.NoError(t, err)

	u, err := auth.GetUserByID(ctx, reg.User.ID)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "ada@example.com", u.Email)

	u, err = auth.GetUserByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = auth.GetUserByID(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
