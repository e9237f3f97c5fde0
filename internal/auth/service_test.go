package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	users map[string]*User
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis, *mockUserRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("hplc-2026-lab"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockUserRepo{users: map[string]*User{
		"tech@meridian.test": {
			ID:           1,
			Email:        "tech@meridian.test",
			FullName:     "Field Tech",
			PasswordHash: string(hash),
			Active:       true,
		},
	}}
	return NewService(repo, rdb, time.Hour), mr, repo
}

func TestLoginIssuesRedisBackedToken(t *testing.T) {
	svc, mr, _ := newTestService(t)

	token, user, err := svc.Login(context.Background(), "tech@meridian.test", "hplc-2026-lab")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, int64(1), user.ID)
	assert.True(t, mr.Exists(tokenKeyPrefix+token))

	resolved, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestLoginRejectsBadPasswordAndInactiveUser(t *testing.T) {
	svc, _, repo := newTestService(t)

	_, _, err := svc.Login(context.Background(), "tech@meridian.test", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@meridian.test", "hplc-2026-lab")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	repo.users["tech@meridian.test"].Active = false
	_, _, err = svc.Login(context.Background(), "tech@meridian.test", "hplc-2026-lab")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	token, _, err := svc.Login(context.Background(), "tech@meridian.test", "hplc-2026-lab")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), token))
	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenExpires(t *testing.T) {
	svc, mr, _ := newTestService(t)

	token, _, err := svc.Login(context.Background(), "tech@meridian.test", "hplc-2026-lab")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
