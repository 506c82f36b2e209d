package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	users  map[int64]User
	hashes map[int64]string
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User), hashes: make(map[int64]string)}
}

func (r *memoryRepo) InsertUser(ctx context.Context, input CreateInput, passwordHash string) (User, error) {
	r.nextID++
	u := User{
		ID:       r.nextID,
		Username: input.Username,
		Email:    input.Email,
		FullName: input.FullName,
		Role:     input.Role,
		IsActive: true,
	}
	r.users[u.ID] = u
	r.hashes[u.ID] = passwordHash
	return u, nil
}

func (r *memoryRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.NewNotFound("user", id)
	}
	return u, nil
}

func (r *memoryRepo) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryRepo) UserExists(ctx context.Context, id int64) (bool, error) {
	_, ok := r.users[id]
	return ok, nil
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	u, err := svc.Create(context.Background(), CreateInput{
		Username: "ops",
		Email:    "ops@example.com",
		Password: "correct horse",
		FullName: "Ops User",
		Role:     "staff",
	})
	require.NoError(t, err)
	require.True(t, u.IsActive)

	hash := repo.hashes[u.ID]
	require.NotEqual(t, "correct horse", hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")))
}

func TestCreateValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Password: "long enough"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Username: "ops", Password: "short"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.users)
}

func TestExists(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	u, err := svc.Create(ctx, CreateInput{Username: "ops", Password: "long enough"})
	require.NoError(t, err)

	ok, err := svc.Exists(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Exists(ctx, u.ID+1)
	require.NoError(t, err)
	require.False(t, ok)
}
