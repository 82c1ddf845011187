package org

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryUserRepo struct {
	users map[int64]User
}

func (r *memoryUserRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, errNotFoundForTest
	}
	return u, nil
}

var errNotFoundForTest = &testError{"user not found"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func ptr(v int64) *int64 { return &v }

func TestAncestorsWalksChain(t *testing.T) {
	repo := &memoryUserRepo{users: map[int64]User{
		1: {ID: 1, Name: "director", Role: "admin"},
		2: {ID: 2, Name: "manager", Role: "manager", ParentID: ptr(1)},
		3: {ID: 3, Name: "supervisor", Role: "supervisor", ParentID: ptr(2)},
	}}
	svc := NewService(repo)

	chain, err := svc.Ancestors(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, int64(2), chain[0].ID)
	require.Equal(t, int64(1), chain[1].ID)
}

func TestIsSuperior(t *testing.T) {
	repo := &memoryUserRepo{users: map[int64]User{
		1: {ID: 1, Role: "admin"},
		2: {ID: 2, Role: "manager", ParentID: ptr(1)},
		3: {ID: 3, Role: "supervisor", ParentID: ptr(2)},
		4: {ID: 4, Role: "supervisor", ParentID: ptr(1)},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	ok, err := svc.IsSuperior(ctx, 1, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.IsSuperior(ctx, 2, 4)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.IsSuperior(ctx, 3, 3)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAncestorsDetectsCycle(t *testing.T) {
	repo := &memoryUserRepo{users: map[int64]User{
		1: {ID: 1, ParentID: ptr(2)},
		2: {ID: 2, ParentID: ptr(1)},
	}}
	svc := NewService(repo)

	_, err := svc.Ancestors(context.Background(), 1)
	require.Error(t, err)
}
