package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate(t *testing.T) {
	st := newMemStore()
	svc := NewUserService(st)
	id := Identity{ExternalID: "auth0|abc", Email: "fan@example.com", Name: "Fan"}

	user, created, err := svc.GetOrCreate(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "fan@example.com", user.Email)

	again, created, err := svc.GetOrCreate(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)

	_, _, err = svc.GetOrCreate(context.Background(), Identity{ExternalID: "auth0|new"})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.GetOrCreate(context.Background(), Identity{Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve(t *testing.T) {
	st := newMemStore()
	svc := NewUserService(st)

	_, err := svc.Resolve(context.Background(), Identity{ExternalID: "auth0|ghost"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	user, err := svc.Resolve(context.Background(), Identity{ExternalID: "auth0|lazy", Email: "lazy@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "auth0|lazy", user.ExternalID)

	same, err := svc.Resolve(context.Background(), Identity{ExternalID: "auth0|lazy"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, same.ID)
}

func TestGetCurrentUser(t *testing.T) {
	st := newMemStore()
	svc := NewUserService(st)
	u := st.addUser("fan@example.com")

	got, err := svc.GetCurrentUser(context.Background(), u.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.GetCurrentUser(context.Background(), "auth0|nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
