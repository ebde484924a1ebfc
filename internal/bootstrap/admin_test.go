package bootstrap

import (
	"context"
	"testing"

	"github.com/dropDatabas3/tilgate/internal/domain/types"
	"github.com/dropDatabas3/tilgate/internal/security/password"
	"github.com/dropDatabas3/tilgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAdminIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	cfg := AdminConfig{Users: st.Users, Password: "password", Hasher: password.Fast}

	created, err := EnsureAdmin(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, created)

	u, err := st.Users.GetByUsername(ctx, DefaultAdminUsername)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, u.Role)
	assert.Equal(t, DefaultAdminName, u.Name)
	assert.True(t, password.Verify("password", u.PasswordHash))

	created, err = EnsureAdmin(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, created)

	list, err := st.Users.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnsureAdminRequiresPassword(t *testing.T) {
	st := store.NewMemory()
	_, err := EnsureAdmin(context.Background(), AdminConfig{Users: st.Users})
	assert.ErrorIs(t, err, ErrEmptyAdminPassword)
}
