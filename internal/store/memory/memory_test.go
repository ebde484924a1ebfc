package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
)

func mustUser(t *testing.T, db *DB, username string) *repository.User {
	t.Helper()
	u, err := db.Users().Create(context.Background(), repository.CreateUserInput{
		Name: username, Username: username, PasswordHash: "x",
	})
	require.NoError(t, err)
	return u
}

func TestUsernameUniqueAmongLive(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := mustUser(t, db, "alicea")
	assert.Equal(t, types.RoleStandard, u.Role)

	_, err := db.Users().Create(ctx, repository.CreateUserInput{Username: "alicea", PasswordHash: "y"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, db.Users().SoftDelete(ctx, u.ID, time.Now()))

	// soft-deleted identity frees the username
	u2 := mustUser(t, db, "alicea")
	assert.NotEqual(t, u.ID, u2.ID)

	// restoring the first one would now collide
	assert.ErrorIs(t, db.Users().Restore(ctx, u.ID), repository.ErrConflict)
}

func TestSoftDeleteVisibility(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := mustUser(t, db, "bob")
	mustUser(t, db, "carol")

	require.NoError(t, db.Users().SoftDelete(ctx, u.ID, time.Now()))

	_, err := db.Users().GetByUsername(ctx, "bob")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = db.Users().GetByID(ctx, u.ID, false)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := db.Users().GetByID(ctx, u.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Deleted())

	live, _ := db.Users().List(ctx, false)
	all, _ := db.Users().List(ctx, true)
	assert.Len(t, live, 1)
	assert.Len(t, all, 2)

	// deleting twice reports not found
	assert.ErrorIs(t, db.Users().SoftDelete(ctx, u.ID, time.Now()), repository.ErrNotFound)

	require.NoError(t, db.Users().Restore(ctx, u.ID))
	_, err = db.Users().GetByUsername(ctx, "bob")
	assert.NoError(t, err)
	assert.ErrorIs(t, db.Users().Restore(ctx, u.ID), repository.ErrNotDeleted)
}

func TestGetByUsernameIncludingDeleted(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := mustUser(t, db, "dora")
	require.NoError(t, db.Users().SoftDelete(ctx, u.ID, time.Now()))

	got, err := db.Users().GetByUsernameIncludingDeleted(ctx, "dora")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.Deleted())

	// la viva gana sobre la borrada
	live := mustUser(t, db, "dora")
	got, err = db.Users().GetByUsernameIncludingDeleted(ctx, "dora")
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)

	_, err = db.Users().GetByUsernameIncludingDeleted(ctx, "nadie")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetByEmailCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	db := New()
	email := "Dana@Example.com"
	_, err := db.Users().Create(ctx, repository.CreateUserInput{Username: "dana", PasswordHash: "x", Email: &email})
	require.NoError(t, err)

	u, err := db.Users().GetByEmail(ctx, "dana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "dana", u.Username)
}

func TestResetTakeSingleUse(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := mustUser(t, db, "erin")
	now := time.Now()

	require.NoError(t, db.ResetTokens().Create(ctx, repository.ResetToken{
		ID: "r1", UserID: u.ID, TokenHash: "h1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tok, err := db.ResetTokens().Take(ctx, "h1", now); err == nil {
				assert.Equal(t, u.ID, tok.UserID)
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestResetTakeExpired(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := mustUser(t, db, "frank")
	now := time.Now()

	require.NoError(t, db.ResetTokens().Create(ctx, repository.ResetToken{
		ID: "r1", UserID: u.ID, TokenHash: "h1", ExpiresAt: now.Add(-time.Second),
	}))
	_, err := db.ResetTokens().Take(ctx, "h1", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHardDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := mustUser(t, db, "gina")

	require.NoError(t, db.Tokens().Create(ctx, repository.BearerToken{ID: "t1", UserID: u.ID, TokenHash: "th"}))
	require.NoError(t, db.ResetTokens().Create(ctx, repository.ResetToken{ID: "r1", UserID: u.ID, TokenHash: "rh", ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, db.Users().HardDelete(ctx, u.ID))

	_, err := db.Users().GetByID(ctx, u.ID, true)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = db.Tokens().GetByHash(ctx, "th")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = db.ResetTokens().Take(ctx, "rh", time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTokenExpiryCleanup(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := mustUser(t, db, "hank")
	past := time.Now().Add(-time.Minute)

	require.NoError(t, db.Tokens().Create(ctx, repository.BearerToken{ID: "a", UserID: u.ID, TokenHash: "a", ExpiresAt: &past}))
	require.NoError(t, db.Tokens().Create(ctx, repository.BearerToken{ID: "b", UserID: u.ID, TokenHash: "b"}))

	n, err := db.Tokens().DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, _ = db.Tokens().DeleteAllByUser(ctx, u.ID)
	assert.Equal(t, 1, n)
}
