package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/server/models"
)

// testRepositoryContract exercises the behaviour every backend must share.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("create and find", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		s := &models.Session{Token: "tok-1", UserID: "u1", CSRFSecret: "csrf-1"}
		require.NoError(t, repo.Create(ctx, s))
		assert.Equal(t, models.SessionValid, s.Status)
		assert.False(t, s.CreatedAt.IsZero())

		got, err := repo.FindByToken(ctx, "tok-1", models.SessionValid)
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, "csrf-1", got.CSRFSecret)
		assert.True(t, got.ExpiresAt.IsZero())

		_, err = repo.FindByToken(ctx, "tok-1", models.SessionExpired)
		assert.ErrorIs(t, err, common.ErrorNotFound)

		_, err = repo.FindByToken(ctx, "missing", models.SessionValid)
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("token is never reused", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		require.NoError(t, repo.Create(ctx, &models.Session{Token: "dup", UserID: "u1", CSRFSecret: "a"}))
		require.NoError(t, repo.Expire(ctx, "dup"))

		err := repo.Create(ctx, &models.Session{Token: "dup", UserID: "u2", CSRFSecret: "b"})
		assert.ErrorIs(t, err, common.ErrorAlreadyExists)

		got, err := repo.FindByToken(ctx, "dup", models.SessionExpired)
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
	})

	t.Run("expiry horizon is kept", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		horizon := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, repo.Create(ctx, &models.Session{Token: "h", UserID: "u1", CSRFSecret: "c", ExpiresAt: horizon}))

		got, err := repo.FindByToken(ctx, "h", models.SessionValid)
		require.NoError(t, err)
		assert.True(t, horizon.Equal(got.ExpiresAt), "got %v", got.ExpiresAt)
	})

	t.Run("expire is one way and idempotent", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		require.NoError(t, repo.Create(ctx, &models.Session{Token: "e", UserID: "u1", CSRFSecret: "c"}))
		require.NoError(t, repo.Expire(ctx, "e"))
		require.NoError(t, repo.Expire(ctx, "e"))
		require.NoError(t, repo.Expire(ctx, "never-existed"))

		_, err := repo.FindByToken(ctx, "e", models.SessionValid)
		assert.ErrorIs(t, err, common.ErrorNotFound)

		got, err := repo.FindByToken(ctx, "e", models.SessionExpired)
		require.NoError(t, err)
		assert.Equal(t, models.SessionExpired, got.Status)
	})

	t.Run("expire all for user", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		for _, tok := range []string{"a", "b", "c"} {
			require.NoError(t, repo.Create(ctx, &models.Session{Token: tok, UserID: "u1", CSRFSecret: "s"}))
		}
		require.NoError(t, repo.Create(ctx, &models.Session{Token: "other", UserID: "u2", CSRFSecret: "s"}))
		require.NoError(t, repo.Expire(ctx, "c"))

		n, err := repo.ExpireAllForUser(ctx, "u1", "a")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = repo.FindByToken(ctx, "a", models.SessionValid)
		assert.NoError(t, err, "kept session stays valid")
		_, err = repo.FindByToken(ctx, "b", models.SessionExpired)
		assert.NoError(t, err)
		_, err = repo.FindByToken(ctx, "other", models.SessionValid)
		assert.NoError(t, err, "other users are untouched")

		n, err = repo.ExpireAllForUser(ctx, "u1", "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = repo.ExpireAllForUser(ctx, "u1", "")
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = repo.ExpireAllForUser(ctx, "nobody", "")
		require.NoError(t, err)
		assert.Zero(t, n)

		// creating after revocation still works
		require.NoError(t, repo.Create(ctx, &models.Session{Token: "d", UserID: "u1", CSRFSecret: "s"}))
		_, err = repo.FindByToken(ctx, "d", models.SessionValid)
		assert.NoError(t, err)
	})

	t.Run("list by user", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, repo.Create(ctx, &models.Session{Token: "second", UserID: "u1", CSRFSecret: "s", CreatedAt: base.Add(time.Minute)}))
		require.NoError(t, repo.Create(ctx, &models.Session{Token: "first", UserID: "u1", CSRFSecret: "s", CreatedAt: base}))
		require.NoError(t, repo.Create(ctx, &models.Session{Token: "foreign", UserID: "u2", CSRFSecret: "s", CreatedAt: base}))
		require.NoError(t, repo.Expire(ctx, "first"))

		list, err := repo.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "first", list[0].Token)
		assert.Equal(t, models.SessionExpired, list[0].Status)
		assert.Equal(t, "second", list[1].Token)
		assert.Equal(t, models.SessionValid, list[1].Status)

		list, err = repo.ListByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
