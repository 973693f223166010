package tokenstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

const lifetime = 7 * 24 * time.Hour

// Both stores are expected to know users "u1" and "u2".
type storeFactory func(t *testing.T) RefreshTokenStore

func record(userID, hash string, created time.Time) *models.RefreshToken {
	return &models.RefreshToken{
		ID:        "id-" + hash,
		UserID:    userID,
		TokenHash: hash,
		CreatedAt: created,
		ExpiresAt: created.Add(lifetime),
	}
}

func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("save and find", func(t *testing.T) {
		s := newStore(t)
		rec := record("u1", "h-save", t0)
		require.NoError(t, s.Save(ctx, rec))

		got, err := s.FindByHash(ctx, "h-save")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, "h-save", got.TokenHash)
		assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt), "expires_at %v != %v", rec.ExpiresAt, got.ExpiresAt)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.RevokedAt)
		assert.Nil(t, got.ReplacedByTokenHash)
		assert.True(t, got.IsActive(t0))
	})

	t.Run("duplicate hash conflicts", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, record("u1", "h-dup", t0)))
		err := s.Save(ctx, record("u1", "h-dup", t0))
		assert.ErrorIs(t, err, common.ErrConflict)
	})

	t.Run("find unknown", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindByHash(ctx, "nope")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, record("u1", "h-rev", t0)))

		first := t0.Add(time.Minute)
		require.NoError(t, s.Revoke(ctx, "h-rev", first))
		require.NoError(t, s.Revoke(ctx, "h-rev", first.Add(time.Hour)))

		got, err := s.FindByHash(ctx, "h-rev")
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		assert.True(t, first.Equal(*got.RevokedAt), "first revocation time must stick")
		assert.Nil(t, got.ReplacedByTokenHash)
		assert.False(t, got.IsActive(first))
	})

	t.Run("revoke unknown", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Revoke(ctx, "nope", t0), common.ErrorNotFound)
	})

	t.Run("rotate links successor", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, record("u1", "h-old", t0)))

		now := t0.Add(time.Hour)
		next := record("u1", "h-new", now)
		require.NoError(t, s.Rotate(ctx, "h-old", next, now))

		old, err := s.FindByHash(ctx, "h-old")
		require.NoError(t, err)
		require.NotNil(t, old.RevokedAt)
		assert.True(t, now.Equal(*old.RevokedAt))
		require.NotNil(t, old.ReplacedByTokenHash)
		assert.Equal(t, "h-new", *old.ReplacedByTokenHash)
		assert.True(t, old.IsRotated())

		succ, err := s.FindByHash(ctx, "h-new")
		require.NoError(t, err)
		assert.True(t, succ.IsActive(now))
		assert.Equal(t, "u1", succ.UserID)
	})

	t.Run("rotate twice fails", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, record("u1", "h-a", t0)))
		require.NoError(t, s.Rotate(ctx, "h-a", record("u1", "h-b", t0), t0))

		err := s.Rotate(ctx, "h-a", record("u1", "h-c", t0), t0)
		assert.ErrorIs(t, err, ErrInactive)

		_, err = s.FindByHash(ctx, "h-c")
		assert.ErrorIs(t, err, common.ErrorNotFound, "loser must not leave a successor")
	})

	t.Run("rotate at exact expiry succeeds", func(t *testing.T) {
		s := newStore(t)
		rec := record("u1", "h-edge", t0)
		require.NoError(t, s.Save(ctx, rec))
		require.NoError(t, s.Rotate(ctx, "h-edge", record("u1", "h-edge2", rec.ExpiresAt), rec.ExpiresAt))
	})

	t.Run("rotate rejects inactive records", func(t *testing.T) {
		s := newStore(t)
		rec := record("u1", "h-exp", t0)
		require.NoError(t, s.Save(ctx, rec))
		require.NoError(t, s.Save(ctx, record("u1", "h-revoked", t0)))
		require.NoError(t, s.Revoke(ctx, "h-revoked", t0))
		require.NoError(t, s.Save(ctx, record("u1", "h-owner", t0)))

		late := rec.ExpiresAt.Add(time.Millisecond)
		cases := []struct {
			name    string
			oldHash string
			next    *models.RefreshToken
			now     time.Time
		}{
			{"expired", "h-exp", record("u1", "s1", late), late},
			{"revoked", "h-revoked", record("u1", "s2", t0), t0},
			{"other user", "h-owner", record("u2", "s3", t0), t0},
			{"unknown", "h-missing", record("u1", "s4", t0), t0},
		}
		for _, tc := range cases {
			err := s.Rotate(ctx, tc.oldHash, tc.next, tc.now)
			assert.ErrorIs(t, err, ErrInactive, tc.name)
			_, err = s.FindByHash(ctx, tc.next.TokenHash)
			assert.ErrorIs(t, err, common.ErrorNotFound, tc.name)
		}

		exp, err := s.FindByHash(ctx, "h-exp")
		require.NoError(t, err)
		assert.Nil(t, exp.RevokedAt, "failed rotation must not touch the record")
	})

	t.Run("concurrent rotation has one winner", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, record("u1", "h-race", t0)))

		const n = 16
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.Rotate(ctx, "h-race", record("u1", fmt.Sprintf("h-race-%d", i), t0), t0)
			}(i)
		}
		wg.Wait()

		wins := 0
		successors := 0
		for i, err := range errs {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, ErrInactive)
			}
			if _, err := s.FindByHash(ctx, fmt.Sprintf("h-race-%d", i)); err == nil {
				successors++
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, successors)
	})
}
