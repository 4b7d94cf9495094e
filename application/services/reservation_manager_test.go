package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"path-backend/domain/core/valueobjects"
	"path-backend/domain/events"
	pkgerrors "path-backend/pkg/errors"
)

func TestReservationManager_Reserve(t *testing.T) {
	t.Run("another user is rejected while the reservation is valid", func(t *testing.T) {
		f := newFixture(t)
		memo := f.createMemo("user-a", "Plan", "hello")

		_, err := f.reservations.Reserve(f.ctx, memo.ID(), "user-a", "")
		require.NoError(t, err)

		_, err = f.reservations.Reserve(f.ctx, memo.ID(), "user-b", "")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMemoReserved))
	})

	t.Run("holder with the right code gets a new code", func(t *testing.T) {
		f := newFixture(t)
		memo := f.createMemo("user-a", "Plan", "hello")

		first, err := f.reservations.Reserve(f.ctx, memo.ID(), "user-a", "")
		require.NoError(t, err)

		f.clock.Advance(5 * time.Minute)
		second, err := f.reservations.Reserve(f.ctx, memo.ID(), "user-a", first.Code())
		require.NoError(t, err)

		assert.NotEqual(t, first.Code(), second.Code())
		assert.Equal(t, f.clock.Now().Add(15*time.Minute), second.ExpiresAt())

		stored, err := f.store.GetReservation(f.ctx, memo.ID())
		require.NoError(t, err)
		assert.Equal(t, second.Code(), stored.Code())
	})

	t.Run("holder with a stale code is rejected", func(t *testing.T) {
		f := newFixture(t)
		memo := f.createMemo("user-a", "Plan", "hello")

		_, err := f.reservations.Reserve(f.ctx, memo.ID(), "user-a", "")
		require.NoError(t, err)

		_, err = f.reservations.Reserve(f.ctx, memo.ID(), "user-a", "stale")
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMemoReserved))
	})

	t.Run("expired reservation never blocks", func(t *testing.T) {
		f := newFixture(t)
		memo := f.createMemo("user-a", "Plan", "hello")

		_, err := f.reservations.Reserve(f.ctx, memo.ID(), "user-a", "")
		require.NoError(t, err)

		f.clock.Advance(16 * time.Minute)
		res, err := f.reservations.Reserve(f.ctx, memo.ID(), "user-b", "")
		require.NoError(t, err)
		assert.Equal(t, "user-b", res.EditorID())
	})

	t.Run("unknown memo", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.reservations.Reserve(f.ctx, valueobjects.NewMemoID(), "user-a", "")
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMemoNotFound))
	})

	t.Run("missing user", func(t *testing.T) {
		f := newFixture(t)
		memo := f.createMemo("user-a", "Plan", "hello")
		_, err := f.reservations.Reserve(f.ctx, memo.ID(), "", "")
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNullInput))
	})

	t.Run("publishes reserved event", func(t *testing.T) {
		f := newFixture(t)
		memo := f.createMemo("user-a", "Plan", "hello")
		_, err := f.reservations.Reserve(f.ctx, memo.ID(), "user-a", "")
		require.NoError(t, err)
		assert.Contains(t, f.publisher.types(), events.TypeMemoReserved)
	})
}

func TestReservationManager_Cancel(t *testing.T) {
	t.Run("no reservation is a no-op", func(t *testing.T) {
		f := newFixture(t)
		memo := f.createMemo("user-a", "Plan", "hello")
		assert.NoError(t, f.reservations.Cancel(f.ctx, memo.ID(), "user-b", ""))
	})

	t.Run("holder cancels", func(t *testing.T) {
		f := newFixture(t)
		memo := f.createMemo("user-a", "Plan", "hello")
		res, err := f.reservations.Reserve(f.ctx, memo.ID(), "user-a", "")
		require.NoError(t, err)

		require.NoError(t, f.reservations.Cancel(f.ctx, memo.ID(), "user-a", res.Code()))

		stored, err := f.store.GetReservation(f.ctx, memo.ID())
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("other user cannot cancel", func(t *testing.T) {
		f := newFixture(t)
		memo := f.createMemo("user-a", "Plan", "hello")
		res, err := f.reservations.Reserve(f.ctx, memo.ID(), "user-a", "")
		require.NoError(t, err)

		err = f.reservations.Cancel(f.ctx, memo.ID(), "user-b", res.Code())
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMemoReserved))
	})

	t.Run("anyone clears an expired reservation", func(t *testing.T) {
		f := newFixture(t)
		memo := f.createMemo("user-a", "Plan", "hello")
		_, err := f.reservations.Reserve(f.ctx, memo.ID(), "user-a", "")
		require.NoError(t, err)

		f.clock.Advance(time.Hour)
		require.NoError(t, f.reservations.Cancel(f.ctx, memo.ID(), "user-b", ""))

		stored, err := f.store.GetReservation(f.ctx, memo.ID())
		require.NoError(t, err)
		assert.Nil(t, stored)
	})
}
