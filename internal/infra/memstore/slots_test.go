//go:build unit

package memstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"parkwise/internal/domain/slot"
	"parkwise/internal/domain/user"
	"parkwise/internal/infra"
	"parkwise/internal/infra/memstore"
	"parkwise/internal/pkg/config"
	"parkwise/internal/pkg/ptr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *memstore.SlotStore {
	cfg := config.NewTestConfig()
	cfg.Store.MemorySlots = []string{"slot-2", "slot-1", "slot-3", " "}
	return memstore.NewSlotStore(cfg)
}

func ids(slots []*slot.Slot) []slot.ID {
	out := make([]slot.ID, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.ID())
	}
	return out
}

func TestSlotStore(t *testing.T) {
	ctx := context.Background()

	t.Run("ID順に列挙", func(t *testing.T) {
		store := newStore()
		slots, err := store.ListOrdered(ctx)
		require.NoError(t, err)
		assert.Equal(t, []slot.ID{"slot-1", "slot-2", "slot-3"}, ids(slots))
	})

	t.Run("存在しないスロットはNOT_FOUND", func(t *testing.T) {
		store := newStore()
		_, err := store.FindByID(ctx, "slot-9")
		assert.True(t, infra.IsKind(err, infra.KindNotFound))

		err = store.Apply(ctx, "slot-9", slot.OccupancyChange(true))
		assert.True(t, infra.IsKind(err, infra.KindNotFound))
	})

	t.Run("不整合な変更は拒否", func(t *testing.T) {
		store := newStore()
		err := store.Apply(ctx, "slot-1", slot.Change{Reserved: ptr.Of(true)})
		require.Error(t, err)
		assert.ErrorIs(t, err, slot.ErrInconsistent)

		s, err := store.FindByID(ctx, "slot-1")
		require.NoError(t, err)
		assert.False(t, s.Reserved())
	})

	t.Run("保持者で検索", func(t *testing.T) {
		store := newStore()
		change, err := slot.ReserveChange("a@example.com", time.Now())
		require.NoError(t, err)
		require.NoError(t, store.Apply(ctx, "slot-2", change))

		held, err := store.FindByHolder(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, []slot.ID{"slot-2"}, ids(held))

		none, err := store.FindByHolder(ctx, "b@example.com")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestSlotStoreWatch(t *testing.T) {
	t.Run("初期スナップショットと変更を配信", func(t *testing.T) {
		store := newStore()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		var got [][]*slot.Slot
		done := make(chan error, 1)
		go func() {
			done <- store.Watch(ctx, func(s []*slot.Slot) {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, s)
			})
		}()

		count := func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(got)
		}
		require.Eventually(t, func() bool { return count() == 1 }, time.Second, time.Millisecond)

		require.NoError(t, store.Apply(context.Background(), "slot-3", slot.OccupancyChange(true)))
		require.Eventually(t, func() bool { return count() == 2 }, time.Second, time.Millisecond)

		mu.Lock()
		last := got[1]
		mu.Unlock()
		assert.True(t, last[2].Occupied())

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("切断でエラーを返す", func(t *testing.T) {
		store := newStore()
		broken := errors.New("connection lost")
		emitted := make(chan struct{}, 1)
		done := make(chan error, 1)
		go func() {
			done <- store.Watch(context.Background(), func([]*slot.Slot) { emitted <- struct{}{} })
		}()
		<-emitted

		store.Break(broken)
		assert.ErrorIs(t, <-done, broken)
	})
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewUserStore()
	email, err := user.NewEmail("a@example.com")
	require.NoError(t, err)

	_, err = store.FindByEmail(ctx, email)
	assert.True(t, infra.IsKind(err, infra.KindNotFound))

	require.NoError(t, store.Create(ctx, user.NewAccount(email, "hash", user.ProviderPassword)))
	err = store.Create(ctx, user.NewAccount(email, "hash", user.ProviderPassword))
	assert.True(t, infra.IsKind(err, infra.KindDuplicateKey))

	acc, err := store.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", acc.Email().Value())
}
