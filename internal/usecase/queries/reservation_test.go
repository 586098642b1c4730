//go:build unit

package queries_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"parkwise/internal/domain/slot"
	"parkwise/internal/domain/user"
	"parkwise/internal/usecase/queries"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHolderReadStore struct {
	mock.Mock
}

func (m *MockHolderReadStore) FindByHolder(ctx context.Context, email string) ([]*slot.Slot, error) {
	args := m.Called(ctx, email)
	slots, _ := args.Get(0).([]*slot.Slot)
	return slots, args.Error(1)
}

func identityOf(t *testing.T, s string) user.Identity {
	t.Helper()
	email, err := user.NewEmail(s)
	require.NoError(t, err)
	return user.NewIdentity(email)
}

func reservedSlot(id, holder string) *slot.Slot {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return slot.Reconstruct(slot.ID(id), "", false, true, holder, &at)
}

func TestPersonalReservationView(t *testing.T) {
	ctx := context.Background()

	t.Run("保持者の予約だけを保持", func(t *testing.T) {
		store := new(MockHolderReadStore)
		store.On("FindByHolder", mock.Anything, "a@example.com").Return([]*slot.Slot{
			reservedSlot("slot-1", "a@example.com"),
			// stale document: holder left behind on a released slot
			slot.Reconstruct("slot-2", "", false, false, "a@example.com", nil),
		}, nil)
		view := queries.NewPersonalReservationView(store)

		got, err := view.Refresh(ctx, identityOf(t, "a@example.com"))
		require.NoError(t, err)

		require.Len(t, got, 1)
		assert.Equal(t, slot.ID("slot-1"), got[0].ID())
		assert.True(t, view.Owns("slot-1"))
		assert.False(t, view.Owns("slot-2"))
		assert.False(t, view.IsEmpty())
		store.AssertExpectations(t)
	})

	t.Run("匿名ならクリア", func(t *testing.T) {
		store := new(MockHolderReadStore)
		store.On("FindByHolder", mock.Anything, "a@example.com").Return([]*slot.Slot{reservedSlot("slot-1", "a@example.com")}, nil).Once()
		view := queries.NewPersonalReservationView(store)

		_, err := view.Refresh(ctx, identityOf(t, "a@example.com"))
		require.NoError(t, err)
		require.False(t, view.IsEmpty())

		got, err := view.Refresh(ctx, user.Identity{})
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.True(t, view.IsEmpty())
		store.AssertExpectations(t)
	})

	t.Run("読み込み失敗時はキャッシュを維持", func(t *testing.T) {
		store := new(MockHolderReadStore)
		store.On("FindByHolder", mock.Anything, "a@example.com").Return([]*slot.Slot{reservedSlot("slot-1", "a@example.com")}, nil).Once()
		store.On("FindByHolder", mock.Anything, "a@example.com").Return(nil, errors.New("db down")).Once()
		view := queries.NewPersonalReservationView(store)

		_, err := view.Refresh(ctx, identityOf(t, "a@example.com"))
		require.NoError(t, err)

		_, err = view.Refresh(ctx, identityOf(t, "a@example.com"))
		require.ErrorIs(t, err, queries.ErrReservationLookup)
		assert.True(t, view.Owns("slot-1"))
	})

	t.Run("クリア後の古いリフレッシュは反映しない", func(t *testing.T) {
		store := new(MockHolderReadStore)
		view := queries.NewPersonalReservationView(store)
		store.On("FindByHolder", mock.Anything, "a@example.com").
			Run(func(mock.Arguments) { view.Clear() }).
			Return([]*slot.Slot{reservedSlot("slot-1", "a@example.com")}, nil)

		_, err := view.Refresh(ctx, identityOf(t, "a@example.com"))
		require.NoError(t, err)
		assert.True(t, view.IsEmpty())
	})

	t.Run("Currentはコピーを返す", func(t *testing.T) {
		store := new(MockHolderReadStore)
		store.On("FindByHolder", mock.Anything, "a@example.com").Return([]*slot.Slot{reservedSlot("slot-1", "a@example.com")}, nil)
		view := queries.NewPersonalReservationView(store)
		_, err := view.Refresh(ctx, identityOf(t, "a@example.com"))
		require.NoError(t, err)

		current := view.Current()
		current[0] = nil
		assert.NotNil(t, view.Current()[0])
	})
}
