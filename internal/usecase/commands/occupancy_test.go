//go:build unit

package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"parkwise/internal/domain/slot"
	"parkwise/internal/infra/memstore"
	"parkwise/internal/pkg/config"
	"parkwise/internal/usecase/commands"
	sharedmock "parkwise/tests/mock/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestOccupancyCommands(t *testing.T) {
	ctx := context.Background()

	newStore := func() *memstore.SlotStore {
		cfg := config.NewTestConfig()
		cfg.Store.MemorySlots = []string{"slot-1", "slot-2"}
		return memstore.NewSlotStore(cfg)
	}

	t.Run("使用状況のみ更新", func(t *testing.T) {
		store := newStore()
		change, err := slot.ReserveChange("a@x.com", time.Now())
		require.NoError(t, err)
		require.NoError(t, store.Apply(ctx, "slot-1", change))

		err = commands.NewOccupancyCommands(store).Handle(ctx, []byte(`{"slot_id":"slot-1","occupied":true}`))
		require.NoError(t, err)

		got, err := store.FindByID(ctx, "slot-1")
		require.NoError(t, err)
		assert.True(t, got.Occupied())
		assert.True(t, got.Reserved())
		assert.Equal(t, "a@x.com", got.HolderEmail())
	})

	t.Run("不正なペイロード", func(t *testing.T) {
		occ := commands.NewOccupancyCommands(newStore())
		for _, payload := range []string{`not json`, `{"slot_id":"slot-1"}`, `{"slot_id":" ","occupied":false}`} {
			err := occ.Handle(ctx, []byte(payload))
			assert.ErrorIs(t, err, commands.ErrInvalidReading, payload)
		}
	})

	t.Run("存在しないスロット", func(t *testing.T) {
		err := commands.NewOccupancyCommands(newStore()).Handle(ctx, []byte(`{"slot_id":"slot-9","occupied":true}`))
		assert.ErrorIs(t, err, commands.ErrSlotNotFound)
	})

	t.Run("書き込み失敗", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := sharedmock.NewMockSlotStore(ctrl)
		store.EXPECT().Apply(gomock.Any(), slot.ID("slot-1"), slot.OccupancyChange(false)).Return(errors.New("down"))

		err := commands.NewOccupancyCommands(store).Handle(ctx, []byte(`{"slot_id":"slot-1","occupied":false}`))
		assert.ErrorIs(t, err, commands.ErrPersistenceFailed)
	})
}
