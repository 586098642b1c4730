//go:build unit

package slotfeed_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"parkwise/internal/domain/slot"
	"parkwise/internal/infra/slotfeed"
	"parkwise/tests/common/builder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slots(ids ...string) []*slot.Slot {
	out := make([]*slot.Slot, 0, len(ids))
	for _, id := range ids {
		out = append(out, builder.NewSlotBuilder(id).Build())
	}
	return out
}

type recorder struct {
	mu  sync.Mutex
	got [][]*slot.Slot
}

func (r *recorder) emit(s []*slot.Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, s)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func (r *recorder) last() []*slot.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[len(r.got)-1]
}

func TestBroadcasterWatch(t *testing.T) {
	initial := func(context.Context) ([]*slot.Slot, error) { return slots("slot-1"), nil }

	t.Run("初回スナップショットの後に更新を配信", func(t *testing.T) {
		b := slotfeed.NewBroadcaster()
		ctx, cancel := context.WithCancel(context.Background())
		rec := &recorder{}

		done := make(chan error, 1)
		go func() { done <- b.Watch(ctx, initial, rec.emit) }()

		require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, time.Millisecond)
		b.Publish(slots("slot-1", "slot-2"))
		require.Eventually(t, func() bool { return len(rec.last()) == 2 }, time.Second, time.Millisecond)

		cancel()
		require.NoError(t, <-done)
		assert.Equal(t, 0, b.Watchers())
	})

	t.Run("Failで監視が終了する", func(t *testing.T) {
		b := slotfeed.NewBroadcaster()
		rec := &recorder{}
		boom := errors.New("connection lost")

		done := make(chan error, 1)
		go func() { done <- b.Watch(context.Background(), initial, rec.emit) }()

		require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, time.Millisecond)
		b.Fail(boom)

		select {
		case err := <-done:
			assert.ErrorIs(t, err, boom)
		case <-time.After(time.Second):
			t.Fatal("watch did not end after Fail")
		}
		assert.Equal(t, 0, b.Watchers())
	})

	t.Run("初回読み込みの失敗", func(t *testing.T) {
		b := slotfeed.NewBroadcaster()
		boom := errors.New("query failed")

		err := b.Watch(context.Background(), func(context.Context) ([]*slot.Slot, error) {
			return nil, boom
		}, func([]*slot.Slot) { t.Fatal("nothing should be emitted") })

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, b.Watchers())
	})

	t.Run("遅い監視者は最新のみ受け取る", func(t *testing.T) {
		b := slotfeed.NewBroadcaster()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		release := make(chan struct{})
		rec := &recorder{}
		first := true
		go func() {
			_ = b.Watch(ctx, initial, func(s []*slot.Slot) {
				rec.emit(s)
				if first {
					first = false
					<-release
				}
			})
		}()

		require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, time.Millisecond)
		b.Publish(slots("a"))
		b.Publish(slots("a", "b"))
		b.Publish(slots("a", "b", "c"))
		close(release)

		require.Eventually(t, func() bool { return len(rec.last()) == 3 }, time.Second, time.Millisecond)
		assert.Equal(t, 2, rec.len())
	})
}
