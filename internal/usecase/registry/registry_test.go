//go:build unit

package registry_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"parkwise/internal/domain/slot"
	"parkwise/internal/usecase/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type watchStep func(ctx context.Context, emit func([]*slot.Slot)) error

// scriptedFeed plays one step per Watch call and blocks once the script runs out.
type scriptedFeed struct {
	mu    sync.Mutex
	steps []watchStep
	calls atomic.Int32
}

func (f *scriptedFeed) Watch(ctx context.Context, emit func([]*slot.Slot)) error {
	f.calls.Add(1)
	f.mu.Lock()
	var step watchStep
	if len(f.steps) > 0 {
		step = f.steps[0]
		f.steps = f.steps[1:]
	}
	f.mu.Unlock()

	if step == nil {
		<-ctx.Done()
		return nil
	}
	return step(ctx, emit)
}

func failWith(err error) watchStep {
	return func(context.Context, func([]*slot.Slot)) error { return err }
}

func emitThen(slots []*slot.Slot, err error) watchStep {
	return func(_ context.Context, emit func([]*slot.Slot)) error {
		emit(slots)
		return err
	}
}

func fastOptions(retries uint64) registry.Options {
	return registry.Options{MaxRetries: retries, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func lot(ids ...string) []*slot.Slot {
	out := make([]*slot.Slot, 0, len(ids))
	for _, id := range ids {
		out = append(out, slot.NewAvailable(slot.ID(id), ""))
	}
	return out
}

type recorder struct {
	mu        sync.Mutex
	snapshots [][]*slot.Slot
	errs      []error
	health    []registry.Health
}

func (r *recorder) onSnapshot(s []*slot.Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) onHealth(h registry.Health) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health = append(r.health, h)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots), len(r.errs)
}

func TestSubscribe(t *testing.T) {
	t.Run("スナップショットを順に配信", func(t *testing.T) {
		feed := &scriptedFeed{steps: []watchStep{
			func(ctx context.Context, emit func([]*slot.Slot)) error {
				emit(lot("slot-1"))
				emit(lot("slot-1", "slot-2"))
				<-ctx.Done()
				return nil
			},
		}}
		rec := &recorder{}
		reg := registry.NewSlotRegistryWithOptions(feed, fastOptions(0), nil)

		sub := reg.Subscribe(rec.onSnapshot, rec.onError, registry.WithHealthListener(rec.onHealth))
		require.Eventually(t, func() bool { n, _ := rec.counts(); return n == 2 }, time.Second, time.Millisecond)

		assert.Equal(t, registry.HealthLive, sub.Health())
		sub.Unsubscribe()
		<-sub.Done()

		rec.mu.Lock()
		defer rec.mu.Unlock()
		assert.Len(t, rec.snapshots[0], 1)
		assert.Len(t, rec.snapshots[1], 2)
		assert.Empty(t, rec.errs)
		assert.Equal(t, []registry.Health{registry.HealthLive}, rec.health)
	})

	t.Run("リトライ0回なら最初のエラーで失敗", func(t *testing.T) {
		feedErr := errors.New("listen failed")
		feed := &scriptedFeed{steps: []watchStep{failWith(feedErr)}}
		rec := &recorder{}
		reg := registry.NewSlotRegistryWithOptions(feed, fastOptions(0), nil)

		sub := reg.Subscribe(rec.onSnapshot, rec.onError)
		<-sub.Done()

		_, nErr := rec.counts()
		require.Equal(t, 1, nErr)
		assert.ErrorIs(t, rec.errs[0], registry.ErrSubscriptionFailed)
		assert.ErrorIs(t, rec.errs[0], feedErr)
		assert.Equal(t, registry.HealthFailed, sub.Health())
		assert.EqualValues(t, 1, feed.calls.Load())
	})

	t.Run("リトライを使い切った後にonErrorは一度だけ", func(t *testing.T) {
		feedErr := errors.New("connection reset")
		feed := &scriptedFeed{steps: []watchStep{failWith(feedErr), failWith(feedErr), failWith(feedErr)}}
		rec := &recorder{}
		reg := registry.NewSlotRegistryWithOptions(feed, fastOptions(2), nil)

		sub := reg.Subscribe(rec.onSnapshot, rec.onError, registry.WithHealthListener(rec.onHealth))
		<-sub.Done()

		_, nErr := rec.counts()
		assert.Equal(t, 1, nErr)
		assert.EqualValues(t, 3, feed.calls.Load())
		assert.Equal(t, []registry.Health{registry.HealthReconnecting, registry.HealthFailed}, rec.health)
	})

	t.Run("再接続後に配信を再開", func(t *testing.T) {
		feed := &scriptedFeed{steps: []watchStep{
			failWith(errors.New("blip")),
			emitThen(lot("slot-1"), nil),
		}}
		rec := &recorder{}
		reg := registry.NewSlotRegistryWithOptions(feed, fastOptions(1), nil)

		sub := reg.Subscribe(rec.onSnapshot, rec.onError)
		defer sub.Unsubscribe()

		require.Eventually(t, func() bool { n, _ := rec.counts(); return n == 1 }, time.Second, time.Millisecond)
		// the feed closed after emitting; the budget was reset by the live phase
		require.Eventually(t, func() bool { return feed.calls.Load() >= 3 }, time.Second, time.Millisecond)
		_, nErr := rec.counts()
		assert.Zero(t, nErr)
	})

	t.Run("購読解除後はエラーを通知しない", func(t *testing.T) {
		feed := &scriptedFeed{}
		rec := &recorder{}
		reg := registry.NewSlotRegistryWithOptions(feed, fastOptions(0), nil)

		sub := reg.Subscribe(rec.onSnapshot, rec.onError)
		require.Eventually(t, func() bool { return feed.calls.Load() == 1 }, time.Second, time.Millisecond)
		sub.Unsubscribe()
		<-sub.Done()

		n, nErr := rec.counts()
		assert.Zero(t, n)
		assert.Zero(t, nErr)
		assert.Equal(t, registry.HealthLoading, sub.Health())
	})
}
