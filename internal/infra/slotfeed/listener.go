package slotfeed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"parkwise/internal/domain/slot"
	"parkwise/internal/infra"
	"parkwise/internal/pkg/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel is the NOTIFY channel the parking_slots trigger publishes on.
const Channel = "parking_slots_changed"

const closeTimeout = 5 * time.Second

type SlotLister interface {
	ListOrdered(ctx context.Context) ([]*slot.Slot, error)
}

// Listener holds a single LISTEN connection and fans every change out to watchers as
// a full, re-read slot list. When the connection drops, open watches end with an
// error and the listener reconnects with exponential backoff.
type Listener struct {
	pool        *pgxpool.Pool
	lister      SlotLister
	broadcaster *Broadcaster
	logger      *slog.Logger
	maxInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener(pool *pgxpool.Pool, lister SlotLister, cfg config.Config, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		pool:        pool,
		lister:      lister,
		broadcaster: NewBroadcaster(),
		logger:      logger,
		maxInterval: cfg.Feed.MaxInterval,
	}
}

// Watch implements the slot feed.
func (l *Listener) Watch(ctx context.Context, emit func([]*slot.Slot)) error {
	return l.broadcaster.Watch(ctx, l.lister.ListOrdered, emit)
}

func (l *Listener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx)
}

func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	if l.maxInterval > 0 {
		policy.MaxInterval = l.maxInterval
	}

	err := backoff.RetryNotify(
		func() error {
			err := l.listen(ctx, policy)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		},
		backoff.WithContext(policy, ctx),
		func(err error, wait time.Duration) {
			l.logger.Warn("slot change listener interrupted, reconnecting", "error", err.Error(), "retry_in", wait)
		},
	)
	if err != nil && ctx.Err() == nil {
		l.logger.Error("slot change listener stopped", "error", err.Error())
	}
}

// listen runs one LISTEN session until the connection fails or ctx is done.
func (l *Listener) listen(ctx context.Context, policy backoff.BackOff) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return infra.WrapRepoErr("failed to acquire listener connection", err, infra.KindUnavailable)
	}
	defer l.discard(conn)

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return infra.WrapRepoErr("failed to listen for slot changes", err, infra.KindUnavailable)
	}
	l.logger.Info("listening for slot changes", "channel", Channel)
	policy.Reset()

	// changes made while disconnected were never announced
	if err := l.publish(ctx); err != nil {
		return err
	}

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			feedErr := infra.WrapRepoErr("slot change listener lost its connection", err, infra.KindFeedClosed)
			l.broadcaster.Fail(feedErr)
			return feedErr
		}
		if err := l.publish(ctx); err != nil {
			return err
		}
	}
}

// discard closes conn instead of returning it to the pool, where it would keep its
// LISTEN registration and pass notifications to unrelated queries.
func (l *Listener) discard(conn *pgxpool.Conn) {
	raw := conn.Hijack()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := raw.Close(ctx); err != nil {
		l.logger.Debug("failed to close listener connection", "error", err.Error())
	}
}

func (l *Listener) publish(ctx context.Context) error {
	slots, err := l.lister.ListOrdered(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		l.broadcaster.Fail(err)
		return err
	}
	l.broadcaster.Publish(slots)
	return nil
}
