package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"parkwise/internal/domain/slot"
	"parkwise/internal/pkg/config"
	"parkwise/internal/pkg/errs"
	"parkwise/internal/usecase/shared"

	"github.com/cenkalti/backoff/v4"
)

var (
	ErrSubscriptionFailed = errs.New("slot subscription failed")
	ErrFeedClosed         = errs.New("slot feed closed")
)

// Health is the observable state of one registry subscription.
type Health string

const (
	HealthLoading      Health = "loading"
	HealthLive         Health = "live"
	HealthReconnecting Health = "reconnecting"
	HealthFailed       Health = "failed"
)

type Options struct {
	// MaxRetries=0 gives up on the first feed error.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func OptionsFromConfig(cfg config.FeedConfig) Options {
	return Options{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
	}
}

// SlotRegistry opens live, id-ordered subscriptions on the slot feed.
type SlotRegistry struct {
	feed   shared.SlotFeed
	opts   Options
	logger *slog.Logger
}

func NewSlotRegistry(feed shared.SlotFeed, cfg config.Config, logger *slog.Logger) *SlotRegistry {
	return NewSlotRegistryWithOptions(feed, OptionsFromConfig(cfg.Feed), logger)
}

func NewSlotRegistryWithOptions(feed shared.SlotFeed, opts Options, logger *slog.Logger) *SlotRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlotRegistry{feed: feed, opts: opts, logger: logger}
}

type SubscribeOption func(*Subscription)

// WithHealthListener is called from the subscription goroutine on every health transition.
func WithHealthListener(fn func(Health)) SubscribeOption {
	return func(s *Subscription) {
		s.onHealth = fn
	}
}

// Subscribe starts delivering snapshots to onSnapshot from a single goroutine, in feed
// order. onError is called at most once, after the retry policy is exhausted; the
// subscription is dead afterwards.
func (r *SlotRegistry) Subscribe(onSnapshot func([]*slot.Slot), onError func(error), opts ...SubscribeOption) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		registry:   r,
		onSnapshot: onSnapshot,
		onError:    onError,
		health:     HealthLoading,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run(ctx)
	return s
}

func (r *SlotRegistry) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if r.opts.InitialInterval > 0 {
		exp.InitialInterval = r.opts.InitialInterval
	}
	if r.opts.MaxInterval > 0 {
		exp.MaxInterval = r.opts.MaxInterval
	}
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, r.opts.MaxRetries)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	registry   *SlotRegistry
	onSnapshot func([]*slot.Slot)
	onError    func(error)
	onHealth   func(Health)

	mu     sync.RWMutex
	health Health

	cancel context.CancelFunc
	done   chan struct{}
}

// Unsubscribe stops delivery. It does not wait for the subscription goroutine, so it
// is safe to call from inside onSnapshot.
func (s *Subscription) Unsubscribe() {
	s.cancel()
}

// Done is closed once the subscription goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

func (s *Subscription) setHealth(h Health) {
	s.mu.Lock()
	changed := s.health != h
	s.health = h
	s.mu.Unlock()

	if changed && s.onHealth != nil {
		s.onHealth(h)
	}
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)

	logger := s.registry.logger
	policy := s.registry.newBackOff()
	policy.Reset()

	for {
		delivered := false
		err := s.registry.feed.Watch(ctx, func(slots []*slot.Slot) {
			if ctx.Err() != nil {
				return
			}
			delivered = true
			s.setHealth(HealthLive)
			s.onSnapshot(slots)
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrFeedClosed
		}
		// a feed that was live earns a fresh retry budget
		if delivered {
			policy.Reset()
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			logger.Error("slot feed failed", "error", err.Error())
			s.setHealth(HealthFailed)
			if s.onError != nil {
				s.onError(errs.Mark(err, ErrSubscriptionFailed))
			}
			return
		}

		logger.Warn("slot feed interrupted, reconnecting", "error", err.Error(), "retry_in", wait)
		s.setHealth(HealthReconnecting)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
