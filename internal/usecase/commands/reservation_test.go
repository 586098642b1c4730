//go:build unit

package commands_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"parkwise/internal/domain/slot"
	"parkwise/internal/domain/user"
	"parkwise/internal/infra/memstore"
	"parkwise/internal/pkg/clock"
	"parkwise/internal/pkg/config"
	"parkwise/internal/usecase/commands"
	"parkwise/internal/usecase/confirmation"
	"parkwise/internal/usecase/queries"
	sharedmock "parkwise/tests/mock/shared"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

type staticIdentity struct {
	identity user.Identity
}

func (s staticIdentity) Identity() (user.Identity, bool) {
	return s.identity, !s.identity.IsAnonymous()
}

type slotState struct {
	Occupied    bool
	Reserved    bool
	HolderEmail string
	ReservedAt  *time.Time
}

func stateOf(s *slot.Slot) slotState {
	return slotState{
		Occupied:    s.Occupied(),
		Reserved:    s.Reserved(),
		HolderEmail: s.HolderEmail(),
		ReservedAt:  s.ReservedAt(),
	}
}

type CoordinatorTestSuite struct {
	suite.Suite
	ctx          context.Context
	mockCtrl     *gomock.Controller
	mockNotifier *sharedmock.MockNotifier
	mockCodes    *sharedmock.MockCodeGenerator
	store        *memstore.SlotStore
	view         *queries.PersonalReservationView
	dispatcher   *confirmation.Dispatcher
	identity     user.Identity
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorTestSuite))
}

func (s *CoordinatorTestSuite) SetupTest() {
	s.reset()
}

func (s *CoordinatorTestSuite) SetupSubTest() {
	s.reset()
}

func (s *CoordinatorTestSuite) reset() {
	s.ctx = context.Background()
	s.mockCtrl = gomock.NewController(s.T())
	s.mockNotifier = sharedmock.NewMockNotifier(s.mockCtrl)
	s.mockCodes = sharedmock.NewMockCodeGenerator(s.mockCtrl)
	s.mockCodes.EXPECT().URL(gomock.Any()).Return("https://codes.example/qr.png").AnyTimes()

	cfg := config.NewTestConfig()
	cfg.Store.MemorySlots = []string{"slot-3", "slot-5", "slot-7"}
	s.store = memstore.NewSlotStore(cfg)
	s.view = queries.NewPersonalReservationView(s.store)
	s.dispatcher = confirmation.NewDispatcher(s.mockNotifier, s.mockCodes, clock.NewMockClock(fixedNow), cfg, nil).
		WithNumberSource(func() int { return 42 })

	email, err := user.NewEmail("u1@x.com")
	s.Require().NoError(err)
	s.identity = user.NewIdentity(email)
}

func (s *CoordinatorTestSuite) coordinator(identity user.Identity, queue *commands.IntentQueue) *commands.ReservationCoordinator {
	return commands.NewReservationCoordinator(staticIdentity{identity}, s.view, s.store, s.dispatcher, queue, nil)
}

func (s *CoordinatorTestSuite) slot(id slot.ID) *slot.Slot {
	got, err := s.store.FindByID(s.ctx, id)
	s.Require().NoError(err)
	return got
}

func (s *CoordinatorTestSuite) deliverOK() *gomock.Call {
	return s.mockNotifier.EXPECT().Deliver(gomock.Any(), "u1@x.com", gomock.Any()).Return(http.StatusOK, nil)
}

func (s *CoordinatorTestSuite) TestReserve() {
	s.Run("シナリオA: 予約が確定しビューに反映", func() {
		s.deliverOK().Times(1)
		c := s.coordinator(s.identity, nil)

		res, err := c.Reserve(s.ctx, "slot-3")
		s.Require().NoError(err)

		want := slotState{Reserved: true, HolderEmail: "u1@x.com", ReservedAt: &fixedNow}
		if diff := cmp.Diff(want, stateOf(s.slot("slot-3"))); diff != "" {
			s.T().Errorf("slot mismatch (-want +got):\n%s", diff)
		}
		s.Equal("PK-42", res.ConfirmationNumber)
		s.Equal("https://codes.example/qr.png", res.CodeURL)
		s.Equal(slot.ID("slot-3"), res.Slot.ID())
		s.True(s.view.Owns("slot-3"))
		s.Len(s.view.Current(), 1)
		s.Equal(commands.PhaseCommitted, c.Phase("slot-3"))
	})
}

func (s *CoordinatorTestSuite) TestReserveLimitReached() {
	s.Run("シナリオB: 既に予約があれば上限エラー", func() {
		s.deliverOK().Times(1)
		c := s.coordinator(s.identity, nil)
		_, err := c.Reserve(s.ctx, "slot-3")
		s.Require().NoError(err)
		before := stateOf(s.slot("slot-7"))

		_, err = c.Reserve(s.ctx, "slot-7")

		s.ErrorIs(err, commands.ErrLimitReached)
		s.Equal(before, stateOf(s.slot("slot-7")))
		s.Equal(commands.PhaseIdle, c.Phase("slot-7"))
	})
}

func (s *CoordinatorTestSuite) TestReserveDeliveryFailure() {
	cases := []struct {
		name   string
		status int
		err    error
		reason confirmation.Reason
	}{
		{name: "シナリオD: 通知が拒否された", status: http.StatusBadRequest, reason: confirmation.ReasonRejected},
		{name: "通信エラー", err: errors.New("dial tcp: refused"), reason: confirmation.ReasonTransport},
		{name: "タイムアウト", err: context.DeadlineExceeded, reason: confirmation.ReasonTimeout},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.mockNotifier.EXPECT().Deliver(gomock.Any(), "u1@x.com", gomock.Any()).Return(tc.status, tc.err).Times(1)
			c := s.coordinator(s.identity, nil)
			before := stateOf(s.slot("slot-5"))

			_, err := c.Reserve(s.ctx, "slot-5")

			s.ErrorIs(err, commands.ErrDeliveryFailed)
			reason, ok := commands.DeliveryReason(err)
			s.True(ok)
			s.Equal(tc.reason, reason)
			s.Equal(before, stateOf(s.slot("slot-5")))
			s.True(s.view.IsEmpty())
			s.Equal(commands.PhaseAborted, c.Phase("slot-5"))
		})
	}
}

func (s *CoordinatorTestSuite) TestReserveRejectsEarly() {
	s.Run("未ログインは認証エラー", func() {
		c := s.coordinator(user.Identity{}, nil)
		_, err := c.Reserve(s.ctx, "slot-3")
		s.ErrorIs(err, commands.ErrAuthRequired)
	})

	s.Run("存在しないスロット", func() {
		c := s.coordinator(s.identity, nil)
		_, err := c.Reserve(s.ctx, "slot-99")
		s.ErrorIs(err, commands.ErrSlotNotFound)
		s.Equal(commands.PhaseIdle, c.Phase("slot-99"))
	})

	s.Run("他人の予約を上書きする", func() {
		// the write is unconditional: a slot reserved by someone else is taken over
		change, err := slot.ReserveChange("other@x.com", fixedNow)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Apply(s.ctx, "slot-7", change))
		s.deliverOK().Times(1)

		_, err = s.coordinator(s.identity, nil).Reserve(s.ctx, "slot-7")
		s.Require().NoError(err)
		s.Equal("u1@x.com", s.slot("slot-7").HolderEmail())
	})
}

func (s *CoordinatorTestSuite) TestCancel() {
	s.Run("シナリオC: 解除しても使用状況は変わらない", func() {
		s.deliverOK().Times(1)
		c := s.coordinator(s.identity, nil)
		_, err := c.Reserve(s.ctx, "slot-3")
		s.Require().NoError(err)
		s.Require().NoError(s.store.Apply(s.ctx, "slot-3", slot.OccupancyChange(true)))

		err = c.Cancel(s.ctx, "slot-3")
		s.Require().NoError(err)

		want := slotState{Occupied: true}
		if diff := cmp.Diff(want, stateOf(s.slot("slot-3"))); diff != "" {
			s.T().Errorf("slot mismatch (-want +got):\n%s", diff)
		}
		s.True(s.view.IsEmpty())
		s.Equal(commands.PhaseIdle, c.Phase("slot-3"))
	})

	s.Run("未予約スロットの解除はNotOwner", func() {
		err := s.coordinator(s.identity, nil).Cancel(s.ctx, "slot-5")
		s.ErrorIs(err, commands.ErrNotOwner)
	})

	s.Run("2回目の解除はNotOwner", func() {
		s.deliverOK().Times(1)
		c := s.coordinator(s.identity, nil)
		_, err := c.Reserve(s.ctx, "slot-3")
		s.Require().NoError(err)

		s.Require().NoError(c.Cancel(s.ctx, "slot-3"))
		s.ErrorIs(c.Cancel(s.ctx, "slot-3"), commands.ErrNotOwner)
	})

	s.Run("他人の予約は解除できない", func() {
		change, err := slot.ReserveChange("other@x.com", fixedNow)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Apply(s.ctx, "slot-7", change))

		err = s.coordinator(s.identity, nil).Cancel(s.ctx, "slot-7")

		s.ErrorIs(err, commands.ErrNotOwner)
		s.Equal("other@x.com", s.slot("slot-7").HolderEmail())
	})

	s.Run("未ログインは認証エラー", func() {
		err := s.coordinator(user.Identity{}, nil).Cancel(s.ctx, "slot-3")
		s.ErrorIs(err, commands.ErrAuthRequired)
	})
}

// holds every Deliver call until n callers have arrived
func barrier(n int) func(context.Context, string, map[string]string) (int, error) {
	var mu sync.Mutex
	arrived := 0
	release := make(chan struct{})
	return func(ctx context.Context, _ string, _ map[string]string) (int, error) {
		mu.Lock()
		arrived++
		if arrived == n {
			close(release)
		}
		mu.Unlock()

		select {
		case <-release:
			return http.StatusOK, nil
		case <-time.After(2 * time.Second):
			return 0, errors.New("barrier timeout")
		}
	}
}

func (s *CoordinatorTestSuite) TestConcurrentReserve() {
	s.Run("既定では同時予約で二重予約が起こりうる", func() {
		s.mockNotifier.EXPECT().Deliver(gomock.Any(), "u1@x.com", gomock.Any()).DoAndReturn(barrier(2)).Times(2)
		c := s.coordinator(s.identity, nil)

		errs := s.reserveConcurrently(c, "slot-3", "slot-5")

		s.NoError(errs[0])
		s.NoError(errs[1])
		held, err := s.store.FindByHolder(s.ctx, "u1@x.com")
		s.Require().NoError(err)
		s.Len(held, 2)
	})

	s.Run("直列化モードでは一件のみ", func() {
		queue := commands.NewIntentQueue()
		queue.Start()
		defer queue.Stop()

		s.deliverOK().Times(1)
		c := s.coordinator(s.identity, queue)

		errs := s.reserveConcurrently(c, "slot-3", "slot-5")

		succeeded, limited := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, commands.ErrLimitReached):
				limited++
			}
		}
		s.Equal(1, succeeded)
		s.Equal(1, limited)
		held, err := s.store.FindByHolder(s.ctx, "u1@x.com")
		s.Require().NoError(err)
		s.Len(held, 1)
	})
}

func (s *CoordinatorTestSuite) reserveConcurrently(c *commands.ReservationCoordinator, ids ...slot.ID) []error {
	out := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, out[i] = c.Reserve(s.ctx, id)
		}()
	}
	wg.Wait()
	return out
}

func TestCoordinatorPersistence(t *testing.T) {
	email, err := user.NewEmail("u1@x.com")
	require.NoError(t, err)
	identity := user.NewIdentity(email)
	target := slot.NewAvailable("slot-3", "")

	setup := func(t *testing.T) (*sharedmock.MockSlotStore, *sharedmock.MockNotifier, *commands.ReservationCoordinator) {
		ctrl := gomock.NewController(t)
		store := sharedmock.NewMockSlotStore(ctrl)
		notifier := sharedmock.NewMockNotifier(ctrl)
		codes := sharedmock.NewMockCodeGenerator(ctrl)
		codes.EXPECT().URL(gomock.Any()).Return("u").AnyTimes()

		view := queries.NewPersonalReservationView(store)
		dispatcher := confirmation.NewDispatcher(notifier, codes, clock.NewMockClock(fixedNow), config.NewTestConfig(), nil)
		c := commands.NewReservationCoordinator(staticIdentity{identity}, view, store, dispatcher, nil, nil)
		return store, notifier, c
	}

	t.Run("書き込み失敗はPersistenceFailed", func(t *testing.T) {
		store, notifier, c := setup(t)
		store.EXPECT().FindByID(gomock.Any(), slot.ID("slot-3")).Return(target, nil)
		notifier.EXPECT().Deliver(gomock.Any(), "u1@x.com", gomock.Any()).Return(http.StatusOK, nil)
		store.EXPECT().Apply(gomock.Any(), slot.ID("slot-3"), gomock.Any()).Return(errors.New("write refused"))

		_, err := c.Reserve(context.Background(), "slot-3")

		assert.ErrorIs(t, err, commands.ErrPersistenceFailed)
		assert.Equal(t, commands.PhaseAborted, c.Phase("slot-3"))
	})

	t.Run("確定後のリフレッシュ失敗は成功扱い", func(t *testing.T) {
		store, notifier, c := setup(t)
		store.EXPECT().FindByID(gomock.Any(), slot.ID("slot-3")).Return(target, nil)
		notifier.EXPECT().Deliver(gomock.Any(), "u1@x.com", gomock.Any()).Return(http.StatusOK, nil)
		store.EXPECT().Apply(gomock.Any(), slot.ID("slot-3"), gomock.Any()).Return(nil)
		store.EXPECT().FindByHolder(gomock.Any(), "u1@x.com").Return(nil, errors.New("read timeout"))

		res, err := c.Reserve(context.Background(), "slot-3")

		require.NoError(t, err)
		assert.True(t, res.Slot.Reserved())
		assert.Equal(t, commands.PhaseCommitted, c.Phase("slot-3"))
	})

	t.Run("書き込み内容", func(t *testing.T) {
		store, notifier, c := setup(t)
		store.EXPECT().FindByID(gomock.Any(), slot.ID("slot-3")).Return(target, nil)
		notifier.EXPECT().Deliver(gomock.Any(), "u1@x.com", gomock.Any()).Return(http.StatusOK, nil)
		store.EXPECT().Apply(gomock.Any(), slot.ID("slot-3"), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ slot.ID, change slot.Change) error {
				require.NoError(t, change.Validate())
				assert.True(t, *change.Reserved)
				assert.False(t, *change.Occupied)
				assert.Equal(t, "u1@x.com", *change.HolderEmail)
				assert.Equal(t, fixedNow, *change.ReservedAt.Time)
				return nil
			})
		store.EXPECT().FindByHolder(gomock.Any(), "u1@x.com").Return(nil, nil)

		_, err := c.Reserve(context.Background(), "slot-3")
		require.NoError(t, err)
	})
}
