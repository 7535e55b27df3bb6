package coordinator_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.pactly.app/datakit/internal/core/domain"
	"go.pactly.app/datakit/internal/core/ports"
	"go.pactly.app/datakit/internal/core/ports/mocks"
	"go.pactly.app/datakit/internal/engine/bus"
	"go.pactly.app/datakit/internal/engine/coordinator"
	"go.uber.org/mock/gomock"
)

const schemaVersion = 3

var (
	base = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	testThresholds = domain.Thresholds{
		Fresh:   30 * time.Minute,
		Stale:   4 * time.Hour,
		Expired: 24 * time.Hour,
	}
)

type payload struct {
	Items []string `json:"items"`
}

// fakeSession is a minimal ports.Session whose epoch can be bumped
// mid-test to simulate a logout.
type fakeSession struct {
	mu    sync.Mutex
	token string
	epoch uint64
}

func (s *fakeSession) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", domain.ErrSessionEnded
	}
	return s.token, nil
}

func (s *fakeSession) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *fakeSession) logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.epoch++
}

// settableClock is a clock whose Now can move in either direction, which
// a FakeClock cannot do. Used to simulate out-of-order refresh completions.
type settableClock struct {
	clockwork.Clock
	mu  sync.Mutex
	now time.Time
}

func (c *settableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *settableClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	ctrl    *gomock.Controller
	store   *mocks.MockEntryStore
	fp      *mocks.MockFingerprintSource
	logger  *mocks.MockLogger
	tracer  *mocks.MockTracer
	session *fakeSession
	bus     *bus.Bus
	clock   clockwork.FakeClock
	fetches atomic.Int32

	mu    sync.Mutex
	saved []domain.Entry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		ctrl:    ctrl,
		store:   mocks.NewMockEntryStore(ctrl),
		fp:      mocks.NewMockFingerprintSource(ctrl),
		logger:  mocks.NewMockLogger(ctrl),
		tracer:  mocks.NewMockTracer(ctrl),
		session: &fakeSession{token: "tok-1", epoch: 1},
		bus:     bus.New(),
		clock:   clockwork.NewFakeClockAt(base),
	}

	f.logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	f.logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	f.logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	f.logger.EXPECT().Error(gomock.Any(), gomock.Any()).AnyTimes()

	span := mocks.NewMockSpan(ctrl)
	span.EXPECT().End().AnyTimes()
	span.EXPECT().RecordError(gomock.Any()).AnyTimes()
	span.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()
	span.EXPECT().Write(gomock.Any()).Return(0, nil).AnyTimes()
	f.tracer.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, span
		}).AnyTimes()

	return f
}

// stubStore wires the happy-path store behavior: one persisted entry (or
// none) and saves recorded in f.saved.
func (f *fixture) stubStore(persisted *domain.Entry) {
	f.store.EXPECT().Load(domain.KeyFriends).Return(persisted, nil).AnyTimes()
	f.store.EXPECT().Save(domain.KeyFriends, gomock.Any()).DoAndReturn(
		func(_ string, entry domain.Entry) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.saved = append(f.saved, entry)
			return nil
		}).AnyTimes()
	f.store.EXPECT().Clear(domain.KeyFriends).Return(nil).AnyTimes()
}

func (f *fixture) savedEntries() []domain.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Entry(nil), f.saved...)
}

func (f *fixture) serve(p payload) coordinator.FetchFunc[payload] {
	return func(context.Context, string) (payload, error) {
		f.fetches.Add(1)
		return p, nil
	}
}

func (f *fixture) fail(err error) coordinator.FetchFunc[payload] {
	return func(context.Context, string) (payload, error) {
		f.fetches.Add(1)
		return payload{}, err
	}
}

func (f *fixture) serveAfter(release <-chan struct{}, p payload) coordinator.FetchFunc[payload] {
	return func(context.Context, string) (payload, error) {
		f.fetches.Add(1)
		<-release
		return p, nil
	}
}

func (f *fixture) coord(fetch coordinator.FetchFunc[payload], mut ...func(*coordinator.Config[payload])) *coordinator.Coordinator[payload] {
	cfg := coordinator.Config[payload]{
		Key:           domain.KeyFriends,
		Thresholds:    testThresholds,
		SchemaVersion: schemaVersion,
		Fetch:         fetch,
		Store:         f.store,
		Session:       f.session,
		Logger:        f.logger,
		Tracer:        f.tracer,
		Bus:           f.bus,
		Clock:         f.clock,
	}
	for _, m := range mut {
		m(&cfg)
	}
	return coordinator.New(cfg)
}

func entryAged(t *testing.T, age time.Duration, p payload, schema int) *domain.Entry {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return &domain.Entry{
		Payload:       raw,
		FetchedAt:     base.Add(-age),
		SchemaVersion: schema,
	}
}

func collect(ch <-chan domain.Event) []domain.Event {
	var evs []domain.Event
	for {
		select {
		case ev := <-ch:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestCoordinator_FreshServesWithoutFetch(t *testing.T) {
	f := newFixture(t)
	cached := payload{Items: []string{"alice"}}
	f.stubStore(entryAged(t, 10*time.Minute, cached, schemaVersion))
	c := f.coord(f.serve(payload{Items: []string{"new"}}))

	for range 3 {
		res, err := c.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, domain.TierFresh, res.Tier)
		require.Equal(t, cached, res.Data)
	}
	require.EqualValues(t, 0, f.fetches.Load())
}

func TestCoordinator_StaleServesAndRefreshesInBackground(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		old := payload{Items: []string{"old"}}
		fresh := payload{Items: []string{"fresh"}}
		f.stubStore(entryAged(t, 50*time.Minute, old, schemaVersion))
		c := f.coord(f.serve(fresh))

		res, err := c.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, domain.TierStale, res.Tier)
		require.Equal(t, old, res.Data)

		synctest.Wait()
		require.EqualValues(t, 1, f.fetches.Load())

		saved := f.savedEntries()
		require.Len(t, saved, 1)
		require.True(t, saved[0].FetchedAt.Equal(base))
		require.Equal(t, schemaVersion, saved[0].SchemaVersion)

		res, err = c.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, domain.TierFresh, res.Tier)
		require.Equal(t, fresh, res.Data)
		require.EqualValues(t, 1, f.fetches.Load())
	})
}

func TestCoordinator_MissBlocksAndPersists(t *testing.T) {
	f := newFixture(t)
	fresh := payload{Items: []string{"fresh"}}
	f.stubStore(nil)
	c := f.coord(f.serve(fresh))

	res, err := c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, domain.TierFresh, res.Tier)
	require.Equal(t, fresh, res.Data)
	require.True(t, res.FetchedAt.Equal(base))
	require.EqualValues(t, 1, f.fetches.Load())

	saved := f.savedEntries()
	require.Len(t, saved, 1)
	require.True(t, saved[0].FetchedAt.Equal(base))
}

func TestCoordinator_SchemaMismatchBehavesLikeMiss(t *testing.T) {
	f := newFixture(t)
	fresh := payload{Items: []string{"fresh"}}
	// Just fetched, but under an older schema.
	f.stubStore(entryAged(t, 0, payload{Items: []string{"old"}}, schemaVersion-1))
	c := f.coord(f.serve(fresh))

	res, err := c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, domain.TierFresh, res.Tier)
	require.Equal(t, fresh, res.Data)
	require.EqualValues(t, 1, f.fetches.Load())
}

func TestCoordinator_ConcurrentMissesShareOneFetch(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		fresh := payload{Items: []string{"fresh"}}
		f.stubStore(nil)
		release := make(chan struct{})
		c := f.coord(f.serveAfter(release, fresh))

		const callers = 5
		results := make(chan coordinator.Result[payload], callers)
		errs := make(chan error, callers)
		for range callers {
			go func() {
				res, err := c.Get(t.Context())
				results <- res
				errs <- err
			}()
		}

		// Everyone is parked on the same in-flight fetch.
		synctest.Wait()
		require.EqualValues(t, 1, f.fetches.Load())

		close(release)
		for range callers {
			require.NoError(t, <-errs)
			res := <-results
			require.Equal(t, fresh, res.Data)
			require.Equal(t, domain.TierFresh, res.Tier)
		}
		require.EqualValues(t, 1, f.fetches.Load())
		require.Len(t, f.savedEntries(), 1)
	})
}

func TestCoordinator_BackgroundFailureKeepsServingCache(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		old := payload{Items: []string{"old"}}
		persisted := entryAged(t, 50*time.Minute, old, schemaVersion)
		f.stubStore(persisted)
		c := f.coord(f.fail(errors.New("backend down")))

		events, cancel := f.bus.Subscribe(8)
		defer cancel()

		res, err := c.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, old, res.Data)

		synctest.Wait()
		require.EqualValues(t, 1, f.fetches.Load())
		require.Empty(t, f.savedEntries())

		var failed bool
		for _, ev := range collect(events) {
			if _, ok := ev.(domain.RefreshFailed); ok {
				failed = true
			}
		}
		require.True(t, failed)

		// The cached payload and its timestamp are untouched.
		res, err = c.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, old, res.Data)
		require.Equal(t, domain.TierStale, res.Tier)
		require.True(t, res.FetchedAt.Equal(persisted.FetchedAt))
	})
}

func TestCoordinator_AuthFailurePublishesSessionInvalid(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		old := payload{Items: []string{"old"}}
		f.stubStore(entryAged(t, 50*time.Minute, old, schemaVersion))
		c := f.coord(f.fail(fmt.Errorf("fetching friends: %w", domain.ErrUnauthorized)))

		events, cancel := f.bus.Subscribe(8)
		defer cancel()

		res, err := c.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, old, res.Data)

		synctest.Wait()
		var invalid bool
		for _, ev := range collect(events) {
			if _, ok := ev.(domain.SessionInvalid); ok {
				invalid = true
			}
		}
		require.True(t, invalid)
		require.Empty(t, f.savedEntries())
	})
}

func TestCoordinator_ExpiredServesImmediately(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		old := payload{Items: []string{"old"}}
		fresh := payload{Items: []string{"fresh"}}
		f.stubStore(entryAged(t, 5*time.Hour, old, schemaVersion))
		c := f.coord(f.serve(fresh))

		res, err := c.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, domain.TierExpired, res.Tier)
		require.Equal(t, old, res.Data)

		synctest.Wait()
		require.EqualValues(t, 1, f.fetches.Load())

		res, err = c.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, domain.TierFresh, res.Tier)
		require.Equal(t, fresh, res.Data)
	})
}

func TestCoordinator_ExpiredAwaitReturnsRefreshed(t *testing.T) {
	f := newFixture(t)
	fresh := payload{Items: []string{"fresh"}}
	f.stubStore(entryAged(t, 5*time.Hour, payload{Items: []string{"old"}}, schemaVersion))
	c := f.coord(f.serve(fresh))

	res, err := c.Get(t.Context(), coordinator.WithAwaitRefresh())
	require.NoError(t, err)
	require.Equal(t, domain.TierFresh, res.Tier)
	require.Equal(t, fresh, res.Data)
	require.EqualValues(t, 1, f.fetches.Load())
}

func TestCoordinator_StaleAwaitReturnsRefreshed(t *testing.T) {
	f := newFixture(t)
	fresh := payload{Items: []string{"fresh"}}
	f.stubStore(entryAged(t, 50*time.Minute, payload{Items: []string{"old"}}, schemaVersion))
	c := f.coord(f.serve(fresh))

	// Awaiting callers get the revalidated payload even in the stale band.
	res, err := c.Get(t.Context(), coordinator.WithAwaitRefresh())
	require.NoError(t, err)
	require.Equal(t, domain.TierFresh, res.Tier)
	require.Equal(t, fresh, res.Data)
	require.EqualValues(t, 1, f.fetches.Load())

	// A fresh entry short-circuits before the await option matters.
	res, err = c.Get(t.Context(), coordinator.WithAwaitRefresh())
	require.NoError(t, err)
	require.Equal(t, fresh, res.Data)
	require.EqualValues(t, 1, f.fetches.Load())
}

func TestCoordinator_ExpiredAwaitPropagatesError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		f.stubStore(entryAged(t, 5*time.Hour, payload{Items: []string{"old"}}, schemaVersion))
		fetchErr := errors.New("backend down")
		c := f.coord(f.fail(fetchErr))

		_, err := c.Get(t.Context(), coordinator.WithAwaitRefresh())
		require.ErrorIs(t, err, fetchErr)

		// Without the await option the same expired entry is still served.
		res, err := c.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, domain.TierExpired, res.Tier)
		synctest.Wait()
	})
}

func TestCoordinator_AncientBlocksOnRefresh(t *testing.T) {
	f := newFixture(t)
	fresh := payload{Items: []string{"fresh"}}
	f.stubStore(entryAged(t, 36*time.Hour, payload{Items: []string{"old"}}, schemaVersion))
	c := f.coord(f.serve(fresh))

	res, err := c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, domain.TierFresh, res.Tier)
	require.Equal(t, fresh, res.Data)
	require.EqualValues(t, 1, f.fetches.Load())
}

func TestCoordinator_AncientFetchFailureReturnsError(t *testing.T) {
	f := newFixture(t)
	f.stubStore(entryAged(t, 36*time.Hour, payload{Items: []string{"old"}}, schemaVersion))
	fetchErr := errors.New("backend down")
	c := f.coord(f.fail(fetchErr))

	_, err := c.Get(t.Context())
	require.ErrorIs(t, err, fetchErr)
}

func TestCoordinator_ForceRefreshBypassesFreshEntry(t *testing.T) {
	f := newFixture(t)
	fresh := payload{Items: []string{"fresh"}}
	f.stubStore(entryAged(t, time.Minute, payload{Items: []string{"old"}}, schemaVersion))
	c := f.coord(f.serve(fresh))

	res, err := c.Get(t.Context(), coordinator.WithForceRefresh())
	require.NoError(t, err)
	require.Equal(t, fresh, res.Data)
	require.EqualValues(t, 1, f.fetches.Load())
}

func TestCoordinator_LogoutDiscardsInFlightRefresh(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		f.stubStore(nil)
		release := make(chan struct{})
		c := f.coord(f.serveAfter(release, payload{Items: []string{"fresh"}}))

		errs := make(chan error, 1)
		go func() {
			_, err := c.Get(t.Context())
			errs <- err
		}()

		// The fetch is in flight; the user logs out underneath it.
		synctest.Wait()
		f.session.logout()
		close(release)

		require.ErrorIs(t, <-errs, domain.ErrSessionEnded)
		require.Empty(t, f.savedEntries())
	})
}

func TestCoordinator_LaterFetchedAtWins(t *testing.T) {
	f := newFixture(t)
	f.stubStore(nil)

	clock := &settableClock{Clock: clockwork.NewRealClock(), now: base.Add(time.Hour)}
	winner := payload{Items: []string{"winner"}}

	var remote payload
	var mu sync.Mutex
	fetch := func(context.Context, string) (payload, error) {
		f.fetches.Add(1)
		mu.Lock()
		defer mu.Unlock()
		return remote, nil
	}
	c := f.coord(fetch, func(cfg *coordinator.Config[payload]) { cfg.Clock = clock })

	mu.Lock()
	remote = winner
	mu.Unlock()
	res, err := c.Get(t.Context(), coordinator.WithForceRefresh())
	require.NoError(t, err)
	require.Equal(t, winner, res.Data)

	// A straggler commits with an earlier timestamp; the newer entry stays.
	clock.set(base)
	mu.Lock()
	remote = payload{Items: []string{"straggler"}}
	mu.Unlock()
	res, err = c.Get(t.Context(), coordinator.WithForceRefresh())
	require.NoError(t, err)
	require.Equal(t, winner, res.Data)
	require.True(t, res.FetchedAt.Equal(base.Add(time.Hour)))

	require.EqualValues(t, 2, f.fetches.Load())
	require.Len(t, f.savedEntries(), 1)
}

func TestCoordinator_FingerprintChangeDemotesFreshEntry(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		old := payload{Items: []string{"old"}}
		fresh := payload{Items: []string{"fresh"}}
		persisted := entryAged(t, 10*time.Minute, old, schemaVersion)
		persisted.Fingerprint = "aaaa"
		f.stubStore(persisted)
		f.fp.EXPECT().Current(gomock.Any()).Return("bbbb", nil).AnyTimes()

		c := f.coord(f.serve(fresh), func(cfg *coordinator.Config[payload]) { cfg.Fingerprint = f.fp })

		// Contact book changed: still served, but revalidation starts.
		res, err := c.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, domain.TierStale, res.Tier)
		require.Equal(t, old, res.Data)

		synctest.Wait()
		require.EqualValues(t, 1, f.fetches.Load())
		saved := f.savedEntries()
		require.Len(t, saved, 1)
		require.Equal(t, "bbbb", saved[0].Fingerprint)
	})
}

func TestCoordinator_FingerprintMatchStaysFresh(t *testing.T) {
	f := newFixture(t)
	cached := payload{Items: []string{"cached"}}
	persisted := entryAged(t, 10*time.Minute, cached, schemaVersion)
	persisted.Fingerprint = "aaaa"
	f.stubStore(persisted)
	f.fp.EXPECT().Current(gomock.Any()).Return("aaaa", nil).AnyTimes()

	c := f.coord(f.serve(payload{Items: []string{"new"}}), func(cfg *coordinator.Config[payload]) { cfg.Fingerprint = f.fp })

	res, err := c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, domain.TierFresh, res.Tier)
	require.Equal(t, cached, res.Data)
	require.EqualValues(t, 0, f.fetches.Load())
}

func TestCoordinator_PersistFailureStillServes(t *testing.T) {
	f := newFixture(t)
	fresh := payload{Items: []string{"fresh"}}
	f.store.EXPECT().Load(domain.KeyFriends).Return(nil, nil).AnyTimes()
	f.store.EXPECT().Save(domain.KeyFriends, gomock.Any()).Return(errors.New("disk full")).AnyTimes()
	c := f.coord(f.serve(fresh))

	res, err := c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, fresh, res.Data)

	// The in-memory copy is authoritative; no refetch needed.
	res, err = c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, domain.TierFresh, res.Tier)
	require.EqualValues(t, 1, f.fetches.Load())
}

func TestCoordinator_LoadErrorDegradesToMiss(t *testing.T) {
	f := newFixture(t)
	fresh := payload{Items: []string{"fresh"}}
	f.store.EXPECT().Load(domain.KeyFriends).Return(nil, errors.New("io error")).Times(1)
	f.store.EXPECT().Save(domain.KeyFriends, gomock.Any()).Return(nil).AnyTimes()
	c := f.coord(f.serve(fresh))

	res, err := c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, fresh, res.Data)
	require.EqualValues(t, 1, f.fetches.Load())
}

func TestCoordinator_UndecodablePayloadRefetches(t *testing.T) {
	f := newFixture(t)
	fresh := payload{Items: []string{"fresh"}}
	f.stubStore(&domain.Entry{
		Payload:       json.RawMessage(`"not an object"`),
		FetchedAt:     base.Add(-time.Minute),
		SchemaVersion: schemaVersion,
	})
	c := f.coord(f.serve(fresh))

	res, err := c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, fresh, res.Data)
	require.EqualValues(t, 1, f.fetches.Load())
}

func TestCoordinator_PeekDoesNotRefresh(t *testing.T) {
	f := newFixture(t)
	f.stubStore(entryAged(t, 50*time.Minute, payload{Items: []string{"old"}}, schemaVersion))
	c := f.coord(f.serve(payload{}))

	st := c.Peek(t.Context())
	require.Equal(t, domain.KeyFriends, st.Key)
	require.Equal(t, domain.TierStale, st.Tier)
	require.True(t, st.HasEntry)
	require.EqualValues(t, 0, f.fetches.Load())
}

func TestCoordinator_PeekMissingEntry(t *testing.T) {
	f := newFixture(t)
	f.stubStore(nil)
	c := f.coord(f.serve(payload{}))

	st := c.Peek(t.Context())
	require.Equal(t, domain.TierInvalid, st.Tier)
	require.False(t, st.HasEntry)
	require.EqualValues(t, 0, f.fetches.Load())
}

func TestCoordinator_InvalidateForcesRefetch(t *testing.T) {
	f := newFixture(t)
	cached := payload{Items: []string{"cached"}}
	fresh := payload{Items: []string{"fresh"}}
	f.stubStore(entryAged(t, time.Minute, cached, schemaVersion))
	c := f.coord(f.serve(fresh))

	res, err := c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, cached, res.Data)
	require.EqualValues(t, 0, f.fetches.Load())

	c.Invalidate()

	res, err = c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, fresh, res.Data)
	require.EqualValues(t, 1, f.fetches.Load())
}
