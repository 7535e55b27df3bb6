// Package app implements the application layer for datakit.
package app

import (
	"context"

	"github.com/jonboulle/clockwork"
	"go.pactly.app/datakit/internal/adapters/api"         //nolint:depguard // Wired in app layer
	"go.pactly.app/datakit/internal/adapters/config"      //nolint:depguard // Wired in app layer
	"go.pactly.app/datakit/internal/adapters/fingerprint" //nolint:depguard // Wired in app layer
	"go.pactly.app/datakit/internal/core/domain"
	"go.pactly.app/datakit/internal/core/ports"
	"go.pactly.app/datakit/internal/engine/bus"
	"go.pactly.app/datakit/internal/engine/coordinator"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// invalidator is the untyped surface the app needs from a coordinator of
// any payload type.
type invalidator interface {
	Key() string
	Invalidate()
}

// App owns the session and one coordinator per cached resource. It is the
// single entry point for data access; nothing reaches around it to the
// entry store directly.
type App struct {
	session *SessionState
	store   ports.EntryStore
	bus     *bus.Bus
	log     ports.Logger
	tracer  ports.Tracer

	friends   *coordinator.Coordinator[domain.FriendsSnapshot]
	analytics *coordinator.Coordinator[[]domain.AnalyticsRecord]
	appState  *coordinator.Coordinator[domain.AppState]

	all []invalidator
}

// New wires an App from configuration and adapters. A nil clock means the
// real clock.
func New(
	cfg *config.Config,
	client *api.Client,
	store ports.EntryStore,
	log ports.Logger,
	tracer ports.Tracer,
	clock clockwork.Clock,
) *App {
	session := NewSessionState()
	events := bus.New()

	var contacts ports.FingerprintSource
	if cfg.ContactsSnapshot != "" {
		contacts = fingerprint.NewFileSource(cfg.ContactsSnapshot)
	}
	// Only resources that declare the contacts fingerprint get the source;
	// everyone else ages out purely by time.
	sourceFor := func(key string) ports.FingerprintSource {
		if cfg.Resource(key).Fingerprint == config.FingerprintContacts {
			return contacts
		}
		return nil
	}

	a := &App{
		session: session,
		store:   store,
		bus:     events,
		log:     log,
		tracer:  tracer,
	}

	a.friends = coordinator.New(coordinator.Config[domain.FriendsSnapshot]{
		Key:           domain.KeyFriends,
		Thresholds:    cfg.Resource(domain.KeyFriends).Thresholds,
		SchemaVersion: domain.FriendsSchemaVersion,
		Fetch:         client.FetchFriends,
		Store:         store,
		Fingerprint:   sourceFor(domain.KeyFriends),
		Session:       session,
		Logger:        log,
		Tracer:        tracer,
		Bus:           events,
		Clock:         clock,
	})
	a.analytics = coordinator.New(coordinator.Config[[]domain.AnalyticsRecord]{
		Key:           domain.KeyAnalytics,
		Thresholds:    cfg.Resource(domain.KeyAnalytics).Thresholds,
		SchemaVersion: domain.AnalyticsSchemaVersion,
		Fetch:         client.FetchAnalytics,
		Store:         store,
		Session:       session,
		Logger:        log,
		Tracer:        tracer,
		Bus:           events,
		Clock:         clock,
	})
	a.appState = coordinator.New(coordinator.Config[domain.AppState]{
		Key:           domain.KeyAppState,
		Thresholds:    cfg.Resource(domain.KeyAppState).Thresholds,
		SchemaVersion: domain.AppStateSchemaVersion,
		Fetch:         client.FetchAppState,
		Store:         store,
		Session:       session,
		Logger:        log,
		Tracer:        tracer,
		Bus:           events,
		Clock:         clock,
	})

	a.all = []invalidator{a.friends, a.analytics, a.appState}
	return a
}

// Login installs the bearer token for subsequent fetches.
func (a *App) Login(token string) {
	a.session.Login(token)
}

// Logout ends the session and removes every cached entry, in-memory and
// persisted. A refresh still in flight will find the epoch moved and
// discard its result.
func (a *App) Logout() error {
	a.session.Logout()
	return a.clear()
}

// PrivacyClear removes every cached entry but keeps the session. Used for
// privacy/compliance-initiated clears.
func (a *App) PrivacyClear() error {
	return a.clear()
}

func (a *App) clear() error {
	// Move the epoch first so a refresh in flight cannot recommit the data
	// this clear is about to remove.
	a.session.Renew()
	for _, c := range a.all {
		c.Invalidate()
	}
	if err := a.store.ClearAll(); err != nil {
		return zerr.Wrap(err, "failed to clear cache")
	}
	a.bus.Publish(domain.CacheCleared{})
	return nil
}

// Friends returns the social graph snapshot through the cache.
func (a *App) Friends(ctx context.Context, opts ...coordinator.GetOption) (coordinator.Result[domain.FriendsSnapshot], error) {
	return a.friends.Get(ctx, opts...)
}

// Analytics returns the recipient analytics snapshot through the cache.
func (a *App) Analytics(ctx context.Context, opts ...coordinator.GetOption) (coordinator.Result[[]domain.AnalyticsRecord], error) {
	return a.analytics.Get(ctx, opts...)
}

// AppState returns the generic app state snapshot through the cache.
func (a *App) AppState(ctx context.Context, opts ...coordinator.GetOption) (coordinator.Result[domain.AppState], error) {
	return a.appState.Get(ctx, opts...)
}

// Refresh forces a synchronous refresh of the named resources, or of every
// resource when none are named. Failures are joined; one resource failing
// does not stop the others.
func (a *App) Refresh(ctx context.Context, keys ...string) error {
	return a.refreshAll(ctx, coordinator.WithForceRefresh(), keys)
}

// Revalidate brings the named resources up to date only where their tier
// demands it: fresh entries are left alone, everything else waits for its
// refresh to complete. No keys means every resource.
func (a *App) Revalidate(ctx context.Context, keys ...string) error {
	return a.refreshAll(ctx, coordinator.WithAwaitRefresh(), keys)
}

func (a *App) refreshAll(ctx context.Context, opt coordinator.GetOption, keys []string) error {
	targets, err := a.resolve(keys, opt)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.key)
	}
	a.tracer.EmitPlan(ctx, names)

	// No shared errgroup context: one resource failing must not cancel the
	// siblings still awaiting their own refresh.
	var g errgroup.Group
	for _, t := range targets {
		g.Go(func() error { return t.refresh(ctx) })
	}
	return g.Wait()
}

// Statuses classifies every resource without touching the network.
func (a *App) Statuses(ctx context.Context) []coordinator.Status {
	return []coordinator.Status{
		a.friends.Peek(ctx),
		a.analytics.Peek(ctx),
		a.appState.Peek(ctx),
	}
}

// Events subscribes to the data layer's event stream. The returned cancel
// function must be called to release the subscription.
func (a *App) Events(buffer int) (<-chan domain.Event, func()) {
	return a.bus.Subscribe(buffer)
}

// Session exposes the session state to the interface layer.
func (a *App) Session() *SessionState {
	return a.session
}

// target pairs a resource key with its refresh operation, erasing the
// coordinator's payload type.
type target struct {
	key     string
	refresh func(ctx context.Context) error
}

func (a *App) resolve(keys []string, opt coordinator.GetOption) ([]target, error) {
	available := map[string]target{
		domain.KeyFriends: {key: domain.KeyFriends, refresh: func(ctx context.Context) error {
			_, err := a.friends.Get(ctx, opt)
			return err
		}},
		domain.KeyAnalytics: {key: domain.KeyAnalytics, refresh: func(ctx context.Context) error {
			_, err := a.analytics.Get(ctx, opt)
			return err
		}},
		domain.KeyAppState: {key: domain.KeyAppState, refresh: func(ctx context.Context) error {
			_, err := a.appState.Get(ctx, opt)
			return err
		}},
	}

	if len(keys) == 0 {
		return []target{
			available[domain.KeyFriends],
			available[domain.KeyAnalytics],
			available[domain.KeyAppState],
		}, nil
	}

	targets := make([]target, 0, len(keys))
	for _, key := range keys {
		t, ok := available[key]
		if !ok {
			return nil, zerr.With(domain.ErrUnknownResource, "resource", key)
		}
		targets = append(targets, t)
	}
	return targets, nil
}
