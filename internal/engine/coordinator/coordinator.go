// Package coordinator implements the staleness-tiered read-through cache.
// One Coordinator owns one logical resource: it loads the persisted entry,
// classifies it, decides whether to serve it, and runs at most one refresh
// against the backend at a time.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.pactly.app/datakit/internal/core/domain"
	"go.pactly.app/datakit/internal/core/ports"
	"go.pactly.app/datakit/internal/engine/bus"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// FetchFunc retrieves a fresh snapshot from the source of truth.
type FetchFunc[T any] func(ctx context.Context, token string) (T, error)

// Config carries the dependencies for one Coordinator. Fingerprint may be
// nil for resources whose entries age out purely by time.
type Config[T any] struct {
	Key           string
	Thresholds    domain.Thresholds
	SchemaVersion int
	Fetch         FetchFunc[T]
	Store         ports.EntryStore
	Fingerprint   ports.FingerprintSource
	Session       ports.Session
	Logger        ports.Logger
	Tracer        ports.Tracer
	Bus           *bus.Bus
	Clock         clockwork.Clock
}

// Result is a served snapshot plus its classification at serve time. A
// TierExpired result is usable but possibly outdated; the caller decides
// whether to surface a staleness indicator.
type Result[T any] struct {
	Data      T
	Tier      domain.Tier
	FetchedAt time.Time
}

// Status describes the cache entry for a key without touching the network.
type Status struct {
	Key       string
	Tier      domain.Tier
	FetchedAt time.Time
	HasEntry  bool
}

type getConfig struct {
	force bool
	await bool
}

// GetOption adjusts a single Get call.
type GetOption func(*getConfig)

// WithForceRefresh makes Get bypass classification and block on a fresh
// fetch, as if the entry were ancient.
func WithForceRefresh() GetOption {
	return func(cfg *getConfig) { cfg.force = true }
}

// WithAwaitRefresh makes Get wait for the refresh a stale or expired
// entry triggers instead of returning the possibly-outdated payload.
// Fresh entries still return without any network activity.
func WithAwaitRefresh() GetOption {
	return func(cfg *getConfig) { cfg.await = true }
}

// Coordinator is the single owner of one resource key. All reads and
// writes of the in-memory entry go through it, which is what makes the
// single-flight and last-writer-wins guarantees enforceable.
type Coordinator[T any] struct {
	key        string
	thresholds domain.Thresholds
	schema     int
	fetch      FetchFunc[T]
	store      ports.EntryStore
	fp         ports.FingerprintSource
	session    ports.Session
	log        ports.Logger
	tracer     ports.Tracer
	bus        *bus.Bus
	clock      clockwork.Clock

	mu      sync.Mutex
	loaded  bool
	current *domain.Entry

	flight singleflight.Group
}

// New creates a Coordinator from cfg. Clock defaults to the real clock.
func New[T any](cfg Config[T]) *Coordinator[T] {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Coordinator[T]{
		key:        cfg.Key,
		thresholds: cfg.Thresholds,
		schema:     cfg.SchemaVersion,
		fetch:      cfg.Fetch,
		store:      cfg.Store,
		fp:         cfg.Fingerprint,
		session:    cfg.Session,
		log:        cfg.Logger,
		tracer:     cfg.Tracer,
		bus:        cfg.Bus,
		clock:      cfg.Clock,
	}
}

// Key returns the resource key this coordinator owns.
func (c *Coordinator[T]) Key() string {
	return c.key
}

// Get returns the resource snapshot, consulting the cache first.
//
// Fresh entries return without any network activity. Stale entries return
// immediately while one background refresh revalidates them. Expired
// entries return immediately too (tier marks them possibly outdated).
// WithAwaitRefresh makes stale and expired callers wait for that refresh
// instead. Ancient, invalid or missing entries block on a fetch, and that
// fetch's error propagates rather than silently yielding empty data.
func (c *Coordinator[T]) Get(ctx context.Context, opts ...GetOption) (Result[T], error) {
	var cfg getConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	entry, tier := c.classify(ctx, cfg.force)

	if tier == domain.TierFresh {
		res, err := c.decode(entry, tier)
		if err == nil {
			return res, nil
		}
		// The persisted payload no longer decodes into T. Treat it like a
		// schema mismatch.
		c.log.Warn("cached payload undecodable", "resource", c.key)
		tier = domain.TierInvalid
	}

	if tier.ServeFromCache() {
		ch := c.startRefresh(ctx)
		if cfg.await {
			return c.await(ctx, ch)
		}
		res, err := c.decode(entry, tier)
		if err == nil {
			return res, nil
		}
		c.log.Warn("cached payload undecodable", "resource", c.key)
		return c.await(ctx, ch)
	}

	return c.await(ctx, c.startRefresh(ctx))
}

// Peek classifies the current entry without scheduling any refresh.
func (c *Coordinator[T]) Peek(ctx context.Context) Status {
	entry, tier := c.classify(ctx, false)
	st := Status{Key: c.key, Tier: tier}
	if entry != nil {
		st.FetchedAt = entry.FetchedAt
		st.HasEntry = true
	}
	return st
}

// Invalidate drops the in-memory entry and the persisted record. The next
// Get blocks on a fresh fetch.
func (c *Coordinator[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.loaded = true
	c.flight.Forget(c.key)
	if err := c.store.Clear(c.key); err != nil {
		c.log.Error(err, "resource", c.key)
	}
}

// classify loads the entry (from disk on first use) and maps it to a tier.
// A force request skips classification entirely. Inside the fresh band a
// changed external fingerprint demotes the entry to stale: still
// serveable, but a revalidation is due.
func (c *Coordinator[T]) classify(ctx context.Context, force bool) (*domain.Entry, domain.Tier) {
	entry := c.snapshot()
	if force {
		return entry, domain.TierAncient
	}
	tier := domain.Classify(entry, c.clock.Now(), c.thresholds, c.schema)
	if tier == domain.TierFresh && c.fp != nil {
		current, err := c.fp.Current(ctx)
		switch {
		case err != nil:
			c.log.Warn("fingerprint check failed", "resource", c.key, "error", err)
		case current != "" && current != entry.Fingerprint:
			tier = domain.TierStale
		}
	}
	return entry, tier
}

// snapshot returns the in-memory entry, loading the persisted record the
// first time. Load failures degrade to a cache miss.
func (c *Coordinator[T]) snapshot() *domain.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		entry, err := c.store.Load(c.key)
		if err != nil {
			c.log.Warn("cache load failed", "resource", c.key, "error", err)
		} else {
			c.current = entry
		}
		c.loaded = true
	}
	return c.current
}

// startRefresh joins the in-flight refresh for this key or starts one.
// The fetch runs on a context detached from the caller so a background
// refresh survives the UI request that triggered it.
func (c *Coordinator[T]) startRefresh(ctx context.Context) <-chan singleflight.Result {
	detached := context.WithoutCancel(ctx)
	return c.flight.DoChan(c.key, func() (any, error) {
		return c.refresh(detached)
	})
}

// refresh performs one remote fetch and commits the result. Errors are
// published on the bus for background observers; blocking callers receive
// them through the single-flight channel.
func (c *Coordinator[T]) refresh(ctx context.Context) (*domain.Entry, error) {
	epoch := c.session.Epoch()
	token, err := c.session.Token()
	if err != nil {
		c.bus.Publish(domain.RefreshFailed{Key: c.key, Err: err})
		return nil, err
	}

	c.bus.Publish(domain.RefreshStarted{Key: c.key})
	ctx, span := c.tracer.Start(ctx, "refresh."+c.key)
	defer span.End()

	payload, err := c.fetch(ctx, token)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrUnauthorized) {
			// Serving cached data under a rejected session is a security
			// concern, not a staleness concern; the app must know.
			c.bus.Publish(domain.SessionInvalid{Key: c.key})
		} else {
			c.log.Warn("refresh failed", "resource", c.key, "error", err)
		}
		c.bus.Publish(domain.RefreshFailed{Key: c.key, Err: err})
		return nil, zerr.With(zerr.Wrap(err, "refresh failed"), "resource", c.key)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return nil, zerr.With(zerr.Wrap(err, "failed to encode snapshot"), "resource", c.key)
	}

	fingerprint := ""
	if c.fp != nil {
		fingerprint, err = c.fp.Current(ctx)
		if err != nil {
			c.log.Warn("fingerprint refresh failed", "resource", c.key, "error", err)
			fingerprint = ""
		}
	}

	entry := &domain.Entry{
		Payload:       raw,
		FetchedAt:     c.clock.Now(),
		Fingerprint:   fingerprint,
		SchemaVersion: c.schema,
	}

	winner, committed := c.commit(epoch, entry)
	if !committed {
		return nil, domain.ErrSessionEnded
	}
	c.bus.Publish(domain.RefreshSucceeded{Key: c.key, FetchedAt: winner.FetchedAt})
	span.SetAttribute("fetched_at", winner.FetchedAt)
	return winner, nil
}

// commit applies a refresh result. The session epoch must still match the
// one captured when the refresh started; otherwise the user logged out
// mid-flight and the result is discarded. Between two results for the same
// key the later FetchedAt wins regardless of completion order.
func (c *Coordinator[T]) commit(epoch uint64, entry *domain.Entry) (*domain.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Epoch() != epoch {
		return nil, false
	}
	if c.current != nil && c.current.FetchedAt.After(entry.FetchedAt) {
		return c.current, true
	}

	c.current = entry
	c.loaded = true
	if err := c.store.Save(c.key, *entry); err != nil {
		// The in-memory copy stays authoritative; persistence failures
		// never surface to callers.
		c.log.Error(err, "resource", c.key)
	}
	return entry, true
}

// await blocks until the in-flight refresh completes or ctx is done.
func (c *Coordinator[T]) await(ctx context.Context, ch <-chan singleflight.Result) (Result[T], error) {
	select {
	case <-ctx.Done():
		return Result[T]{}, zerr.With(zerr.Wrap(ctx.Err(), "awaiting refresh"), "resource", c.key)
	case r := <-ch:
		if r.Err != nil {
			return Result[T]{}, r.Err
		}
		entry, ok := r.Val.(*domain.Entry)
		if !ok || entry == nil {
			return Result[T]{}, zerr.With(zerr.New("refresh produced no entry"), "resource", c.key)
		}
		return c.decode(entry, domain.TierFresh)
	}
}

// decode unmarshals the entry payload into the resource type.
func (c *Coordinator[T]) decode(entry *domain.Entry, tier domain.Tier) (Result[T], error) {
	var data T
	if err := json.Unmarshal(entry.Payload, &data); err != nil {
		return Result[T]{}, zerr.With(zerr.Wrap(err, "failed to decode cached payload"), "resource", c.key)
	}
	return Result[T]{Data: data, Tier: tier, FetchedAt: entry.FetchedAt}, nil
}
