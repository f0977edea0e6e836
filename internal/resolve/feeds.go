package resolve

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// FeedMode selects when a ContextFeed's value is refreshed, resolving spec
// §9 Open Question 4: on_demand feeds are re-evaluated on every $name read;
// periodic feeds run on their own timer independent of the iteration loop.
type FeedMode string

const (
	FeedOnDemand FeedMode = "on_demand"
	FeedPeriodic FeedMode = "periodic"
)

// Source is the external Context-feed interface consumed by the core (spec
// §6): ResolveFeed(id) -> JSON | missing.
type Source interface {
	ResolveFeed(ctx context.Context, id string) (json.RawMessage, bool)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, id string) (json.RawMessage, bool)

// ResolveFeed implements Source.
func (f SourceFunc) ResolveFeed(ctx context.Context, id string) (json.RawMessage, bool) {
	return f(ctx, id)
}

// FeedSpec declares one registered context feed.
type FeedSpec struct {
	ID       string
	Mode     FeedMode
	Schedule string // cron expression, required when Mode == FeedPeriodic
}

// Registry is the runtime context-feed cache the resolver's Feeds interface
// reads from. <context_feed> stream elements (spec §4.1) write directly into
// it via Bind, overwriting any cached value. Feeds that are not periodic
// are read from Source on every lookup when a Source is set, with the
// cached value used only when Source has none.
type Registry struct {
	mu     sync.RWMutex
	cache  map[string]json.RawMessage
	specs  map[string]FeedSpec
	source Source
	cron   *cron.Cron
	log    *slog.Logger
}

// NewRegistry builds an empty feed registry. source may be nil if the
// caller only ever pushes values via Bind (e.g. pure <context_feed>-driven
// feeds with no external resolver).
func NewRegistry(source Source, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		cache:  make(map[string]json.RawMessage),
		specs:  make(map[string]FeedSpec),
		source: source,
		log:    log.With("component", "context-feeds"),
	}
}

// Register declares a feed. Periodic feeds are not started until Start is
// called; on_demand feeds take effect immediately.
func (r *Registry) Register(spec FeedSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.ID] = spec
}

// Unregister implements the internal remove_context_feed action.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.specs, id)
	delete(r.cache, id)
}

// Bind implements <context_feed> stream elements and the internal
// update_context_feed action: it overwrites the cached value for id.
func (r *Registry) Bind(id string, value json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[id] = value
}

// List implements the internal list_context_feeds action.
func (r *Registry) List() []FeedSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FeedSpec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	return out
}

// Resolve implements the Feeds interface the Resolver reads from. on_demand
// feeds re-resolve from Source on every call (a fresh read per spec §9 OQ4);
// periodic feeds only ever return their last cron-refreshed cache entry.
func (r *Registry) Resolve(id string) (json.RawMessage, bool) {
	r.mu.RLock()
	spec, declared := r.specs[id]
	cached, cachedOK := r.cache[id]
	r.mu.RUnlock()

	if declared && spec.Mode == FeedPeriodic {
		return cached, cachedOK
	}
	if r.source == nil {
		return cached, cachedOK
	}
	if v, ok := r.source.ResolveFeed(context.Background(), id); ok {
		r.mu.Lock()
		r.cache[id] = v
		r.mu.Unlock()
		return v, true
	}
	return cached, cachedOK
}

// Start launches the cron-scheduled refresh goroutine for every registered
// periodic feed. Returns a stop function the caller must call when the
// execution ends.
func (r *Registry) Start() (stop func(), err error) {
	r.mu.RLock()
	var periodic []FeedSpec
	for _, s := range r.specs {
		if s.Mode == FeedPeriodic {
			periodic = append(periodic, s)
		}
	}
	r.mu.RUnlock()

	if len(periodic) == 0 || r.source == nil {
		return func() {}, nil
	}

	c := cron.New()
	for _, spec := range periodic {
		spec := spec
		if _, err := c.AddFunc(spec.Schedule, func() { r.refreshOne(spec.ID) }); err != nil {
			return func() {}, err
		}
	}
	r.cron = c
	c.Start()
	return func() { c.Stop() }, nil
}

func (r *Registry) refreshOne(id string) {
	v, ok := r.source.ResolveFeed(context.Background(), id)
	if !ok {
		r.log.Warn("periodic feed refresh returned no value", "feed_id", id)
		return
	}
	r.mu.Lock()
	r.cache[id] = v
	r.mu.Unlock()
}
