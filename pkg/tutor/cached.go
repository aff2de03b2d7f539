package tutor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/ercanvas/pkg/cache"
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/observability"
)

// DefaultCacheTTL is how long cached tutor responses stay valid.
const DefaultCacheTTL = 24 * time.Hour

// Cached wraps a [Service] and stores evaluation, SQL and hint responses in
// a [cache.Cache], keyed by operation and model content. Scenario generation
// is never cached: each call is expected to produce a new case study.
// Errors are never cached.
type Cached struct {
	inner Service
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// CachedOption configures [Cached].
type CachedOption func(*Cached)

// WithKeyer replaces the cache keyer, for example with a [cache.ScopedKeyer].
func WithKeyer(k cache.Keyer) CachedOption {
	return func(c *Cached) {
		if k != nil {
			c.keyer = k
		}
	}
}

// WithTTL sets the entry TTL. Zero keeps entries forever.
func WithTTL(ttl time.Duration) CachedOption {
	return func(c *Cached) { c.ttl = ttl }
}

// NewCached wraps inner with c.
func NewCached(inner Service, c cache.Cache, opts ...CachedOption) *Cached {
	if c == nil {
		c = cache.NewNullCache()
	}
	cs := &Cached{inner: inner, cache: c, keyer: cache.NewDefaultKeyer(), ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// GenerateScenario always calls through.
func (c *Cached) GenerateScenario(ctx context.Context, d Difficulty) (string, error) {
	return c.inner.GenerateScenario(ctx, d)
}

// EvaluateModel returns a cached evaluation of an identical model if present.
func (c *Cached) EvaluateModel(ctx context.Context, m diagram.Model) (Evaluation, error) {
	if err := requireEntities(m); err != nil {
		return Evaluation{}, err
	}
	var ev Evaluation
	key := c.keyer.TutorKey(OpEvaluate, cacheKeyPayload(m))
	if c.lookup(ctx, OpEvaluate, key, &ev) {
		return ev, nil
	}
	ev, err := c.inner.EvaluateModel(ctx, m)
	if err != nil {
		return Evaluation{}, err
	}
	c.store(ctx, OpEvaluate, key, ev)
	return ev, nil
}

// GenerateSQL returns cached DDL for an identical model and dialect if present.
func (c *Cached) GenerateSQL(ctx context.Context, m diagram.Model, d Dialect) (string, error) {
	if err := requireEntities(m); err != nil {
		return "", err
	}
	var sql string
	key := c.keyer.TutorKey(OpSQL+":"+string(d), cacheKeyPayload(m))
	if c.lookup(ctx, OpSQL, key, &sql) {
		return sql, nil
	}
	sql, err := c.inner.GenerateSQL(ctx, m, d)
	if err != nil {
		return "", err
	}
	if sql != sqlFallback(d) {
		c.store(ctx, OpSQL, key, sql)
	}
	return sql, nil
}

// GuidedHint returns a cached hint for an identical model if present.
func (c *Cached) GuidedHint(ctx context.Context, m diagram.Model) (string, error) {
	var hint string
	key := c.keyer.TutorKey(OpHint, cacheKeyPayload(m))
	if c.lookup(ctx, OpHint, key, &hint) {
		return hint, nil
	}
	hint, err := c.inner.GuidedHint(ctx, m)
	if err != nil {
		return "", err
	}
	if hint != FallbackHint {
		c.store(ctx, OpHint, key, hint)
	}
	return hint, nil
}

// cacheKeyPayload drops layout from the model so that moving cards around
// does not invalidate responses.
func cacheKeyPayload(m diagram.Model) any {
	return struct {
		CaseStudy     string                `json:"caseStudy"`
		Entities      []entitySummary       `json:"entities"`
		Relationships []relationshipSummary `json:"relationships"`
	}{m.CaseStudy, summarizeEntities(m), summarizeRelationships(m)}
}

func (c *Cached) lookup(ctx context.Context, op, key string, v any) bool {
	data, hit, err := c.cache.Get(ctx, key)
	if err != nil || !hit || json.Unmarshal(data, v) != nil {
		observability.Cache().OnCacheMiss(ctx, "tutor:"+op)
		return false
	}
	observability.Cache().OnCacheHit(ctx, "tutor:"+op)
	return true
}

func (c *Cached) store(ctx context.Context, op, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if c.cache.Set(ctx, key, data, c.ttl) == nil {
		observability.Cache().OnCacheSet(ctx, "tutor:"+op, len(data))
	}
}

var _ Service = (*Cached)(nil)
