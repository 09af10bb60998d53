package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/fitlog/internal/observability"
)

// Lookup results recorded on the cache metric.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// StatsCache implements domain.StatsCache on top of a Store.
//
// Each user owns a generation token. Entries are keyed by the current token,
// so invalidation only has to drop the token; stale entries age out on
// their TTL.
type StatsCache struct {
	store Store
	ttl   time.Duration
}

// NewStatsCache constructs a StatsCache whose entries live for ttl.
func NewStatsCache(store Store, ttl time.Duration) *StatsCache {
	return &StatsCache{store: store, ttl: ttl}
}

// Load decodes the cached value for key into dst. It returns the user's
// generation as it stood before the caller computes a fresh value, minting
// one when none exists. An empty generation means the cache is unusable for
// this request and Store will do nothing.
func (c *StatsCache) Load(ctx context.Context, userID, key string, dst any) (string, bool) {
	gen, err := c.generation(ctx, userID)
	if err != nil {
		c.failed(ctx, "load generation", userID, err)
		return "", false
	}

	raw, ok, err := c.store.Get(ctx, entryKey(userID, gen, key))
	if err != nil {
		c.failed(ctx, "load entry", userID, err)
		return gen, false
	}
	if !ok {
		observability.RecordCacheLookup(ResultMiss)
		return gen, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.failed(ctx, "decode entry", userID, err)
		return gen, false
	}
	observability.RecordCacheLookup(ResultHit)
	return gen, true
}

// Store caches value under gen, the generation returned by Load. If the user
// was invalidated in between, gen is orphaned and the entry is never read.
func (c *StatsCache) Store(ctx context.Context, userID, gen, key string, value any) {
	if gen == "" {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("encode statistics for cache")
		return
	}
	if err := c.store.Set(ctx, entryKey(userID, gen, key), raw, c.ttl); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("write statistics cache entry")
	}
}

func (c *StatsCache) generation(ctx context.Context, userID string) (string, error) {
	gen, ok, err := c.store.Get(ctx, generationKey(userID))
	if err != nil {
		return "", err
	}
	if ok {
		return string(gen), nil
	}
	fresh := uuid.NewString()
	if err := c.store.Set(ctx, generationKey(userID), []byte(fresh), c.ttl); err != nil {
		return "", err
	}
	return fresh, nil
}

// Invalidate drops every cached value for userID.
func (c *StatsCache) Invalidate(ctx context.Context, userID string) {
	if err := c.store.Delete(ctx, generationKey(userID)); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("invalidate statistics cache")
	}
}

func (c *StatsCache) failed(ctx context.Context, op, userID string, err error) {
	observability.RecordCacheLookup(ResultError)
	log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Str("op", op).Msg("statistics cache lookup failed")
}

func generationKey(userID string) string {
	return "fitlog:gen:" + userID
}

func entryKey(userID, gen, key string) string {
	return "fitlog:stats:" + userID + ":" + gen + ":" + key
}
