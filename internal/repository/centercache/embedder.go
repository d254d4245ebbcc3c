// Package centercache caches word centers in a key-value store in front of another embedder.
package centercache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/db"
	"github.com/kailas-cloud/modeld/internal/domain"
)

// DefaultKeyPrefix namespaces cache keys.
const DefaultKeyPrefix = "modeld:"

// store is the consumer interface for the center cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}

// Config holds cache settings.
type Config struct {
	KeyPrefix string
	TTL       time.Duration
	// CacheTotal is a counter vec with label "result" ("hit"/"miss"). Optional.
	CacheTotal *prometheus.CounterVec
	Logger     *zap.Logger
}

// CachedEmbedder caches centers computed by inner. Every successful Load bumps a
// shared generation counter so centers computed from an earlier table are never served.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	generation atomic.Int64
}

// New creates a caching decorator.
func New(inner domain.Embedder, s store, cfg Config) *CachedEmbedder {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		prefix:     prefix,
		ttl:        cfg.TTL,
		cacheTotal: cfg.CacheTotal,
		logger:     l,
	}
}

// Load loads the inner embedder and starts a new cache generation.
// A cache outage never fails the load; centers are then cached under generation 0.
func (c *CachedEmbedder) Load(ctx context.Context) error {
	if err := c.inner.Load(ctx); err != nil {
		return fmt.Errorf("load inner embedder: %w", err)
	}
	gen, err := c.store.IncrBy(ctx, c.generationKey(), 1)
	if err != nil {
		c.logger.Warn("Failed to bump center cache generation", zap.Error(err))
		gen = 0
	}
	c.generation.Store(gen)
	return nil
}

// Free frees the inner embedder.
func (c *CachedEmbedder) Free(ctx context.Context) error {
	if err := c.inner.Free(ctx); err != nil {
		return fmt.Errorf("free inner embedder: %w", err)
	}
	return nil
}

// Loaded delegates to the inner embedder.
func (c *CachedEmbedder) Loaded() bool { return c.inner.Loaded() }

// Dimensions delegates to the inner embedder.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Center returns a cached center or computes it with the inner embedder.
// Nothing is served from cache while the inner embedder is unloaded.
func (c *CachedEmbedder) Center(ctx context.Context, words []string) ([]float32, error) {
	if !c.inner.Loaded() {
		return nil, domain.ErrModelNotLoaded
	}

	key := c.cacheKey(words)
	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return vec, nil
	}
	c.incCache("miss")

	vec, err := c.inner.Center(ctx, words)
	if err != nil {
		return nil, fmt.Errorf("compute center: %w", err)
	}
	c.putToCache(ctx, key, vec)
	return vec, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) generationKey() string {
	return c.prefix + "center_gen"
}

// cacheKey hashes the query as a multiset: the average does not depend on word order.
func (c *CachedEmbedder) cacheKey(words []string) string {
	sorted := slices.Clone(words)
	slices.Sort(sorted)
	h := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return c.prefix + "center:" + strconv.FormatInt(c.generation.Load(), 10) + ":" + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached center", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached center", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if d := c.inner.Dimensions(); d > 0 && len(vec) != d {
		c.logger.Warn("Cached center has wrong dimensions",
			zap.String("key", key), zap.Int("got", len(vec)), zap.Int("want", d))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, vectorToBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache center", zap.String("key", key), zap.Error(err))
	}
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid center cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
