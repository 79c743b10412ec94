// Package fetch is the read-through cache in front of every provider call.
//
// A request computes its key, consults the store, and on a miss runs the fetch once per key
// no matter how many callers are waiting for it. Successful results are written back with
// the configured TTL. Store failures never fail a request.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	constants "news-digest-api/api/constants"
	kv "news-digest-api/api/kv"
)

// Codec serialises cached values.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// JSON is the default codec.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

// Outcome says where a result came from.
type Outcome string

const (
	Hit    Outcome = "HIT"
	Miss   Outcome = "MISS"
	Bypass Outcome = "BYPASS"
)

// Options configures a Cached.
type Options[T any] struct {
	Name  string
	Store kv.Store
	TTL   time.Duration
	Codec Codec[T]
	// Cacheable decides whether a fetched value is written back. Nil caches everything.
	Cacheable func(T) bool
	// Timeout bounds the shared fetch, which outlives any single caller's cancellation.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Cached is a read-through cache for one kind of value.
type Cached[T any] struct {
	opts  Options[T]
	log   *slog.Logger
	group singleflight.Group
}

func New[T any](opts Options[T]) *Cached[T] {
	if opts.Store == nil {
		opts.Store = kv.NopStore{}
	}
	if opts.Codec == nil {
		opts.Codec = JSON[T]()
	}
	log := opts.Logger
	if log == nil {
		log = constants.Logger
	}
	return &Cached[T]{opts: opts, log: log.With("cache", opts.Name)}
}

// Get returns the cached value for key, or runs fetch and stores its result.
// With skipCache the read is bypassed but the result is still written.
func (c *Cached[T]) Get(ctx context.Context, key string, skipCache bool, fetch func(ctx context.Context) (T, error)) (T, Outcome, error) {
	var zero T

	outcome := Bypass
	if !skipCache {
		outcome = Miss
		if v, ok := c.read(ctx, key); ok {
			return v, Hit, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetchAndStore(ctx, key, !skipCache, fetch)
	})

	select {
	case <-ctx.Done():
		return zero, outcome, fmt.Errorf("%s fetch abandoned: %w", c.opts.Name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, outcome, res.Err
		}
		if res.Shared {
			c.log.Debug("Shared in-flight fetch", "key", key)
		}
		r := res.Val.(fetched[T])
		if r.hit {
			outcome = Hit
		}
		return r.v, outcome, nil
	}
}

// fetched is what the single-flight leader hands to every waiter.
type fetched[T any] struct {
	v   T
	hit bool
}

func (c *Cached[T]) read(ctx context.Context, key string) (T, bool) {
	var zero T

	data, ok, err := c.opts.Store.Get(ctx, key)
	if err != nil {
		c.log.Warn("Cache read failed, fetching directly", "key", key, "error", err)
		return zero, false
	}
	if !ok {
		c.log.Info("Cache miss", "key", key)
		return zero, false
	}

	v, err := c.opts.Codec.Decode(data)
	if err != nil {
		c.log.Warn("Cached entry unreadable, fetching directly", "key", key, "error", err)
		return zero, false
	}
	c.log.Info("Cache hit", "key", key)
	return v, true
}

// fetchAndStore runs as the single-flight leader. With recheck it reads the store once
// more first: a previous leader may have written the key after this caller's read missed.
func (c *Cached[T]) fetchAndStore(ctx context.Context, key string, recheck bool, fetch func(ctx context.Context) (T, error)) (fetched[T], error) {
	ctx = context.WithoutCancel(ctx)
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	if recheck {
		if v, ok := c.read(ctx, key); ok {
			return fetched[T]{v: v, hit: true}, nil
		}
	}

	start := time.Now()
	v, err := fetch(ctx)
	if err != nil {
		c.log.Error("Fetch failed", "key", key, "duration", time.Since(start), "error", err)
		return fetched[T]{}, err
	}
	c.log.Info("Fetched fresh value", "key", key, "duration", time.Since(start))

	if c.opts.Cacheable != nil && !c.opts.Cacheable(v) {
		c.log.Info("Result not cached", "key", key)
		return fetched[T]{v: v}, nil
	}
	c.write(ctx, key, v)
	return fetched[T]{v: v}, nil
}

func (c *Cached[T]) write(ctx context.Context, key string, v T) {
	data, err := c.opts.Codec.Encode(v)
	if err != nil {
		c.log.Warn("Failed to encode value for cache", "key", key, "error", err)
		return
	}
	if err := c.opts.Store.Set(ctx, key, data, c.opts.TTL); err != nil {
		c.log.Warn("Cache write failed", "key", key, "error", err)
		return
	}
	c.log.Info("Cached value", "key", key, "ttl", c.opts.TTL, "bytes", len(data))
}
