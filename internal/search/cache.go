// Package search implements the memoized parameter search: a canonical-key
// cache over the batch simulator, candidate policies and a coordinate
// hill-climb with an exploration fallback.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/idhash"
	"github.com/cchevrot/backtest/internal/observability"
	"github.com/cchevrot/backtest/internal/storage"
)

// Evaluator simulates one configuration over the whole batch of days.
type Evaluator interface {
	Evaluate(ctx context.Context, cfg domain.Params) (*domain.AggregateMetrics, error)
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	Evaluator     Evaluator
	Store         storage.ResultStore // nil keeps results in memory only
	Logger        *zerolog.Logger
	RecordMetrics bool
	Now           func() time.Time
}

// Cache memoizes evaluations by canonical key. Concurrent evaluations of
// the same key run the simulation once.
type Cache struct {
	eval   Evaluator
	store  storage.ResultStore
	logger zerolog.Logger
	record bool
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*domain.ResultRecord // keyed by canonical key
	group   singleflight.Group

	hits      atomic.Int64
	simulated atomic.Int64
}

// Evaluation is the outcome of one cache lookup.
type Evaluation struct {
	Params   domain.Params
	ConfigID string
	Key      string
	Metrics  domain.AggregateMetrics
	Cached   bool // served without running a simulation in this call
}

// Stats reports cache activity.
type Stats struct {
	Entries   int
	Hits      int64
	Simulated int64
}

// NewCache creates a cache.
func NewCache(opts CacheOptions) *Cache {
	c := &Cache{
		eval:    opts.Evaluator,
		store:   opts.Store,
		logger:  zerolog.Nop(),
		record:  opts.RecordMetrics,
		now:     opts.Now,
		entries: make(map[string]*domain.ResultRecord),
	}
	if opts.Logger != nil {
		c.logger = opts.Logger.With().Str("component", "cache").Logger()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Warm loads every stored result into the cache and returns how many
// entries were added.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	records, err := c.store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load results: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, r := range records {
		key := r.Key
		if key == "" {
			if key, err = domain.CanonicalKey(r.Params); err != nil {
				return added, err
			}
		}
		if _, ok := c.entries[key]; ok {
			continue
		}
		c.entries[key] = r
		added++
	}
	c.logger.Info().Int("entries", added).Msg("cache warmed from result store")
	return added, nil
}

// Seen reports whether p has a cached result. Non-canonical params are
// never seen.
func (c *Cache) Seen(p domain.Params) bool {
	key, err := domain.CanonicalKey(p)
	if err != nil {
		return false
	}
	_, ok := c.get(key)
	return ok
}

// Evaluate returns the cached metrics for p or simulates it, stores the
// result and appends it to the result store. A non-canonical p returns an
// error wrapping domain.ErrNonCanonical; callers must treat it as fatal.
func (c *Cache) Evaluate(ctx context.Context, p domain.Params) (Evaluation, error) {
	id, key, err := idhash.ConfigID(p)
	if err != nil {
		return Evaluation{}, err
	}

	if r, ok := c.get(key); ok {
		c.hit()
		return Evaluation{Params: p, ConfigID: id, Key: key, Metrics: r.Metrics, Cached: true}, nil
	}

	type outcome struct {
		rec *domain.ResultRecord
		ran bool
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent call may have finished between the lookup and Do.
		if r, ok := c.get(key); ok {
			return outcome{rec: r}, nil
		}

		start := time.Now()
		m, err := c.eval.Evaluate(ctx, p)
		if err != nil {
			return nil, err
		}
		c.simulated.Add(1)
		if c.record {
			observability.RecordEvaluation()
			observability.RecordCacheLookup(false)
		}

		rec := &domain.ResultRecord{
			ConfigID:  id,
			Key:       key,
			Params:    p.Clone(),
			Metrics:   *m,
			CreatedAt: c.now().UTC(),
		}
		c.put(key, rec)

		if c.store != nil {
			if err := c.store.Append(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				return nil, fmt.Errorf("append result %s: %w", id, err)
			}
		}

		c.logger.Debug().
			Str("config_id", id).
			Str("config", key).
			Float64("pnl", m.TotalPnL).
			Dur("elapsed", time.Since(start)).
			Msg("configuration simulated")
		return outcome{rec: rec, ran: true}, nil
	})
	if err != nil {
		return Evaluation{}, err
	}

	out := v.(outcome)
	if !out.ran {
		c.hit()
	}
	return Evaluation{Params: p, ConfigID: id, Key: key, Metrics: out.rec.Metrics, Cached: !out.ran}, nil
}

// Top returns the n best cached results by pnl. The records are shared
// with the cache and must not be modified.
func (c *Cache) Top(n int) []*domain.ResultRecord {
	c.mu.RLock()
	all := make([]*domain.ResultRecord, 0, len(c.entries))
	for _, r := range c.entries {
		all = append(all, r)
	}
	c.mu.RUnlock()
	return storage.RankByPnL(all, n)
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{Entries: n, Hits: c.hits.Load(), Simulated: c.simulated.Load()}
}

func (c *Cache) hit() {
	c.hits.Add(1)
	if c.record {
		observability.RecordCacheLookup(true)
	}
}

func (c *Cache) get(key string) (*domain.ResultRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

func (c *Cache) put(key string, r *domain.ResultRecord) {
	c.mu.Lock()
	c.entries[key] = r
	c.mu.Unlock()
}
