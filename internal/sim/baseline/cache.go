package baseline

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"agrifood.ai/internal/sim/datablock"
)

// Loader fetches the raw dataset, from a store, a snapshot or the demo.
type Loader func(ctx context.Context) (*Dataset, error)

// Cache assembles the baseline once and hands out copies. Concurrent
// callers share a single load. Invalidate bumps the generation; a load that
// started under an older generation is returned to its callers but not kept.
type Cache struct {
	load Loader
	log  *zap.Logger

	group singleflight.Group

	mu  sync.RWMutex
	db  *datablock.DataBlock
	gen uint64
}

type CacheOption func(*Cache)

func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

func NewCache(load Loader, opts ...CacheOption) *Cache {
	c := &Cache{load: load, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the shared baseline. Callers must not modify it.
func (c *Cache) Get(ctx context.Context) (*datablock.DataBlock, error) {
	c.mu.RLock()
	db, gen := c.db, c.gen
	c.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	ch := c.group.DoChan("baseline:"+strconv.FormatUint(gen, 10), func() (any, error) {
		c.mu.RLock()
		db := c.db
		c.mu.RUnlock()
		if db != nil {
			return db, nil
		}
		ds, err := c.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		db, err = Assemble(ds)
		if err != nil {
			return nil, err
		}
		baselineLoads.Inc()
		c.log.Info("baseline assembled", zap.String("dataset", ds.Name), zap.Int("items", len(ds.Items)), zap.Int("years", len(ds.Years)), zap.Uint64("generation", gen))
		c.mu.Lock()
		if c.gen == gen {
			c.db = db
		} else {
			c.log.Info("baseline invalidated during load; not cached", zap.Uint64("generation", gen))
		}
		c.mu.Unlock()
		return db, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*datablock.DataBlock), nil
	}
}

// Fresh returns a private deep copy of the baseline.
func (c *Cache) Fresh(ctx context.Context) (*datablock.DataBlock, error) {
	db, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return db.Clone(), nil
}

// Invalidate drops the cached baseline. The next Get reloads it, even when a
// load is in flight.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.db = nil
	c.gen++
	c.mu.Unlock()
}
