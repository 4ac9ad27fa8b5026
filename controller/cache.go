package controller

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"chargecal/calendar"
	"chargecal/holiday"
	"chargecal/internal/timeutil"
)

// Bucket is the materialized state of one period.
type Bucket struct {
	Events   []calendar.Event
	Holidays *holiday.Calendar
}

func (b Bucket) clone() Bucket {
	events := make([]calendar.Event, len(b.Events))
	copy(events, b.Events)
	return Bucket{Events: events, Holidays: b.Holidays}
}

// PeriodCache holds materialized events per month. Entries live until they are
// invalidated. Concurrent loads of one period share a single fetch, and a fetch
// that started before an invalidation never overwrites the cache.
type PeriodCache struct {
	mu          sync.Mutex
	buckets     map[timeutil.Period]Bucket
	generations map[timeutil.Period]uint64
	group       singleflight.Group
}

func NewPeriodCache() *PeriodCache {
	return &PeriodCache{
		buckets:     make(map[timeutil.Period]Bucket),
		generations: make(map[timeutil.Period]uint64),
	}
}

func (c *PeriodCache) Get(period timeutil.Period) (Bucket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.buckets[period]
	if !ok {
		return Bucket{}, false
	}
	return bucket.clone(), true
}

func (c *PeriodCache) Put(period timeutil.Period, bucket Bucket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets[period] = bucket.clone()
}

// Invalidate drops the periods and bumps their generation.
func (c *PeriodCache) Invalidate(periods ...timeutil.Period) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, period := range periods {
		delete(c.buckets, period)
		c.generations[period]++
	}
}

// InvalidateAll drops every cached period.
func (c *PeriodCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for period := range c.buckets {
		delete(c.buckets, period)
		c.generations[period]++
	}
}

func (c *PeriodCache) Periods() []timeutil.Period {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]timeutil.Period, 0, len(c.buckets))
	for period := range c.buckets {
		out = append(out, period)
	}
	return out
}

// Load returns the cached bucket or fetches it once for all concurrent callers.
func (c *PeriodCache) Load(ctx context.Context, period timeutil.Period, fetch func(context.Context) (Bucket, error)) (Bucket, error) {
	c.mu.Lock()
	if bucket, ok := c.buckets[period]; ok {
		c.mu.Unlock()
		return bucket.clone(), nil
	}
	generation := c.generations[period]
	c.mu.Unlock()

	key := period.Key() + "#" + strconv.FormatUint(generation, 10)
	value, err, _ := c.group.Do(key, func() (any, error) {
		bucket, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generations[period] == generation {
			c.buckets[period] = bucket
		}
		c.mu.Unlock()
		return bucket, nil
	})
	if err != nil {
		return Bucket{}, err
	}
	return value.(Bucket).clone(), nil
}
