// Package cache keeps generated rows in memory so repeated API queries for
// the same dates skip propagation.
//
// Rows are keyed by UTC date. When the element set in the store changes, the
// cache is cut over: rows from the old set are dropped and the warm window is
// rebuilt from the new one.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/metrics"
	"github.com/dylan7474/planetaryLogger/internal/propagation"
)

// ErrNotReady is returned while the store holds no element set.
var ErrNotReady = errors.New("element set not loaded")

// Config holds row cache configuration.
type Config struct {
	MaxEntries    int           // Rows kept before the oldest dates are evicted (default: 4096)
	WarmDays      int           // Days from today generated on warmup and cutover (default: 30, negative disables)
	CheckInterval time.Duration // How often the store is checked for a new set (default: 10s)
}

// RowCache is an in-memory cache of generated rows.
// Safe for concurrent use by multiple goroutines.
type RowCache struct {
	mu      sync.RWMutex
	entries map[time.Time]propagation.Row
	current *elements.Set // set the entries were generated from

	config Config
	gen    *propagation.Generator
	store  *elements.Store
	logger *slog.Logger
	now    func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	cutovers  atomic.Int64
}

// NewRowCache creates a row cache. Zero-valued config fields take defaults.
func NewRowCache(config Config, gen *propagation.Generator, store *elements.Store, logger *slog.Logger) *RowCache {
	if config.MaxEntries < 1 {
		config.MaxEntries = 4096
	}
	if config.WarmDays < 0 {
		config.WarmDays = 0
	} else if config.WarmDays == 0 {
		config.WarmDays = 30
	}
	if config.WarmDays > config.MaxEntries {
		config.WarmDays = config.MaxEntries
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 10 * time.Second
	}

	logger.Info("row cache initialized",
		"max_entries", config.MaxEntries,
		"warm_days", config.WarmDays,
		"check_interval_seconds", config.CheckInterval.Seconds(),
	)

	return &RowCache{
		entries: make(map[time.Time]propagation.Row),
		config:  config,
		gen:     gen,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// DayKey normalizes t to midnight UTC of its UTC date.
func DayKey(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Rows returns one row per date in [start, end] computed from the current
// element set, generating and caching any dates not yet held. The set the
// rows belong to is returned with them.
func (c *RowCache) Rows(ctx context.Context, start, end time.Time) ([]propagation.Row, *elements.Set, error) {
	set := c.store.Get()
	if set == nil || len(set.Bodies) == 0 {
		return nil, nil, ErrNotReady
	}
	start, end = DayKey(start), DayKey(end)
	n, err := propagation.DayCount(start, end)
	if err != nil {
		return nil, nil, err
	}

	c.cutoverIfChanged(set)

	rows := make([]propagation.Row, n)
	var missing []int
	c.mu.RLock()
	current := c.current == set
	for i := 0; i < n; i++ {
		if row, ok := c.entries[start.AddDate(0, 0, i)]; ok && current {
			rows[i] = row
		} else {
			missing = append(missing, i)
		}
	}
	c.mu.RUnlock()

	c.hits.Add(int64(n - len(missing)))
	c.misses.Add(int64(len(missing)))
	metrics.AddCacheHits(n - len(missing))
	metrics.AddCacheMisses(len(missing))

	// Generate each contiguous run of missing dates in one pass.
	for len(missing) > 0 {
		run := 1
		for run < len(missing) && missing[run] == missing[0]+run {
			run++
		}
		first := missing[0]
		runStart := start.AddDate(0, 0, first)
		runEnd := start.AddDate(0, 0, first+run-1)
		i := first
		err := c.gen.Stream(ctx, set, runStart, runEnd, func(row propagation.Row) error {
			rows[i] = row
			i++
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		c.put(set, rows[first:first+run])
		missing = missing[run:]
	}

	return rows, set, nil
}

// put stores rows generated from set, unless a cutover happened meanwhile.
func (c *RowCache) put(set *elements.Set, rows []propagation.Row) {
	c.mu.Lock()
	if c.current != set {
		c.mu.Unlock()
		return
	}
	for _, row := range rows {
		c.entries[row.Date] = row
	}
	evicted := c.evictOldestLocked()
	count := len(c.entries)
	c.mu.Unlock()

	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		metrics.AddCacheEvictions(evicted)
		c.logger.Debug("row cache eviction", "entries_removed", evicted)
	}
	metrics.SetCacheEntries(count)
}

// evictOldestLocked drops the oldest dates beyond MaxEntries. Caller holds mu.
func (c *RowCache) evictOldestLocked() int {
	excess := len(c.entries) - c.config.MaxEntries
	if excess <= 0 {
		return 0
	}
	keys := make([]time.Time, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	for _, k := range keys[:excess] {
		delete(c.entries, k)
	}
	return excess
}

// Stats returns current cache statistics.
func (c *RowCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	var oldest, newest time.Time
	for d := range c.entries {
		if oldest.IsZero() || d.Before(oldest) {
			oldest = d
		}
		if newest.IsZero() || d.After(newest) {
			newest = d
		}
	}
	var fetchedAt time.Time
	if c.current != nil {
		fetchedAt = c.current.FetchedAt
	}
	c.mu.RUnlock()

	return Stats{
		Entries:      count,
		MaxEntries:   c.config.MaxEntries,
		OldestDate:   oldest,
		NewestDate:   newest,
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Evictions:    c.evictions.Load(),
		Cutovers:     c.cutovers.Load(),
		SetFetchedAt: fetchedAt,
	}
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries      int
	MaxEntries   int
	OldestDate   time.Time
	NewestDate   time.Time
	Hits         int64
	Misses       int64
	Evictions    int64
	Cutovers     int64
	SetFetchedAt time.Time
}
