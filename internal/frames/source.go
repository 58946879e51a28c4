package frames

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Source supplies observer metadata keyed by spacecraft identity and time.
// Implementations return *MissingEphemerisError when nothing valid is known.
type Source interface {
	Observer(id string, t time.Time) (Observer, error)
}

// Table is an in-memory Source populated by the image-metadata
// collaborator. Lookups match the nearest entry within Tolerance.
type Table struct {
	mu        sync.RWMutex
	tolerance time.Duration
	entries   map[string][]Observer
}

// NewTable creates an empty table. A zero tolerance requires exact timestamps.
func NewTable(tolerance time.Duration) *Table {
	return &Table{tolerance: tolerance, entries: make(map[string][]Observer)}
}

// Add stores an observer, keeping each spacecraft's entries time-ordered.
// An entry with the same timestamp replaces the previous one.
func (t *Table) Add(o Observer) error {
	if err := o.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.entries[o.ID]
	i := sort.Search(len(list), func(i int) bool { return !list[i].Time.Before(o.Time) })
	if i < len(list) && list[i].Time.Equal(o.Time) {
		diagf("replacing ephemeris for %s at %s", o.ID, o.Time.UTC().Format(time.RFC3339))
		list[i] = o
		return nil
	}
	list = append(list, Observer{})
	copy(list[i+1:], list[i:])
	list[i] = o
	t.entries[o.ID] = list
	return nil
}

// Observer returns the entry for id closest to ts within the tolerance,
// stamped with ts.
func (t *Table) Observer(id string, ts time.Time) (Observer, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := t.entries[id]
	if len(list) == 0 {
		return Observer{}, &MissingEphemerisError{Observer: id, Time: ts, Reason: "unknown observer"}
	}
	i := sort.Search(len(list), func(i int) bool { return !list[i].Time.Before(ts) })
	best := -1
	var bestGap time.Duration
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(list) {
			continue
		}
		gap := list[j].Time.Sub(ts)
		if gap < 0 {
			gap = -gap
		}
		if best < 0 || gap < bestGap {
			best, bestGap = j, gap
		}
	}
	if bestGap > t.tolerance {
		return Observer{}, &MissingEphemerisError{
			Observer: id,
			Time:     ts,
			Reason:   fmt.Sprintf("nearest entry is %s away (tolerance %s)", bestGap, t.tolerance),
		}
	}
	o := list[best]
	o.Time = ts
	return o, nil
}

// EarthSource synthesises an Earth-based observer (L1 coronagraphs, ground
// and low-orbit imagers) from the analytic Earth ephemeris.
type EarthSource struct {
	Plane ImagePlane
}

// Observer implements Source.
func (s EarthSource) Observer(id string, t time.Time) (Observer, error) {
	if t.IsZero() {
		return Observer{}, &MissingEphemerisError{Observer: id, Time: t, Reason: "zero timestamp"}
	}
	return NewObserver(id, t, EarthPosition(t), s.Plane)
}

// CachedSource memoises lookups on another Source. It is owned by the
// caller and shared explicitly; errors are never cached.
type CachedSource struct {
	src   Source
	cache *ttlcache.Cache[string, Observer]
}

// NewCachedSource wraps src with a bounded cache. A zero ttl keeps entries
// until evicted by capacity.
func NewCachedSource(src Source, capacity uint64, ttl time.Duration) *CachedSource {
	opts := []ttlcache.Option[string, Observer]{}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, Observer](capacity))
	}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, Observer](ttl))
	}
	return &CachedSource{src: src, cache: ttlcache.New(opts...)}
}

// Observer implements Source.
func (c *CachedSource) Observer(id string, t time.Time) (Observer, error) {
	key := id + "@" + t.UTC().Format(time.RFC3339Nano)
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	o, err := c.src.Observer(id, t)
	if err != nil {
		opsf("ephemeris lookup failed: %v", err)
		return Observer{}, err
	}
	tracef("ephemeris cache miss %s", key)
	c.cache.Set(key, o, ttlcache.DefaultTTL)
	return o, nil
}

// Len returns the number of cached observers.
func (c *CachedSource) Len() int { return c.cache.Len() }
