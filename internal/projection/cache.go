package projection

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/banshee-data/coronafit/internal/frames"
	"github.com/banshee-data/coronafit/internal/geometry"
)

// Cache memoises projections of model instances. Entries are keyed by the
// model kind, the exact parameter bits, the resolution, the options and
// the observer identity, so a hit is always the value Project would have
// returned. Safe for concurrent use. Cached projections are shared and
// must not be modified.
type Cache struct {
	c   *ttlcache.Cache[string, Projection]
	ttl time.Duration
}

// NewCache creates a cache holding at most capacity projections for ttl.
func NewCache(capacity uint64, ttl time.Duration) *Cache {
	return &Cache{
		c:   ttlcache.New(ttlcache.WithCapacity[string, Projection](capacity)),
		ttl: ttl,
	}
}

// Project returns the projection of in's surface for obs, computing and
// storing it on a miss. A nil cache computes without storing.
func (c *Cache) Project(in geometry.Instance, res geometry.Resolution, obs frames.Observer, opts Options) (Projection, error) {
	if c == nil {
		return ProjectInstance(in, res, obs, opts)
	}
	key := cacheKey(in, res, obs, opts)
	if item := c.c.Get(key); item != nil {
		return item.Value(), nil
	}
	p, err := ProjectInstance(in, res, obs, opts)
	if err != nil {
		return Projection{}, err
	}
	c.c.Set(key, p, c.ttl)
	return p, nil
}

// Len returns the number of cached projections.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.c.Len()
}

// ProjectInstance generates the surface of in and projects it for obs.
func ProjectInstance(in geometry.Instance, res geometry.Resolution, obs frames.Observer, opts Options) (Projection, error) {
	mesh, err := in.Surface(res)
	if err != nil {
		return Projection{}, err
	}
	return Project(mesh, obs, opts)
}

func cacheKey(in geometry.Instance, res geometry.Resolution, obs frames.Observer, opts Options) string {
	var b strings.Builder
	b.WriteString(string(in.Kind))
	for _, v := range in.Params {
		fmt.Fprintf(&b, ":%x", math.Float64bits(v))
	}
	o := obs.Position
	pl := obs.Plane
	fmt.Fprintf(&b, "|%d,%d|%d,%x|%s@%d|%x,%x,%x|%x,%x,%x,%x,%x,%x",
		res.Along, res.Around, opts.OutlineBins, math.Float64bits(opts.SolarRadius),
		obs.ID, obs.Time.UnixNano(),
		math.Float64bits(o.X), math.Float64bits(o.Y), math.Float64bits(o.Z),
		math.Float64bits(pl.PlateScale), math.Float64bits(pl.RefPixelX), math.Float64bits(pl.RefPixelY),
		math.Float64bits(pl.RefTx), math.Float64bits(pl.RefTy), math.Float64bits(pl.Roll))
	return b.String()
}
