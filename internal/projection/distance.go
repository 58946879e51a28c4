package projection

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/banshee-data/coronafit/internal/frames"
)

// SignedDistance returns the distance in pixels from p to the nearest
// segment of the closed outline, positive outside and negative inside.
// Points on the outline are at zero. An empty outline yields +Inf.
func SignedDistance(p frames.Pixel, outline []frames.Pixel) float64 {
	pt := orb.Point{p.X, p.Y}
	switch len(outline) {
	case 0:
		return math.Inf(1)
	case 1:
		return planar.Distance(pt, orb.Point{outline[0].X, outline[0].Y})
	case 2:
		return planar.DistanceFrom(orb.LineString{
			{outline[0].X, outline[0].Y},
			{outline[1].X, outline[1].Y},
		}, pt)
	}
	ring := outlineRing(outline)
	d := planar.DistanceFrom(ring, pt)
	if planar.RingContains(ring, pt) {
		return -d
	}
	return d
}

// outlineRing closes the outline into an orb ring.
func outlineRing(outline []frames.Pixel) orb.Ring {
	ring := make(orb.Ring, 0, len(outline)+1)
	for _, q := range outline {
		ring = append(ring, orb.Point{q.X, q.Y})
	}
	if !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return ring
}
