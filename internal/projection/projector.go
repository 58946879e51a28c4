// Package projection renders 3-D model surfaces into an observer's image
// plane and extracts the silhouette the operator's marks are compared to.
package projection

import (
	"math"
	"sort"
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/coronafit/internal/frames"
)

// Options controls silhouette extraction.
type Options struct {
	// OutlineBins is the number of angular bins about the centroid; the
	// farthest visible point in each bin becomes an outline vertex.
	OutlineBins int
	// SolarRadius is the occluding sphere radius in Rsun.
	SolarRadius float64
}

// DefaultOptions returns 180 two-degree bins and the photospheric radius.
func DefaultOptions() Options {
	return Options{OutlineBins: 180, SolarRadius: 1}
}

func (o Options) normalised() Options {
	if o.OutlineBins < 8 {
		o.OutlineBins = 8
	}
	if o.SolarRadius <= 0 {
		o.SolarRadius = 1
	}
	return o
}

// ProjectedPoint is one mesh point in pixel space. Hidden points are kept
// with Visible=false.
type ProjectedPoint struct {
	Pixel   frames.Pixel
	Visible bool
}

// Projection is a model surface as seen by one observer.
type Projection struct {
	Observer string
	Time     time.Time
	Points   []ProjectedPoint
	Outline  []frames.Pixel
	Centroid frames.Pixel
}

// Empty reports that no part of the model is visible.
func (p Projection) Empty() bool { return len(p.Outline) == 0 }

// Visible returns the number of visible points.
func (p Projection) Visible() int {
	n := 0
	for _, pt := range p.Points {
		if pt.Visible {
			n++
		}
	}
	return n
}

// Project maps mesh into obs's image. Points inside the Sun, behind the
// observer or with the line of sight crossing the solar disk are flagged
// hidden. A point coinciding with the observer aborts the projection with
// *frames.SingularProjectionError.
func Project(mesh []r3.Vector, obs frames.Observer, opts Options) (Projection, error) {
	opts = opts.normalised()
	proj := Projection{
		Observer: obs.ID,
		Time:     obs.Time,
		Points:   make([]ProjectedPoint, len(mesh)),
	}
	for i, p := range mesh {
		px, err := obs.ToPixel(p)
		if err != nil {
			return Projection{}, err
		}
		visible := obs.InFront(p) && !obs.LineOfSightOccluded(p, opts.SolarRadius)
		proj.Points[i] = ProjectedPoint{Pixel: px, Visible: visible}
	}
	proj.Centroid, proj.Outline = outline(proj.Points, opts.OutlineBins)
	return proj, nil
}

// outline bins visible points by polar angle about their centroid and
// keeps the farthest point per bin, ordered by angle.
func outline(points []ProjectedPoint, bins int) (frames.Pixel, []frames.Pixel) {
	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Visible {
			xs = append(xs, p.Pixel.X)
			ys = append(ys, p.Pixel.Y)
		}
	}
	if len(xs) == 0 {
		return frames.Pixel{}, nil
	}
	c := frames.Pixel{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}

	type vertex struct {
		px    frames.Pixel
		r2    float64
		angle float64
	}
	best := make([]vertex, bins)
	filled := make([]bool, bins)
	width := 2 * math.Pi / float64(bins)
	for i := range xs {
		dx, dy := xs[i]-c.X, ys[i]-c.Y
		r2 := dx*dx + dy*dy
		ang := math.Atan2(dy, dx)
		b := int((ang + math.Pi) / width)
		if b >= bins {
			b = bins - 1
		}
		if !filled[b] || r2 > best[b].r2 {
			best[b] = vertex{px: frames.Pixel{X: xs[i], Y: ys[i]}, r2: r2, angle: ang}
			filled[b] = true
		}
	}

	verts := make([]vertex, 0, bins)
	for b := range best {
		if filled[b] {
			verts = append(verts, best[b])
		}
	}
	sort.SliceStable(verts, func(i, j int) bool { return verts[i].angle < verts[j].angle })
	out := make([]frames.Pixel, len(verts))
	for i, v := range verts {
		out[i] = v.px
	}
	return c, out
}
