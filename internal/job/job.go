// Package job reads fitting jobs: the observers, the operator's marks per
// timestamp and the model to fit, and turns them into fit requests.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/banshee-data/coronafit/internal/config"
	"github.com/banshee-data/coronafit/internal/fit"
	"github.com/banshee-data/coronafit/internal/frames"
	"github.com/banshee-data/coronafit/internal/geometry"
	"github.com/banshee-data/coronafit/internal/units"
)

const maxJobSize = 16 * 1024 * 1024 // 16MB

// SourceEarth marks an observer whose position comes from the analytic
// Earth ephemeris.
const SourceEarth = "earth"

var (
	// ErrNoFrames is returned for a job with no marked timestamps.
	ErrNoFrames = errors.New("job: no frames")
	// ErrUnknownObserver is returned when marks refer to an observer the
	// job does not declare.
	ErrUnknownObserver = errors.New("job: unknown observer")
)

// Plane is the image-plane calibration in the units operators use.
type Plane struct {
	PlateScaleArcsec float64 `json:"plate_scale_arcsec"`
	RefPixelX        float64 `json:"ref_pixel_x"`
	RefPixelY        float64 `json:"ref_pixel_y"`
	RefTxArcsec      float64 `json:"ref_tx_arcsec,omitempty"`
	RefTyArcsec      float64 `json:"ref_ty_arcsec,omitempty"`
	RollDeg          float64 `json:"roll_deg,omitempty"`
}

// ImagePlane converts to radians.
func (p Plane) ImagePlane() frames.ImagePlane {
	return frames.ImagePlane{
		PlateScale: units.ArcsecToRad(p.PlateScaleArcsec),
		RefPixelX:  p.RefPixelX,
		RefPixelY:  p.RefPixelY,
		RefTx:      units.ArcsecToRad(p.RefTxArcsec),
		RefTy:      units.ArcsecToRad(p.RefTyArcsec),
		Roll:       units.Rad(p.RollDeg),
	}
}

// Position is an observer's location at one instant, in degrees and Rsun.
type Position struct {
	Time     time.Time `json:"time"`
	LonDeg   float64   `json:"lon"`
	LatDeg   float64   `json:"lat"`
	Distance float64   `json:"distance"`
}

// ObserverSpec declares a spacecraft or instrument. Source "earth" uses
// the analytic ephemeris; otherwise Positions are given in Frame.
type ObserverSpec struct {
	ID        string     `json:"id"`
	Source    string     `json:"source,omitempty"`
	Frame     string     `json:"frame,omitempty"`
	Positions []Position `json:"positions,omitempty"`
	Plane     Plane      `json:"plane"`
}

// View is the operator's marks on one observer's image.
type View struct {
	Observer string       `json:"observer"`
	Marks    [][2]float64 `json:"marks"`
}

// Frame is one timestamp to fit.
type Frame struct {
	Time  time.Time `json:"time"`
	Views []View    `json:"views"`
	// Seed overrides the job seed for this timestamp.
	Seed map[string]float64 `json:"seed,omitempty"`
}

// Job is one event's fitting workload.
type Job struct {
	Event     string             `json:"event"`
	Model     string             `json:"model"`
	Seed      map[string]float64 `json:"seed,omitempty"`
	Fixed     []string           `json:"fixed,omitempty"`
	Observers []ObserverSpec     `json:"observers"`
	Frames    []Frame            `json:"frames"`
}

// Load reads a job file. The file must have a .json extension.
func Load(path string) (*Job, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("job file must have .json extension, got %q", ext)
	}
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open job file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a job from r and validates it.
func Decode(r io.Reader) (*Job, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxJobSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	if len(data) > maxJobSize {
		return nil, fmt.Errorf("job too large (max %d bytes)", maxJobSize)
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to parse job JSON: %w", err)
	}
	if err := j.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}
	return &j, nil
}

// Kind returns the model kind named by the job.
func (j *Job) Kind() (geometry.Kind, error) {
	k := geometry.Kind(j.Model)
	if _, err := geometry.For(k); err != nil {
		return "", err
	}
	return k, nil
}

// Validate checks the job is self-consistent. Ephemeris coverage is
// checked when requests are built.
func (j *Job) Validate() error {
	kind, err := j.Kind()
	if err != nil {
		return err
	}
	m, _ := geometry.For(kind)
	if len(j.Frames) == 0 {
		return ErrNoFrames
	}
	if _, err := seedVector(m, m.Seed(), j.Seed); err != nil {
		return err
	}
	for _, name := range j.Fixed {
		if geometry.IndexOf(m, name) < 0 {
			return fmt.Errorf("fixed parameter %q not in %s", name, kind)
		}
	}
	ids := make(map[string]bool, len(j.Observers))
	for _, o := range j.Observers {
		if o.ID == "" {
			return errors.New("observer without id")
		}
		if ids[o.ID] {
			return fmt.Errorf("observer %q declared twice", o.ID)
		}
		ids[o.ID] = true
		if o.Plane.PlateScaleArcsec <= 0 {
			return fmt.Errorf("observer %q: plate_scale_arcsec must be positive", o.ID)
		}
		switch o.Source {
		case SourceEarth:
		case "":
			if _, err := frames.ParseFrame(o.Frame); err != nil {
				return fmt.Errorf("observer %q: %w", o.ID, err)
			}
			if len(o.Positions) == 0 {
				return fmt.Errorf("observer %q: no positions", o.ID)
			}
		default:
			return fmt.Errorf("observer %q: unknown source %q", o.ID, o.Source)
		}
	}
	seen := make(map[time.Time]bool, len(j.Frames))
	for i, f := range j.Frames {
		if f.Time.IsZero() {
			return fmt.Errorf("frame %d: missing time", i)
		}
		if seen[f.Time.UTC()] {
			return fmt.Errorf("frame %d: duplicate time %s", i, f.Time.UTC().Format(time.RFC3339))
		}
		seen[f.Time.UTC()] = true
		for _, v := range f.Views {
			if !ids[v.Observer] {
				return fmt.Errorf("frame %d: %w %q", i, ErrUnknownObserver, v.Observer)
			}
		}
		if _, err := seedVector(m, m.Seed(), f.Seed); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

// seedVector overlays named values on base. Angle parameters are given
// in degrees.
func seedVector(m geometry.Model, base []float64, named map[string]float64) ([]float64, error) {
	out := append([]float64(nil), base...)
	specs := m.Params()
	for name, v := range named {
		i := geometry.IndexOf(m, name)
		if i < 0 {
			return nil, fmt.Errorf("seed parameter %q not in %s", name, m.Kind())
		}
		if specs[i].Angle {
			v = units.Rad(v)
		}
		out[i] = v
	}
	if err := geometry.ValidateParams(m, out); err != nil {
		return nil, err
	}
	return out, nil
}

// router dispatches lookups to the per-observer source.
type router map[string]frames.Source

func (r router) Observer(id string, t time.Time) (frames.Observer, error) {
	src, ok := r[id]
	if !ok {
		return frames.Observer{}, &frames.MissingEphemerisError{Observer: id, Time: t, Reason: "unknown observer"}
	}
	return src.Observer(id, t)
}

// Source builds the ephemeris source for the job's observers: Earth
// observers from the analytic ephemeris and the rest from a table of the
// declared positions, all behind a shared cache sized by cfg.
func (j *Job) Source(cfg *config.Config) (frames.Source, error) {
	table := frames.NewTable(cfg.GetEphemerisTolerance())
	r := make(router, len(j.Observers))
	for _, o := range j.Observers {
		plane := o.Plane.ImagePlane()
		if o.Source == SourceEarth {
			r[o.ID] = frames.EarthSource{Plane: plane}
			continue
		}
		frame, err := frames.ParseFrame(o.Frame)
		if err != nil {
			return nil, err
		}
		for _, p := range o.Positions {
			pos := frames.SphericalToCartesian(units.Rad(p.LonDeg), units.Rad(p.LatDeg), p.Distance)
			obs, err := frames.NewObserverFromFrame(o.ID, p.Time.UTC(), pos, frame, plane)
			if err != nil {
				return nil, err
			}
			if err := table.Add(obs); err != nil {
				return nil, err
			}
		}
		r[o.ID] = table
	}
	size := cfg.GetEphemerisCacheSize()
	if size <= 0 {
		return r, nil
	}
	return frames.NewCachedSource(r, uint64(size), cfg.GetEphemerisCacheTTL()), nil
}

// Requests builds one fit request per frame, in time order.
func (j *Job) Requests(src frames.Source) ([]fit.Request, error) {
	kind, err := j.Kind()
	if err != nil {
		return nil, err
	}
	m, _ := geometry.For(kind)
	base, err := seedVector(m, m.Seed(), j.Seed)
	if err != nil {
		return nil, err
	}

	fs := append([]Frame(nil), j.Frames...)
	sort.SliceStable(fs, func(a, b int) bool { return fs[a].Time.Before(fs[b].Time) })
	reqs := make([]fit.Request, 0, len(fs))
	for _, f := range fs {
		seed, err := seedVector(m, base, f.Seed)
		if err != nil {
			return nil, err
		}
		t := f.Time.UTC()
		req := fit.Request{Kind: kind, Seed: seed, Time: t, Fixed: j.Fixed}
		for _, v := range f.Views {
			obs, err := src.Observer(v.Observer, t)
			if err != nil {
				return nil, fmt.Errorf("frame %s: %w", t.Format(time.RFC3339), err)
			}
			marks := make([]frames.Pixel, len(v.Marks))
			for k, mk := range v.Marks {
				marks[k] = frames.Pixel{X: mk[0], Y: mk[1]}
			}
			req.Sets = append(req.Sets, fit.FitPointSet{Observer: obs, Marks: marks})
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
