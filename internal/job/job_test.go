package job

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/coronafit/internal/config"
	"github.com/banshee-data/coronafit/internal/frames"
	"github.com/banshee-data/coronafit/internal/geometry"
	"github.com/banshee-data/coronafit/internal/testutil"
)

const twoObserverJob = `{
 "event": "FLR|2021-10-28T15:17:00|X1.0",
 "model": "spheroid",
 "seed": {"lon": 10, "lat": -5, "height": 4},
 "fixed": ["epsilon"],
 "observers": [
  {"id": "soho", "source": "earth", "plane": {"plate_scale_arcsec": 56, "ref_pixel_x": 511.5, "ref_pixel_y": 511.5}},
  {"id": "sta", "frame": "HGS", "plane": {"plate_scale_arcsec": 15, "ref_pixel_x": 1023.5, "ref_pixel_y": 1023.5, "roll_deg": 2},
   "positions": [
    {"time": "2021-10-28T15:00:00Z", "lon": -37.5, "lat": 7.2, "distance": 206.0},
    {"time": "2021-10-28T16:00:00Z", "lon": -37.4, "lat": 7.2, "distance": 206.0}
   ]}
 ],
 "frames": [
  {"time": "2021-10-28T16:00:00Z", "seed": {"height": 6},
   "views": [{"observer": "soho", "marks": [[600, 700], [610, 720]]}, {"observer": "sta", "marks": [[900, 1100]]}]},
  {"time": "2021-10-28T15:00:00Z",
   "views": [{"observer": "soho", "marks": [[560, 600], [570, 610], [580, 620]]}]}
 ]
}`

func TestDecode(t *testing.T) {
	t.Parallel()
	j, err := Decode(strings.NewReader(twoObserverJob))
	require.NoError(t, err)
	assert.Equal(t, "FLR|2021-10-28T15:17:00|X1.0", j.Event)
	kind, err := j.Kind()
	require.NoError(t, err)
	assert.Equal(t, geometry.KindSpheroid, kind)
	assert.Len(t, j.Observers, 2)
	assert.Len(t, j.Frames, 2)

	plane := j.Observers[1].Plane.ImagePlane()
	assert.InDelta(t, 15*math.Pi/(180*3600), plane.PlateScale, 1e-15)
	assert.InDelta(t, 2*math.Pi/180, plane.Roll, 1e-15)
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")
	require.NoError(t, os.WriteFile(path, []byte(twoObserverJob), 0o644))
	j, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "spheroid", j.Model)

	_, err = Load(filepath.Join(dir, "job.yaml"))
	assert.Error(t, err)
	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Job {
		j, err := Decode(strings.NewReader(twoObserverJob))
		require.NoError(t, err)
		return j
	}
	tests := []struct {
		name   string
		mutate func(j *Job)
		want   error
	}{
		{"unknown model", func(j *Job) { j.Model = "cone" }, geometry.ErrUnknownKind},
		{"no frames", func(j *Job) { j.Frames = nil }, ErrNoFrames},
		{"unknown observer", func(j *Job) { j.Frames[0].Views[0].Observer = "wind" }, ErrUnknownObserver},
		{"unknown seed param", func(j *Job) { j.Seed["tilt"] = 3 }, nil},
		{"seed out of bounds", func(j *Job) { j.Seed["height"] = 0.5 }, nil},
		{"frame seed out of bounds", func(j *Job) { j.Frames[1].Seed = map[string]float64{"kappa": 10} }, nil},
		{"unknown fixed", func(j *Job) { j.Fixed = []string{"alpha"} }, nil},
		{"duplicate observer", func(j *Job) { j.Observers[1].ID = "soho" }, nil},
		{"missing id", func(j *Job) { j.Observers[0].ID = "" }, nil},
		{"no plate scale", func(j *Job) { j.Observers[0].Plane.PlateScaleArcsec = 0 }, nil},
		{"bad frame", func(j *Job) { j.Observers[1].Frame = "GSE" }, frames.ErrUnknownFrame},
		{"no positions", func(j *Job) { j.Observers[1].Positions = nil }, nil},
		{"unknown source", func(j *Job) { j.Observers[0].Source = "spice" }, nil},
		{"missing time", func(j *Job) { j.Frames[0].Time = time.Time{} }, nil},
		{"duplicate time", func(j *Job) { j.Frames[1].Time = j.Frames[0].Time }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := base()
			tt.mutate(j)
			err := j.Validate()
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			}
		})
	}
	assert.NoError(t, base().Validate())
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()
	_, err := Decode(strings.NewReader(`{"model": "gcs", "frames": []}`))
	assert.ErrorIs(t, err, ErrNoFrames)
	_, err = Decode(strings.NewReader(`[`))
	assert.Error(t, err)
}

func TestRequests(t *testing.T) {
	t.Parallel()
	j, err := Decode(strings.NewReader(twoObserverJob))
	require.NoError(t, err)
	src, err := j.Source(config.EmptyConfig())
	require.NoError(t, err)
	_, cached := src.(*frames.CachedSource)
	assert.True(t, cached, "default config caches ephemeris lookups")

	reqs, err := j.Requests(src)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	first, second := reqs[0], reqs[1]
	assert.True(t, first.Time.Before(second.Time), "requests are time ordered")
	assert.Equal(t, geometry.KindSpheroid, first.Kind)
	assert.Equal(t, []string{"epsilon"}, first.Fixed)

	// job seed in degrees, model defaults elsewhere
	assert.InDelta(t, 10*math.Pi/180, first.Seed[0], 1e-12)
	assert.InDelta(t, -5*math.Pi/180, first.Seed[1], 1e-12)
	assert.Equal(t, 4.0, first.Seed[2])
	assert.Equal(t, geometry.Spheroid{}.Seed()[3], first.Seed[3])
	// frame override
	assert.Equal(t, 6.0, second.Seed[2])
	assert.InDelta(t, 10*math.Pi/180, second.Seed[0], 1e-12)

	require.Len(t, first.Sets, 1)
	assert.Len(t, first.Sets[0].Marks, 3)
	assert.Equal(t, frames.Pixel{X: 560, Y: 600}, first.Sets[0].Marks[0])

	require.Len(t, second.Sets, 2)
	soho, sta := second.Sets[0].Observer, second.Sets[1].Observer
	assert.Equal(t, "soho", soho.ID)
	testutil.AssertClose(t, "earth distance", soho.Distance(), frames.EarthPosition(second.Time).Norm(), 1e-12)
	assert.Equal(t, "sta", sta.ID)
	testutil.AssertClose(t, "sta distance", sta.Distance(), 206, 1e-12)
	assert.NoError(t, sta.Validate())
}

func TestRequests_MissingEphemeris(t *testing.T) {
	t.Parallel()
	j, err := Decode(strings.NewReader(twoObserverJob))
	require.NoError(t, err)
	j.Frames[1].Views = append(j.Frames[1].Views, View{Observer: "sta", Marks: [][2]float64{{1, 2}}})
	j.Frames[1].Time = j.Frames[1].Time.Add(30 * time.Minute)

	src, err := j.Source(config.EmptyConfig())
	require.NoError(t, err)
	_, err = j.Requests(src)
	var missing *frames.MissingEphemerisError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "sta", missing.Observer)
}

func TestSource_Uncached(t *testing.T) {
	t.Parallel()
	j, err := Decode(strings.NewReader(twoObserverJob))
	require.NoError(t, err)
	size := 0
	cfg := config.EmptyConfig()
	cfg.EphemerisCacheSize = &size
	src, err := j.Source(cfg)
	require.NoError(t, err)
	_, cached := src.(*frames.CachedSource)
	assert.False(t, cached)

	_, err = src.Observer("wind", testutil.Epoch)
	var missing *frames.MissingEphemerisError
	assert.ErrorAs(t, err, &missing)
}
