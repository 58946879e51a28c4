package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/coronafit/internal/kinematics"
	"github.com/banshee-data/coronafit/internal/sequence"
	"github.com/banshee-data/coronafit/internal/units"
)

// Chart size for PNG output.
const (
	ChartWidth  = 8 * vg.Inch
	ChartHeight = 6 * vg.Inch
)

// ErrEmptyProfile is returned when a profile has no grid to draw.
var ErrEmptyProfile = errors.New("report: profile has no grid points")

var (
	fitColor   = color.RGBA{R: 196, G: 78, B: 82, A: 255}
	bandColor  = color.RGBA{R: 196, G: 78, B: 82, A: 60}
	pointColor = color.RGBA{R: 76, G: 114, B: 176, A: 255}
)

var speedLabels = map[string]string{
	units.KMS:   "Speed [km/s]",
	units.MPS:   "Speed [m/s]",
	units.RSUNH: "Speed [Rsun/h]",
	units.RSUNS: "Speed [Rsun/s]",
	units.KMH:   "Speed [km/h]",
}

// errPoints pairs observed heights with their one-sigma errors.
type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func newTimePlot(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time [UT]"
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "Jan-02\n15:04"}
	p.Y.Min = 0
	p.Legend.Top = false
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = 10
	return p
}

// band returns a filled polygon between lo and hi along the grid.
func band(grid []kinematics.ProfilePoint, value, sigma func(kinematics.ProfilePoint) float64) (*plotter.Polygon, error) {
	pts := make(plotter.XYs, 0, 2*len(grid))
	for _, g := range grid {
		pts = append(pts, plotter.XY{X: unixSeconds(g.Time), Y: value(g) + sigma(g)})
	}
	for i := len(grid) - 1; i >= 0; i-- {
		g := grid[i]
		pts = append(pts, plotter.XY{X: unixSeconds(g.Time), Y: value(g) - sigma(g)})
	}
	poly, err := plotter.NewPolygon(pts)
	if err != nil {
		return nil, err
	}
	poly.Color = bandColor
	poly.LineStyle.Width = 0
	return poly, nil
}

func curve(grid []kinematics.ProfilePoint, value func(kinematics.ProfilePoint) float64) (*plotter.Line, error) {
	pts := make(plotter.XYs, len(grid))
	for i, g := range grid {
		pts[i] = plotter.XY{X: unixSeconds(g.Time), Y: value(g)}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = fitColor
	line.Width = vg.Points(1.5)
	return line, nil
}

func fitLabel(prof kinematics.Profile) string {
	if prof.Method == kinematics.MethodSpline {
		return "spline"
	}
	return fmt.Sprintf("poly%d", prof.Order)
}

// HeightTimePlot draws the observed heights with their error bars, the
// fitted curve and its one-sigma band.
func HeightTimePlot(event string, samples []sequence.Sample, prof kinematics.Profile) (*plot.Plot, error) {
	if len(prof.Grid) == 0 {
		return nil, ErrEmptyProfile
	}
	p := newTimePlot(fmt.Sprintf("Event: %s | %s", event, fitLabel(prof)), "Height [Rsun]")

	height := func(g kinematics.ProfilePoint) float64 { return g.Height }
	heightSigma := func(g kinematics.ProfilePoint) float64 { return g.HeightSigma }
	poly, err := band(prof.Grid, height, heightSigma)
	if err != nil {
		return nil, err
	}
	p.Add(poly)
	line, err := curve(prof.Grid, height)
	if err != nil {
		return nil, err
	}
	p.Add(line)
	p.Legend.Add("fit", line)

	if len(samples) > 0 {
		obs := errPoints{
			XYs:     make(plotter.XYs, len(samples)),
			YErrors: make(plotter.YErrors, len(samples)),
		}
		for i, s := range samples {
			obs.XYs[i] = plotter.XY{X: unixSeconds(s.Time), Y: s.Height}
			if finite(s.Sigma) {
				obs.YErrors[i].Low = s.Sigma
				obs.YErrors[i].High = s.Sigma
			}
		}
		sc, err := plotter.NewScatter(obs)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Shape = draw.PlusGlyph{}
		sc.GlyphStyle.Color = pointColor
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add("h-apex", sc)

		bars, err := plotter.NewYErrorBars(obs)
		if err != nil {
			return nil, err
		}
		bars.Color = pointColor
		p.Add(bars)
	}
	return p, nil
}

// SpeedTimePlot draws the velocity profile and its one-sigma band in
// speedUnit, one of units.ValidUnits.
func SpeedTimePlot(event string, prof kinematics.Profile, speedUnit string) (*plot.Plot, error) {
	if len(prof.Grid) == 0 {
		return nil, ErrEmptyProfile
	}
	if !units.IsValid(speedUnit) {
		return nil, fmt.Errorf("report: invalid speed unit %q, want one of %s", speedUnit, units.GetValidUnitsString())
	}
	p := newTimePlot(fmt.Sprintf("Event: %s | %s", event, fitLabel(prof)), speedLabels[speedUnit])

	speed := func(g kinematics.ProfilePoint) float64 { return units.ConvertSpeed(g.Velocity, speedUnit) }
	speedSigma := func(g kinematics.ProfilePoint) float64 { return units.ConvertSpeed(g.VelocitySigma, speedUnit) }
	poly, err := band(prof.Grid, speed, speedSigma)
	if err != nil {
		return nil, err
	}
	p.Add(poly)
	line, err := curve(prof.Grid, speed)
	if err != nil {
		return nil, err
	}
	p.Add(line)
	p.Legend.Add("v-apex", line)
	return p, nil
}

// WritePNG renders p as a PNG of the standard chart size.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(ChartWidth, ChartHeight, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// HeightTimePNG writes the height-time chart to path.
func HeightTimePNG(path, event string, samples []sequence.Sample, prof kinematics.Profile) error {
	p, err := HeightTimePlot(event, samples, prof)
	if err != nil {
		return err
	}
	if err := p.Save(ChartWidth, ChartHeight, path); err != nil {
		return fmt.Errorf("save height-time plot: %w", err)
	}
	return nil
}

// SpeedTimePNG writes the speed-time chart to path.
func SpeedTimePNG(path, event string, prof kinematics.Profile, speedUnit string) error {
	p, err := SpeedTimePlot(event, prof, speedUnit)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, p); err != nil {
		f.Close()
		return fmt.Errorf("save speed-time plot: %w", err)
	}
	return f.Close()
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
