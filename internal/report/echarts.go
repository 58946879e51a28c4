package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/coronafit/internal/kinematics"
	"github.com/banshee-data/coronafit/internal/sequence"
	"github.com/banshee-data/coronafit/internal/units"
)

// HTMLOptions controls the interactive kinematics page.
type HTMLOptions struct {
	// SpeedUnit is one of units.ValidUnits; empty means km/s.
	SpeedUnit string
	// AssetsHost overrides where the echarts scripts are loaded from.
	AssetsHost string
}

func millis(p kinematics.ProfilePoint) int64 { return p.Time.UnixMilli() }

func lineSeries(grid []kinematics.ProfilePoint, value func(kinematics.ProfilePoint) float64) []opts.LineData {
	data := make([]opts.LineData, len(grid))
	for i, g := range grid {
		data[i] = opts.LineData{Value: []interface{}{millis(g), value(g)}}
	}
	return data
}

func (o HTMLOptions) init(title string) opts.Initialization {
	return opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "500px", AssetsHost: o.AssetsHost}
}

func heightChart(event string, samples []sequence.Sample, prof kinematics.Profile, o HTMLOptions) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(o.init("Height vs time")),
		charts.WithTitleOpts(opts.Title{Title: "Height vs time", Subtitle: fmt.Sprintf("event=%s fit=%s rms=%.3g Rsun", event, fitLabel(prof), prof.RMS)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time", Name: "Time [UT]", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Height [Rsun]", NameLocation: "middle", NameGap: 30}),
	)
	line.AddSeries("fit", lineSeries(prof.Grid, func(g kinematics.ProfilePoint) float64 { return g.Height }))
	line.AddSeries("+1σ", lineSeries(prof.Grid, func(g kinematics.ProfilePoint) float64 { return g.Height + g.HeightSigma }),
		charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	line.AddSeries("-1σ", lineSeries(prof.Grid, func(g kinematics.ProfilePoint) float64 { return g.Height - g.HeightSigma }),
		charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	pts := make([]opts.ScatterData, len(samples))
	for i, s := range samples {
		v := []interface{}{s.Time.UnixMilli(), s.Height}
		if finite(s.Sigma) {
			v = append(v, s.Sigma)
		}
		pts[i] = opts.ScatterData{Value: v}
	}
	scatter := charts.NewScatter()
	scatter.AddSeries("h-apex", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	line.Overlap(scatter)
	return line
}

func speedChart(event string, prof kinematics.Profile, o HTMLOptions) *charts.Line {
	unit := o.SpeedUnit
	speed := func(g kinematics.ProfilePoint) float64 { return units.ConvertSpeed(g.Velocity, unit) }
	sigma := func(g kinematics.ProfilePoint) float64 { return units.ConvertSpeed(g.VelocitySigma, unit) }

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(o.init("Speed vs time")),
		charts.WithTitleOpts(opts.Title{Title: "Speed vs time", Subtitle: fmt.Sprintf("event=%s fit=%s", event, fitLabel(prof))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time", Name: "Time [UT]", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: speedLabels[unit], NameLocation: "middle", NameGap: 40}),
	)
	line.AddSeries("v-apex", lineSeries(prof.Grid, speed))
	line.AddSeries("+1σ", lineSeries(prof.Grid, func(g kinematics.ProfilePoint) float64 { return speed(g) + sigma(g) }),
		charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	line.AddSeries("-1σ", lineSeries(prof.Grid, func(g kinematics.ProfilePoint) float64 { return speed(g) - sigma(g) }),
		charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	return line
}

func accelerationChart(event string, prof kinematics.Profile, o HTMLOptions) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(o.init("Acceleration vs time")),
		charts.WithTitleOpts(opts.Title{Title: "Acceleration vs time", Subtitle: fmt.Sprintf("event=%s fit=%s", event, fitLabel(prof))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time", Name: "Time [UT]", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Acceleration [m/s²]", NameLocation: "middle", NameGap: 40}),
	)
	line.AddSeries("a-apex", lineSeries(prof.Grid, func(g kinematics.ProfilePoint) float64 { return *g.Acceleration }))
	return line
}

// KinematicsHTML renders an interactive page with height, speed and,
// when the profile has one, acceleration charts.
func KinematicsHTML(w io.Writer, event string, samples []sequence.Sample, prof kinematics.Profile, o HTMLOptions) error {
	if len(prof.Grid) == 0 {
		return ErrEmptyProfile
	}
	if o.SpeedUnit == "" {
		o.SpeedUnit = units.KMS
	}
	if !units.IsValid(o.SpeedUnit) {
		return fmt.Errorf("report: invalid speed unit %q, want one of %s", o.SpeedUnit, units.GetValidUnitsString())
	}

	page := components.NewPage()
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	page.AddCharts(heightChart(event, samples, prof, o), speedChart(event, prof, o))
	if prof.HasAcceleration {
		page.AddCharts(accelerationChart(event, prof, o))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render kinematics page: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
