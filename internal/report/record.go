// Package report converts fitted sequences to and from the interchange
// record and renders height-time charts.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/banshee-data/coronafit/internal/fit"
	"github.com/banshee-data/coronafit/internal/frames"
	"github.com/banshee-data/coronafit/internal/geometry"
	"github.com/banshee-data/coronafit/internal/sequence"
	"github.com/banshee-data/coronafit/internal/units"
)

// TimeLayout is the row timestamp format of the interchange record.
const TimeLayout = "2006-01-02T15:04:05.000000"

// Column names that differ from the model parameter names.
const (
	ColTime      = "time"
	ColLon       = "hgln"
	ColLat       = "hglt"
	ColCarrLon   = "crln"
	ColCarrLat   = "crlt"
	ColRCenter   = "rcenter"
	ColRadAxis   = "radaxis"
	ColOrtho1    = "orthoaxis1"
	ColOrtho2    = "orthoaxis2"
	ColRApex     = "rappex"
	ColConverged = "converged"
	ColRMS       = "rms"
	sigmaSuffix  = "_sigma"
)

var (
	// ErrUnknownModelType is returned when the record names a model type
	// with no geometry.Kind.
	ErrUnknownModelType = errors.New("report: unknown geometrical model type")
	// ErrRaggedColumns is returned when columns have different lengths.
	ErrRaggedColumns = errors.New("report: columns differ in length")
)

// TypeName returns the record's model type label for kind.
func TypeName(kind geometry.Kind) string {
	return kind.Label()
}

// KindForType is the inverse of TypeName. Lower-case kind names are
// accepted as well.
func KindForType(s string) (geometry.Kind, error) {
	for _, k := range geometry.Kinds() {
		if s == k.Label() || s == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModelType, s)
}

// Record is the interchange document for one event's fittings.
type Record struct {
	EventSelected    string           `json:"event_selected"`
	DateProcess      string           `json:"date_process"`
	GeometricalModel GeometricalModel `json:"geometrical_model"`
}

// GeometricalModel names the model type and carries one row per fitting.
type GeometricalModel struct {
	Type       string `json:"type"`
	Parameters Table  `json:"parameters"`
}

// Table is column-oriented: Time and Converged per row, and a float
// column per parameter, derived quantity and uncertainty. Angles are in
// degrees and lengths in Rsun.
type Table struct {
	Time      []time.Time
	Converged []bool
	Columns   map[string][]float64
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Time) }

// nullable maps values JSON cannot carry (NaN, ±Inf) to null.
func nullable(col []float64) []*float64 {
	out := make([]*float64, len(col))
	for i := range col {
		if !math.IsNaN(col[i]) && !math.IsInf(col[i], 0) {
			out[i] = &col[i]
		}
	}
	return out
}

// MarshalJSON writes the table as a flat object of equal-length arrays.
// Undefined values are written as null.
func (t Table) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(t.Columns)+2)
	ts := make([]string, len(t.Time))
	for i, tm := range t.Time {
		ts[i] = tm.UTC().Format(TimeLayout)
	}
	out[ColTime] = ts
	if t.Converged != nil {
		out[ColConverged] = t.Converged
	}
	for name, col := range t.Columns {
		if len(col) != len(t.Time) {
			return nil, fmt.Errorf("%w: %s has %d rows, time has %d", ErrRaggedColumns, name, len(col), len(t.Time))
		}
		out[name] = nullable(col)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat object of arrays. Unknown non-numeric
// columns are an error; null reads as NaN.
func (t *Table) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var ts []string
	if msg, ok := raw[ColTime]; ok {
		if err := json.Unmarshal(msg, &ts); err != nil {
			return fmt.Errorf("report: column %s: %w", ColTime, err)
		}
	}
	t.Time = make([]time.Time, len(ts))
	for i, s := range ts {
		tm, err := parseTime(s)
		if err != nil {
			return fmt.Errorf("report: row %d: %w", i, err)
		}
		t.Time[i] = tm
	}
	t.Converged = nil
	if msg, ok := raw[ColConverged]; ok {
		if err := json.Unmarshal(msg, &t.Converged); err != nil {
			return fmt.Errorf("report: column %s: %w", ColConverged, err)
		}
		if len(t.Converged) != len(t.Time) {
			return fmt.Errorf("%w: %s", ErrRaggedColumns, ColConverged)
		}
	}
	t.Columns = make(map[string][]float64, len(raw))
	for name, msg := range raw {
		if name == ColTime || name == ColConverged {
			continue
		}
		var vals []*float64
		if err := json.Unmarshal(msg, &vals); err != nil {
			return fmt.Errorf("report: column %s: %w", name, err)
		}
		col := make([]float64, len(vals))
		for i, v := range vals {
			col[i] = math.NaN()
			if v != nil {
				col[i] = *v
			}
		}
		if len(col) != len(t.Time) {
			return fmt.Errorf("%w: %s has %d rows, time has %d", ErrRaggedColumns, name, len(col), len(t.Time))
		}
		t.Columns[name] = col
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if tm, err := time.Parse(layout, s); err == nil {
			return tm.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("report: unparseable time %q", s)
}

// columnName maps a model parameter to its record column.
func columnName(param string) string {
	switch param {
	case geometry.ParamLon:
		return ColLon
	case geometry.ParamLat:
		return ColLat
	}
	return param
}

// FromSequence builds a record from a sequence, one row per entry in time
// order. processed stamps date_process.
func FromSequence(seq *sequence.Sequence, processed time.Time) (Record, error) {
	return FromResults(seq.Event, seq.Kind, processed, seq.Entries())
}

// FromResults builds a record from fit results of one kind. Rows are
// sorted by model time.
func FromResults(event string, kind geometry.Kind, processed time.Time, results []fit.Result) (Record, error) {
	m, err := geometry.For(kind)
	if err != nil {
		return Record{}, err
	}
	rows := append([]fit.Result(nil), results...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Model.Time.Before(rows[j].Model.Time) })

	specs := m.Params()
	tbl := Table{
		Time:      make([]time.Time, len(rows)),
		Converged: make([]bool, len(rows)),
		Columns:   make(map[string][]float64),
	}
	add := func(name string, i int, v float64) {
		col, ok := tbl.Columns[name]
		if !ok {
			col = make([]float64, len(rows))
			tbl.Columns[name] = col
		}
		col[i] = v
	}
	for i, r := range rows {
		if r.Model.Kind != kind {
			return Record{}, fmt.Errorf("%w: row %d is %s", sequence.ErrKindMismatch, i, r.Model.Kind)
		}
		if err := r.Model.Validate(); err != nil {
			return Record{}, fmt.Errorf("report: row %d: %w", i, err)
		}
		tbl.Time[i] = r.Model.Time.UTC()
		tbl.Converged[i] = r.Converged
		add(ColRMS, i, r.RMS)
		for j, spec := range specs {
			v := r.Model.Params[j]
			var sigma float64
			if j < len(r.Uncertainty) {
				sigma = r.Uncertainty[j]
			}
			if spec.Angle {
				v, sigma = units.Deg(v), units.Deg(sigma)
			}
			name := columnName(spec.Name)
			add(name, i, v)
			add(name+sigmaSuffix, i, sigma)
		}
		for name, v := range derived(m, r.Model) {
			add(name, i, v)
		}
	}
	return Record{
		EventSelected: event,
		DateProcess:   processed.UTC().Format(TimeLayout),
		GeometricalModel: GeometricalModel{
			Type:       TypeName(kind),
			Parameters: tbl,
		},
	}, nil
}

// derived returns the shape quantities written alongside the parameters.
func derived(m geometry.Model, in geometry.Instance) map[string]float64 {
	out := map[string]float64{}
	lon, _ := in.Param(geometry.ParamLon)
	lat, _ := in.Param(geometry.ParamLat)
	if clon, clat, err := frames.ConvertLonLat(lon, lat, frames.HGS, frames.HGC, in.Time); err == nil {
		out[ColCarrLon] = units.Deg(units.Wrap2Pi(clon))
		out[ColCarrLat] = units.Deg(clat)
	}
	switch model := m.(type) {
	case geometry.Spheroid, geometry.Ellipsoid:
		h, _ := in.Param(geometry.ParamHeight)
		k, _ := in.Param(geometry.ParamKappa)
		e, _ := in.Param(geometry.ParamEpsilon)
		rc, a, b := geometry.SpheroidAxes(h, k, e)
		out[ColRCenter] = rc
		out[ColRadAxis] = a
		if alpha, ok := in.Param(geometry.ParamAlpha); ok {
			out[ColOrtho1] = b * alpha
			out[ColOrtho2] = b
		} else {
			out[ColOrtho1] = b
		}
	case geometry.GCS:
		out[ColRApex] = model.CrossSectionAtApex(in.Params)
	}
	return out
}

// Instances rebuilds the fitted model of every row.
func (r Record) Instances() ([]geometry.Instance, error) {
	kind, err := KindForType(r.GeometricalModel.Type)
	if err != nil {
		return nil, err
	}
	m, err := geometry.For(kind)
	if err != nil {
		return nil, err
	}
	tbl := r.GeometricalModel.Parameters
	specs := m.Params()
	out := make([]geometry.Instance, tbl.Len())
	for i := range out {
		p := make([]float64, len(specs))
		for j, spec := range specs {
			col, ok := tbl.Columns[columnName(spec.Name)]
			if !ok {
				return nil, fmt.Errorf("report: missing column %s for %s", columnName(spec.Name), kind)
			}
			v := col[i]
			if spec.Angle {
				v = units.Rad(v)
			}
			p[j] = v
		}
		out[i] = geometry.Instance{Kind: kind, Params: p, Time: tbl.Time[i]}
	}
	return out, nil
}

// Samples returns the height-time series in time order. A missing
// height_sigma column yields zero sigmas.
func (r Record) Samples() ([]sequence.Sample, error) {
	tbl := r.GeometricalModel.Parameters
	h, ok := tbl.Columns[geometry.ParamHeight]
	if !ok {
		return nil, fmt.Errorf("report: missing column %s", geometry.ParamHeight)
	}
	sig := tbl.Columns[geometry.ParamHeight+sigmaSuffix]
	out := make([]sequence.Sample, tbl.Len())
	for i := range out {
		out[i] = sequence.Sample{Time: tbl.Time[i], Height: h[i]}
		if sig != nil {
			out[i].Sigma = sig[i]
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// ModelID returns the export identifier for the record's event and kind.
func (r Record) ModelID() string {
	kind, err := KindForType(r.GeometricalModel.Type)
	if err != nil {
		kind = geometry.Kind(r.GeometricalModel.Type)
	}
	return sequence.ModelID(r.EventSelected, kind)
}

// Encode writes r as indented JSON.
func Encode(w io.Writer, r Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	return enc.Encode(r)
}

// Decode reads a record and checks its model type.
func Decode(rd io.Reader) (Record, error) {
	var r Record
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return Record{}, fmt.Errorf("report: decode: %w", err)
	}
	if _, err := KindForType(r.GeometricalModel.Type); err != nil {
		return Record{}, err
	}
	return r, nil
}
