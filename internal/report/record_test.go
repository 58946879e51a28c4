package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/coronafit/internal/fit"
	"github.com/banshee-data/coronafit/internal/geometry"
	"github.com/banshee-data/coronafit/internal/sequence"
	"github.com/banshee-data/coronafit/internal/testutil"
	"github.com/banshee-data/coronafit/internal/units"
)

func spheroidResult(minutes int, height float64) fit.Result {
	return fit.Result{
		Model: geometry.Instance{
			Kind:   geometry.KindSpheroid,
			Params: []float64{units.Rad(30), units.Rad(-10), height, 0.5, 0.2},
			Time:   testutil.Epoch.Add(time.Duration(minutes) * time.Minute),
		},
		RMS:         1.5,
		Converged:   true,
		Uncertainty: []float64{units.Rad(1), units.Rad(2), 0.1, 0.01, 0.02},
	}
}

func TestFromResults_Spheroid(t *testing.T) {
	t.Parallel()
	processed := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)
	rec, err := FromResults("FLR|2021-10-28T15:17:00|X1.0", geometry.KindSpheroid, processed,
		[]fit.Result{spheroidResult(20, 6), spheroidResult(0, 4)})
	require.NoError(t, err)

	assert.Equal(t, "Spheroid", rec.GeometricalModel.Type)
	assert.Equal(t, "2022-01-02T03:04:05.000000", rec.DateProcess)

	tbl := rec.GeometricalModel.Parameters
	require.Equal(t, 2, tbl.Len())
	assert.True(t, tbl.Time[0].Before(tbl.Time[1]), "rows are time ordered")
	assert.Equal(t, []float64{4, 6}, tbl.Columns[geometry.ParamHeight])
	assert.Equal(t, []float64{0.1, 0.1}, tbl.Columns["height_sigma"])
	assert.Equal(t, []bool{true, true}, tbl.Converged)
	assert.InDelta(t, 30, tbl.Columns[ColLon][0], 1e-9)
	assert.InDelta(t, -10, tbl.Columns[ColLat][0], 1e-9)
	assert.InDelta(t, 2, tbl.Columns["hglt_sigma"][0], 1e-9)

	rc, a, b := geometry.SpheroidAxes(4, 0.5, 0.2)
	assert.InDelta(t, rc, tbl.Columns[ColRCenter][0], 1e-12)
	assert.InDelta(t, a, tbl.Columns[ColRadAxis][0], 1e-12)
	assert.InDelta(t, b, tbl.Columns[ColOrtho1][0], 1e-12)
	assert.NotContains(t, tbl.Columns, ColOrtho2)

	require.Contains(t, tbl.Columns, ColCarrLon)
	for _, v := range tbl.Columns[ColCarrLon] {
		assert.True(t, v >= 0 && v < 360, "crln %g outside [0, 360)", v)
	}
}

func TestFromResults_DerivedColumns(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind geometry.Kind
		want []string
		not  []string
	}{
		{geometry.KindGCS, []string{ColRApex, "alpha", "tilt"}, []string{ColRCenter}},
		{geometry.KindEllipsoid, []string{ColOrtho1, ColOrtho2, ColRCenter}, []string{ColRApex}},
		{geometry.KindShell, []string{"thickness", "halfwidth"}, []string{ColRApex, ColRCenter}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			m, err := geometry.For(tt.kind)
			require.NoError(t, err)
			r := fit.Result{Model: geometry.Instance{Kind: tt.kind, Params: m.Seed(), Time: testutil.Epoch}}
			rec, err := FromResults("ev", tt.kind, testutil.Epoch, []fit.Result{r})
			require.NoError(t, err)
			cols := rec.GeometricalModel.Parameters.Columns
			for _, name := range tt.want {
				assert.Contains(t, cols, name)
			}
			for _, name := range tt.not {
				assert.NotContains(t, cols, name)
			}
		})
	}
}

func TestFromResults_GCSApexRadius(t *testing.T) {
	t.Parallel()
	p := geometry.GCS{}.Seed()
	r := fit.Result{Model: geometry.Instance{Kind: geometry.KindGCS, Params: p, Time: testutil.Epoch}}
	rec, err := FromResults("ev", geometry.KindGCS, testutil.Epoch, []fit.Result{r})
	require.NoError(t, err)
	assert.InDelta(t, geometry.GCS{}.CrossSectionAtApex(p), rec.GeometricalModel.Parameters.Columns[ColRApex][0], 1e-12)
	assert.InDelta(t, units.Deg(p[4]), rec.GeometricalModel.Parameters.Columns["alpha"][0], 1e-9)
}

func TestFromResults_Errors(t *testing.T) {
	t.Parallel()
	_, err := FromResults("ev", geometry.Kind("cone"), testutil.Epoch, nil)
	assert.ErrorIs(t, err, geometry.ErrUnknownKind)

	r := spheroidResult(0, 4)
	_, err = FromResults("ev", geometry.KindGCS, testutil.Epoch, []fit.Result{r})
	assert.ErrorIs(t, err, sequence.ErrKindMismatch)

	bad := spheroidResult(0, 4)
	bad.Model.Params = bad.Model.Params[:2]
	_, err = FromResults("ev", geometry.KindSpheroid, testutil.Epoch, []fit.Result{bad})
	assert.Error(t, err)
}

func TestFromSequence(t *testing.T) {
	t.Parallel()
	seq, err := sequence.New("FLR|2021-10-28T15:17:00|X1.0", geometry.KindSpheroid, spheroidResult(10, 5), spheroidResult(0, 4))
	require.NoError(t, err)
	rec, err := FromSequence(seq, testutil.Epoch)
	require.NoError(t, err)
	assert.Equal(t, seq.Event, rec.EventSelected)
	assert.Equal(t, seq.ModelID(), rec.ModelID())
	assert.Equal(t, "FLRD20211028T151700DX1p0MSpheroid", rec.ModelID())
	assert.Equal(t, 2, rec.GeometricalModel.Parameters.Len())
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()
	results := []fit.Result{spheroidResult(0, 4), spheroidResult(12, 5.5)}
	rec, err := FromResults("ev", geometry.KindSpheroid, testutil.Epoch, results)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, rec))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	gm := raw["geometrical_model"].(map[string]interface{})
	params := gm["parameters"].(map[string]interface{})
	assert.Equal(t, "Spheroid", gm["type"])
	assert.Equal(t, "2021-10-28T15:30:00.000000", params["time"].([]interface{})[0])
	assert.Contains(t, params, "hgln")
	assert.Contains(t, params, "converged")

	got, err := Decode(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(rec, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	instances, err := got.Instances()
	require.NoError(t, err)
	require.Len(t, instances, 2)
	for i, in := range instances {
		assert.True(t, in.Time.Equal(results[i].Model.Time))
		if diff := cmp.Diff(results[i].Model.Params, in.Params, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
			t.Errorf("row %d params (-want +got):\n%s", i, diff)
		}
	}

	samples, err := got.Samples()
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 5.5, samples[1].Height)
	assert.Equal(t, 0.1, samples[1].Sigma)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown type", `{"geometrical_model":{"type":"Cone","parameters":{"time":[]}}}`, ErrUnknownModelType},
		{"ragged", `{"geometrical_model":{"type":"GCS","parameters":{"time":["2021-10-28T15:30:00.000000"],"height":[1,2]}}}`, ErrRaggedColumns},
		{"bad time", `{"geometrical_model":{"type":"GCS","parameters":{"time":["yesterday"]}}}`, nil},
		{"not json", `{`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			}
		})
	}
}

func TestDecode_PlainRecord(t *testing.T) {
	t.Parallel()
	// Rows written without the uncertainty and status columns.
	doc := `{
 "event_selected": "ev",
 "date_process": "2021-11-01T10:00:00.000000",
 "geometrical_model": {
  "type": "Spheroid",
  "parameters": {
   "time": ["2021-10-28T15:30:00.000000", "2021-10-28T15:00:00.000000"],
   "hgln": [10, 10], "hglt": [0, 0], "height": [5, 3], "kappa": [0.5, 0.5], "epsilon": [0, 0]
  }
 }
}`
	rec, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Nil(t, rec.GeometricalModel.Parameters.Converged)

	samples, err := rec.Samples()
	require.NoError(t, err)
	assert.Equal(t, 3.0, samples[0].Height, "samples are time ordered")
	assert.Equal(t, 0.0, samples[0].Sigma)

	instances, err := rec.Instances()
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/18, instances[0].Params[0], 1e-12)
}

func TestInstances_MissingColumn(t *testing.T) {
	t.Parallel()
	rec := Record{GeometricalModel: GeometricalModel{
		Type:       "GCS",
		Parameters: Table{Time: []time.Time{testutil.Epoch}, Columns: map[string][]float64{"height": {5}}},
	}}
	_, err := rec.Instances()
	assert.Error(t, err)

	rec.GeometricalModel.Parameters.Columns = map[string][]float64{}
	_, err = rec.Samples()
	assert.Error(t, err)
}

func TestKindForType(t *testing.T) {
	t.Parallel()
	for _, k := range geometry.Kinds() {
		got, err := KindForType(TypeName(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
		got, err = KindForType(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := KindForType("Cone")
	assert.ErrorIs(t, err, ErrUnknownModelType)
}

func TestTable_MarshalRagged(t *testing.T) {
	t.Parallel()
	tbl := Table{Time: []time.Time{testutil.Epoch}, Columns: map[string][]float64{"height": {1, 2}}}
	_, err := json.Marshal(tbl)
	assert.ErrorIs(t, err, ErrRaggedColumns)
}

func TestEncodeDecode_UndefinedValues(t *testing.T) {
	t.Parallel()
	r := spheroidResult(0, 4)
	r.Uncertainty[2] = math.NaN()
	r.Uncertainty[3] = math.Inf(1)
	rec, err := FromResults("ev", geometry.KindSpheroid, testutil.Epoch, []fit.Result{r})
	require.NoError(t, err)
	tbl := rec.GeometricalModel.Parameters
	assert.True(t, math.IsNaN(tbl.Columns["height_sigma"][0]), "undefined sigma is not replaced")

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, rec))
	var raw struct {
		GeometricalModel struct {
			Parameters map[string]json.RawMessage `json:"parameters"`
		} `json:"geometrical_model"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	params := map[string][]*float64{}
	for _, name := range []string{"height", "height_sigma", "kappa_sigma"} {
		var col []*float64
		require.NoError(t, json.Unmarshal(raw.GeometricalModel.Parameters[name], &col))
		params[name] = col
	}
	assert.Nil(t, params["height_sigma"][0])
	assert.Nil(t, params["kappa_sigma"][0])
	require.NotNil(t, params["height"][0])
	assert.Equal(t, 4.0, *params["height"][0])

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.GeometricalModel.Parameters.Columns["height_sigma"][0]))
	samples, err := got.Samples()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(samples[0].Sigma))
}
