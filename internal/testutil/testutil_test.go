package testutil

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/coronafit/internal/frames"
	"github.com/banshee-data/coronafit/internal/units"
)

func TestAssertHelpers_Pass(t *testing.T) {
	fakeT := &testing.T{}
	AssertNoError(fakeT, nil)
	AssertError(fakeT, errors.New("boom"))
	AssertClose(fakeT, "x", 1.0005, 1, 1e-3)
	AssertClose(fakeT, "zero", 1e-4, 0, 1e-3)
	if fakeT.Failed() {
		t.Error("expected no failure")
	}
}

func TestObserver_Position(t *testing.T) {
	o := Observer(t, "sta", 90, 0, 200, Epoch, Plane(30))
	if math.Abs(o.Position.Y-200) > 1e-9 || math.Abs(o.Position.X) > 1e-9 {
		t.Errorf("position = %v, want (0, 200, 0)", o.Position)
	}
	if o.ID != "sta" || !o.Time.Equal(Epoch) {
		t.Errorf("identity = %s@%v", o.ID, o.Time)
	}

	e := Earth(t, Epoch)
	if math.Abs(e.Distance()-units.AURsun) > 1e-9 {
		t.Errorf("earth distance = %g", e.Distance())
	}
}

func TestSample(t *testing.T) {
	in := make([]frames.Pixel, 10)
	for i := range in {
		in[i] = frames.Pixel{X: float64(i)}
	}
	tests := []struct {
		stride, offset int
		want           []float64
	}{
		{3, 0, []float64{0, 3, 6, 9}},
		{4, 1, []float64{1, 5, 9}},
		{0, 8, []float64{8, 9}},
	}
	for _, tt := range tests {
		got := Sample(in, tt.stride, tt.offset)
		if len(got) != len(tt.want) {
			t.Fatalf("Sample(%d, %d) len = %d, want %d", tt.stride, tt.offset, len(got), len(tt.want))
		}
		for i := range got {
			if got[i].X != tt.want[i] {
				t.Errorf("Sample(%d, %d)[%d] = %g, want %g", tt.stride, tt.offset, i, got[i].X, tt.want[i])
			}
		}
	}
}
