package projection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/coronafit/internal/frames"
)

func TestSignedDistance(t *testing.T) {
	t.Parallel()
	square := []frames.Pixel{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	tests := []struct {
		name    string
		p       frames.Pixel
		outline []frames.Pixel
		want    float64
	}{
		{"inside", frames.Pixel{X: 5, Y: 3}, square, -3},
		{"outside", frames.Pixel{X: 13, Y: 5}, square, 3},
		{"corner", frames.Pixel{X: 13, Y: 14}, square, 5},
		{"on edge", frames.Pixel{X: 10, Y: 4}, square, 0},
		{"single vertex", frames.Pixel{X: 3, Y: 4}, []frames.Pixel{{}}, 5},
		{"segment", frames.Pixel{X: 5, Y: 2}, []frames.Pixel{{X: 0, Y: 0}, {X: 10, Y: 0}}, 2},
		{"closing edge", frames.Pixel{X: -2, Y: 5}, square, 2},
		{"near closing edge inside", frames.Pixel{X: 1, Y: 5}, square, -1},
		{"already closed", frames.Pixel{X: 5, Y: 3}, append(append([]frames.Pixel{}, square...), square[0]), -3},
		{"concave notch", frames.Pixel{X: 5, Y: 8}, []frames.Pixel{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 5, Y: 5}, {X: 0, Y: 10}}, math.Sqrt(4.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SignedDistance(tt.p, tt.outline), 1e-12)
		})
	}

	assert.True(t, math.IsInf(SignedDistance(frames.Pixel{}, nil), 1))
}
