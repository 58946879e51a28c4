package frames

import (
	"errors"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_NearestWithinTolerance(t *testing.T) {
	table := NewTable(2 * time.Minute)
	for i, x := range []float64{210, 212, 214} {
		o, err := NewObserver("stereo-a", testEpoch.Add(time.Duration(i)*10*time.Minute), r3.Vector{X: x}, testPlane())
		require.NoError(t, err)
		require.NoError(t, table.Add(o))
	}

	at := testEpoch.Add(11 * time.Minute)
	got, err := table.Observer("stereo-a", at)
	require.NoError(t, err)
	assert.Equal(t, 212.0, got.Position.X)
	assert.True(t, got.Time.Equal(at), "lookup is stamped with the requested time, got %s", got.Time)
	require.NoError(t, got.Validate())

	_, err = table.Observer("stereo-a", testEpoch.Add(5*time.Minute))
	var missing *MissingEphemerisError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "stereo-a", missing.Observer)

	_, err = table.Observer("stereo-b", testEpoch)
	assert.True(t, errors.As(err, &missing))
}

func TestTable_ReplaceSameTimestamp(t *testing.T) {
	table := NewTable(0)
	first, err := NewObserver("lasco-c2", testEpoch, r3.Vector{X: 214}, testPlane())
	require.NoError(t, err)
	second, err := NewObserver("lasco-c2", testEpoch, r3.Vector{X: 213}, testPlane())
	require.NoError(t, err)
	require.NoError(t, table.Add(first))
	require.NoError(t, table.Add(second))

	got, err := table.Observer("lasco-c2", testEpoch)
	require.NoError(t, err)
	assert.Equal(t, 213.0, got.Position.X)

	assert.Error(t, table.Add(Observer{ID: "broken"}))
}

func TestEarthSource(t *testing.T) {
	src := EarthSource{Plane: testPlane()}
	o, err := src.Observer("lasco-c3", testEpoch)
	require.NoError(t, err)
	assert.InDelta(t, 0, o.Position.Sub(EarthPosition(testEpoch)).Norm(), 1e-9)

	_, err = src.Observer("lasco-c3", time.Time{})
	var missing *MissingEphemerisError
	assert.True(t, errors.As(err, &missing))
}

type countingSource struct {
	calls int
	src   Source
}

func (c *countingSource) Observer(id string, t time.Time) (Observer, error) {
	c.calls++
	return c.src.Observer(id, t)
}

func TestCachedSource(t *testing.T) {
	inner := &countingSource{src: EarthSource{Plane: testPlane()}}
	cached := NewCachedSource(inner, 16, time.Hour)

	for i := 0; i < 3; i++ {
		_, err := cached.Observer("aia", testEpoch)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, cached.Len())

	_, err := cached.Observer("aia", time.Time{})
	assert.Error(t, err)
	_, err = cached.Observer("aia", time.Time{})
	assert.Error(t, err)
	assert.Equal(t, 3, inner.calls, "errors are not cached")
}
