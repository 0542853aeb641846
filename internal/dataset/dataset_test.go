package dataset_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/echoflow/internal/dataset"
)

var base = time.Date(2017, 7, 24, 12, 0, 0, 0, time.UTC)

func TestTrackInterp(t *testing.T) {
	track := &dataset.Track{
		Name:   "longitude",
		Times:  []time.Time{base, base.Add(10 * time.Second), base.Add(20 * time.Second)},
		Values: []float64{-122.0, -122.2, -122.6},
	}

	got, err := track.Interp([]time.Time{
		base.Add(-5 * time.Second), // before span: clamped
		base,                       // exact sample
		base.Add(5 * time.Second),  // midpoint
		base.Add(15 * time.Second), // midpoint of second segment
		base.Add(30 * time.Second), // past span: clamped
	})
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.InDelta(t, -122.0, got[0], 1e-12)
	assert.InDelta(t, -122.0, got[1], 1e-12)
	assert.InDelta(t, -122.1, got[2], 1e-12)
	assert.InDelta(t, -122.4, got[3], 1e-12)
	assert.InDelta(t, -122.6, got[4], 1e-12)
}

func TestTrackInterpUnsortedInput(t *testing.T) {
	track := &dataset.Track{
		Name:   "latitude",
		Times:  []time.Time{base.Add(20 * time.Second), base, base.Add(10 * time.Second)},
		Values: []float64{46.4, 46.0, 46.2},
	}

	got, err := track.Interp([]time.Time{base.Add(5 * time.Second)})
	require.NoError(t, err)
	assert.InDelta(t, 46.1, got[0], 1e-12)

	// The original ordering is left untouched.
	assert.Equal(t, 46.4, track.Values[0])
}

func TestTrackInterpSingleSample(t *testing.T) {
	track := &dataset.Track{
		Name:   "latitude",
		Times:  []time.Time{base},
		Values: []float64{46.0},
	}

	got, err := track.Interp([]time.Time{base.Add(-time.Hour), base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []float64{46.0, 46.0}, got)
}

func TestTrackInterpEmpty(t *testing.T) {
	track := &dataset.Track{Name: "longitude"}
	_, err := track.Interp([]time.Time{base})
	assert.Error(t, err)
}

func TestGridSortByTime(t *testing.T) {
	g := &dataset.Grid{
		Name:   "MVBS",
		Times:  []time.Time{base.Add(time.Minute), base},
		Ranges: []float64{0, 20},
		Values: [][]float64{{1, 2}, {3, 4}},
	}
	g.SortByTime()

	assert.Equal(t, base, g.Times[0])
	assert.Equal(t, []float64{3, 4}, g.Values[0])
	assert.Equal(t, []float64{1, 2}, g.Values[1])
	require.NoError(t, g.Validate())
}

func TestGridValidate(t *testing.T) {
	g := &dataset.Grid{
		Name:   "MVBS",
		Times:  []time.Time{base},
		Ranges: []float64{0, 20},
		Values: [][]float64{{1}},
	}
	assert.Error(t, g.Validate())

	g.Values = [][]float64{{1, 2}}
	assert.NoError(t, g.Validate())

	empty := &dataset.Grid{Name: "MVBS"}
	assert.Error(t, empty.Validate())
}
