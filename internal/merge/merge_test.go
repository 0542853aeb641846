package merge_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/echoflow/internal/config"
	"github.com/seaward/echoflow/internal/dataset"
	"github.com/seaward/echoflow/internal/layout"
	"github.com/seaward/echoflow/internal/merge"
	"github.com/seaward/echoflow/internal/ncio"
)

var base = time.Date(2017, 7, 24, 16, 0, 0, 0, time.UTC)

func testLayout(t *testing.T) *layout.Layout {
	t.Helper()
	lay, err := layout.Build(config.Config{
		SurveyLabel:    "HakeSurvey",
		RangeBinMeters: 20,
		PingBinLabel:   "20s",
		StartDate:      base,
		EndDate:        base.AddDate(0, 0, 4),
		OutputBase:     t.TempDir(),
	})
	require.NoError(t, err)
	return lay
}

func writeSegment(t *testing.T, lay *layout.Layout, stem string, start time.Time, sv, lonVal, latVal float64) {
	t.Helper()
	times := []time.Time{start, start.Add(20 * time.Second), start.Add(40 * time.Second)}
	grid := &dataset.Grid{
		Name:   "MVBS",
		Times:  times,
		Ranges: []float64{0, 20},
		Values: [][]float64{{sv, sv}, {sv, sv}, {sv, sv}},
		Attrs:  map[string]string{"units": "dB re 1 m-1"},
	}
	require.NoError(t, ncio.WriteGrid(lay.ProductPath(stem), grid))

	track := func(name string, v float64) *dataset.Track {
		return &dataset.Track{
			Name:   name,
			Times:  []time.Time{start.Add(-5 * time.Second), start.Add(45 * time.Second)},
			Values: []float64{v, v},
		}
	}
	require.NoError(t, ncio.WriteTrack(lay.LonPath(stem), track("longitude", lonVal)))
	require.NoError(t, ncio.WriteTrack(lay.LatPath(stem), track("latitude", latVal)))
}

func TestCombineThreeDisjointSegments(t *testing.T) {
	lay := testLayout(t)

	// Written out of chronological order on purpose.
	writeSegment(t, lay, "seg-c", base.Add(10*time.Minute), -70, -124.7, 46.7)
	writeSegment(t, lay, "seg-a", base, -90, -124.1, 46.1)
	writeSegment(t, lay, "seg-b", base.Add(5*time.Minute), -80, -124.4, 46.4)

	grid, path, err := merge.Combine(lay, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, lay.CombinedPath(), path)

	// All three time ranges present, sorted, no duplicates.
	require.Len(t, grid.Times, 9)
	for i := 1; i < len(grid.Times); i++ {
		assert.True(t, grid.Times[i].After(grid.Times[i-1]))
	}
	assert.True(t, grid.Times[0].Equal(base))
	assert.True(t, grid.Times[8].Equal(base.Add(10*time.Minute+40*time.Second)))
	assert.InDelta(t, -90, grid.Values[0][0], 1e-9)
	assert.InDelta(t, -70, grid.Values[8][0], 1e-9)

	// The persisted file carries interpolated coordinates with provenance.
	lon, err := ncio.ReadTrack(path, "longitude")
	require.NoError(t, err)
	require.Len(t, lon.Values, 9)
	for _, v := range lon.Values {
		assert.False(t, math.IsNaN(v))
	}
	assert.InDelta(t, -124.1, lon.Values[0], 1e-9)
	assert.Contains(t, lon.Attrs["history"], "interpolated from Platform.longitude")
	assert.Contains(t, lon.Attrs["history"], base.Add(time.Hour).Format(time.RFC3339))

	lat, err := ncio.ReadTrack(path, "latitude")
	require.NoError(t, err)
	assert.InDelta(t, 46.7, lat.Values[8], 1e-9)
	assert.Contains(t, lat.Attrs["history"], "interpolated from Platform.latitude")
}

func TestCombineDropsDuplicateTimestamps(t *testing.T) {
	lay := testLayout(t)
	writeSegment(t, lay, "seg-a", base, -90, -124.1, 46.1)
	writeSegment(t, lay, "seg-b", base, -80, -124.4, 46.4) // same time span

	grid, _, err := merge.Combine(lay, base)
	require.NoError(t, err)
	assert.Len(t, grid.Times, 3)
}

func TestCombineRejectsMismatchedRangeAxes(t *testing.T) {
	lay := testLayout(t)
	writeSegment(t, lay, "seg-a", base, -90, -124.1, 46.1)

	odd := &dataset.Grid{
		Name:   "MVBS",
		Times:  []time.Time{base.Add(time.Hour)},
		Ranges: []float64{0, 20, 40},
		Values: [][]float64{{-80, -80, -80}},
	}
	require.NoError(t, ncio.WriteGrid(lay.ProductPath("seg-odd"), odd))

	_, _, err := merge.Combine(lay, base)
	assert.ErrorContains(t, err, "range axis")
}

func TestCombineEmptyInputsFails(t *testing.T) {
	lay := testLayout(t)
	_, _, err := merge.Combine(lay, base)
	assert.ErrorContains(t, err, "no binned products")
}
