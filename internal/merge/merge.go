// Package merge stitches the per-file binned products back together,
// attaches interpolated platform coordinates, and writes the final
// combined file. Errors here abort the run.
package merge

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/seaward/echoflow/internal/dataset"
	"github.com/seaward/echoflow/internal/layout"
	"github.com/seaward/echoflow/internal/ncio"
)

const coordTolerance = 1e-9

// Combine reads back every persisted product and track, concatenates them
// by coordinate, resamples longitude/latitude onto the combined time axis,
// and writes the final file. Returns the combined grid and its path.
func Combine(lay *layout.Layout, now time.Time) (*dataset.Grid, string, error) {
	grid, err := combineGrids(lay.ProductGlob())
	if err != nil {
		return nil, "", err
	}

	lon, err := combineTracks(lay.LonGlob(), "longitude")
	if err != nil {
		return nil, "", err
	}
	lat, err := combineTracks(lay.LatGlob(), "latitude")
	if err != nil {
		return nil, "", err
	}

	lonVals, err := lon.Interp(grid.Times)
	if err != nil {
		return nil, "", err
	}
	latVals, err := lat.Interp(grid.Times)
	if err != nil {
		return nil, "", err
	}

	stamp := now.UTC().Format(time.RFC3339)
	lonOut := &dataset.Track{
		Name:   "longitude",
		Times:  grid.Times,
		Values: lonVals,
		Attrs: map[string]string{
			"units":   "degrees_east",
			"history": stamp + ": interpolated from Platform.longitude onto MVBS ping_time",
		},
	}
	latOut := &dataset.Track{
		Name:   "latitude",
		Times:  grid.Times,
		Values: latVals,
		Attrs: map[string]string{
			"units":   "degrees_north",
			"history": stamp + ": interpolated from Platform.latitude onto MVBS ping_time",
		},
	}

	path := lay.CombinedPath()
	if err := ncio.WriteCombined(path, grid, lonOut, latOut); err != nil {
		return nil, "", err
	}
	return grid, path, nil
}

// combineGrids opens every product matching the glob and concatenates them
// along the time axis. All products must share the same range axis. The
// result is sorted by time with duplicate timestamps dropped (first wins).
func combineGrids(glob string) (*dataset.Grid, error) {
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no binned products match %s", glob)
	}
	sort.Strings(paths)

	var combined *dataset.Grid
	for _, p := range paths {
		g, err := ncio.ReadGrid(p, "MVBS")
		if err != nil {
			return nil, err
		}
		if combined == nil {
			combined = g
			continue
		}
		if !sameAxis(combined.Ranges, g.Ranges) {
			return nil, fmt.Errorf("%s: range axis differs from earlier products", p)
		}
		combined.Times = append(combined.Times, g.Times...)
		combined.Values = append(combined.Values, g.Values...)
	}

	combined.SortByTime()
	dedupeGrid(combined)
	return combined, nil
}

func combineTracks(glob, name string) (*dataset.Track, error) {
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no %s tracks match %s", name, glob)
	}
	sort.Strings(paths)

	combined := &dataset.Track{Name: name}
	for _, p := range paths {
		t, err := ncio.ReadTrack(p, name)
		if err != nil {
			return nil, err
		}
		combined.Times = append(combined.Times, t.Times...)
		combined.Values = append(combined.Values, t.Values...)
		if combined.Attrs == nil {
			combined.Attrs = t.Attrs
		}
	}

	combined.SortByTime()
	return combined, nil
}

func sameAxis(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > coordTolerance {
			return false
		}
	}
	return true
}

// dedupeGrid removes rows whose timestamp equals the previous row's. The
// grid must already be sorted by time.
func dedupeGrid(g *dataset.Grid) {
	if len(g.Times) < 2 {
		return
	}
	times := g.Times[:1]
	values := g.Values[:1]
	for i := 1; i < len(g.Times); i++ {
		if g.Times[i].Equal(times[len(times)-1]) {
			continue
		}
		times = append(times, g.Times[i])
		values = append(values, g.Values[i])
	}
	g.Times = times
	g.Values = values
}
