// Package dataset holds the in-memory forms of the gridded backscatter
// products and the time-indexed position tracks that move through the
// pipeline.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Grid is a 2-D quantity indexed by ping time (rows) and echo range
// (columns). Values is time-major: Values[i][j] belongs to Times[i] and
// Ranges[j].
type Grid struct {
	Name   string
	Times  []time.Time
	Ranges []float64
	Values [][]float64
	Attrs  map[string]string
}

// Track is a single time-indexed coordinate series such as a longitude or
// latitude trace from the platform record.
type Track struct {
	Name   string
	Times  []time.Time
	Values []float64
	Attrs  map[string]string
}

// SortByTime orders the grid rows by ascending ping time in place.
func (g *Grid) SortByTime() {
	idx := make([]int, len(g.Times))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return g.Times[idx[a]].Before(g.Times[idx[b]])
	})

	times := make([]time.Time, len(g.Times))
	values := make([][]float64, len(g.Values))
	for i, j := range idx {
		times[i] = g.Times[j]
		values[i] = g.Values[j]
	}
	g.Times = times
	g.Values = values
}

// SortByTime orders the track samples by ascending time in place.
func (t *Track) SortByTime() {
	idx := make([]int, len(t.Times))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return t.Times[idx[a]].Before(t.Times[idx[b]])
	})

	times := make([]time.Time, len(t.Times))
	values := make([]float64, len(t.Values))
	for i, j := range idx {
		times[i] = t.Times[j]
		values[i] = t.Values[j]
	}
	t.Times = times
	t.Values = values
}

// Interp resamples the track onto the target time axis by linear
// interpolation. Targets before the first sample or after the last one are
// clamped to the end values. The track must hold at least one sample.
func (t *Track) Interp(targets []time.Time) ([]float64, error) {
	if len(t.Times) == 0 {
		return nil, fmt.Errorf("track %s is empty", t.Name)
	}
	if len(t.Times) != len(t.Values) {
		return nil, fmt.Errorf("track %s: %d times vs %d values",
			t.Name, len(t.Times), len(t.Values))
	}

	sorted := *t
	sorted.Times = append([]time.Time(nil), t.Times...)
	sorted.Values = append([]float64(nil), t.Values...)
	sorted.SortByTime()

	out := make([]float64, len(targets))
	for i, target := range targets {
		out[i] = sorted.at(target)
	}
	return out, nil
}

// at evaluates the (sorted) track at one instant.
func (t *Track) at(target time.Time) float64 {
	n := len(t.Times)
	idx := sort.Search(n, func(i int) bool {
		return !t.Times[i].Before(target)
	})
	switch {
	case idx == 0:
		return t.Values[0]
	case idx == n:
		return t.Values[n-1]
	}

	t0, t1 := t.Times[idx-1], t.Times[idx]
	span := t1.Sub(t0)
	if span <= 0 {
		return t.Values[idx]
	}
	frac := float64(target.Sub(t0)) / float64(span)
	return t.Values[idx-1] + frac*(t.Values[idx]-t.Values[idx-1])
}

// Validate checks internal shape consistency.
func (g *Grid) Validate() error {
	if len(g.Times) != len(g.Values) {
		return fmt.Errorf("grid %s: %d times vs %d rows", g.Name, len(g.Times), len(g.Values))
	}
	for i, row := range g.Values {
		if len(row) != len(g.Ranges) {
			return fmt.Errorf("grid %s: row %d has %d samples, want %d",
				g.Name, i, len(row), len(g.Ranges))
		}
	}
	if len(g.Times) == 0 {
		return errors.New("grid " + g.Name + " is empty")
	}
	return nil
}
