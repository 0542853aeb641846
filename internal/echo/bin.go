package echo

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/seaward/echoflow/internal/dataset"
)

// BinMVBS reduces a calibrated Sv grid onto a coarser range/time grid. The
// mean is taken in the linear domain within each cell and converted back to
// dB; cells without samples are NaN. Output coordinates are the bin lower
// edges: range bin starts in meters and ping-time bin start instants. Input
// rows need not be time-sorted; the output rows always are.
func BinMVBS(sv *dataset.Grid, rangeBinM float64, pingBin time.Duration) (*dataset.Grid, error) {
	if sv == nil {
		return nil, errors.New("nil Sv grid")
	}
	if err := sv.Validate(); err != nil {
		return nil, err
	}
	if rangeBinM <= 0 {
		return nil, fmt.Errorf("range bin %g must be positive", rangeBinM)
	}
	if pingBin <= 0 {
		return nil, fmt.Errorf("ping time bin %s must be positive", pingBin)
	}

	maxRange := sv.Ranges[len(sv.Ranges)-1]
	nRange := int(maxRange/rangeBinM) + 1
	rangeIdx := make([]int, len(sv.Ranges))
	for j, r := range sv.Ranges {
		k := int(r / rangeBinM)
		if k >= nRange {
			k = nRange - 1
		}
		rangeIdx[j] = k
	}

	// Scan for the time extent rather than trusting row order, so pings of
	// an unsorted grid land in the right bins instead of being dropped.
	minT, maxT := sv.Times[0], sv.Times[0]
	for _, ts := range sv.Times[1:] {
		if ts.Before(minT) {
			minT = ts
		}
		if ts.After(maxT) {
			maxT = ts
		}
	}
	first := minT.Truncate(pingBin)
	nTime := int(maxT.Sub(first)/pingBin) + 1

	sums := make([][]float64, nTime)
	counts := make([][]int, nTime)
	for i := range sums {
		sums[i] = make([]float64, nRange)
		counts[i] = make([]int, nRange)
	}

	for i, ts := range sv.Times {
		ti := int(ts.Sub(first) / pingBin)
		if ti < 0 || ti >= nTime {
			continue
		}
		for j, v := range sv.Values[i] {
			if math.IsNaN(v) {
				continue
			}
			k := rangeIdx[j]
			sums[ti][k] += math.Pow(10, v/10)
			counts[ti][k]++
		}
	}

	out := &dataset.Grid{
		Name:   "MVBS",
		Times:  make([]time.Time, nTime),
		Ranges: make([]float64, nRange),
		Values: make([][]float64, nTime),
		Attrs: map[string]string{
			"units":         "dB re 1 m-1",
			"long_name":     "Mean volume backscattering strength",
			"range_bin_m":   fmt.Sprintf("%g", rangeBinM),
			"ping_time_bin": pingBin.String(),
		},
	}
	for k := range out.Ranges {
		out.Ranges[k] = float64(k) * rangeBinM
	}
	for i := 0; i < nTime; i++ {
		out.Times[i] = first.Add(time.Duration(i) * pingBin)
		row := make([]float64, nRange)
		for k := 0; k < nRange; k++ {
			if counts[i][k] == 0 {
				row[k] = math.NaN()
				continue
			}
			row[k] = 10 * math.Log10(sums[i][k]/float64(counts[i][k]))
		}
		out.Values[i] = row
	}
	return out, nil
}
