package echo

import (
	"errors"
	"math"
	"time"

	"github.com/seaward/echoflow/internal/dataset"
)

// Calibrate converts the received power profiles of an echo record into
// volume backscattering strength (Sv, dB re 1 m-1) using the standard
// EK60 power budget:
//
//	Sv = P + 20 log10(R) + 2 alpha R - 10 log10(Pt G^2 lambda^2 c tau psi / (32 pi^2))
//
// Pings with fewer samples than the longest one are padded with NaN so the
// grid stays rectangular.
func Calibrate(rec *EchoRecord) (*dataset.Grid, error) {
	if rec == nil || len(rec.Pings) == 0 {
		return nil, errors.New("no pings to calibrate")
	}
	ch := rec.Channel
	if ch.Frequency <= 0 || ch.SampleInterval <= 0 || ch.SoundSpeed <= 0 {
		return nil, errors.New("missing transceiver parameters")
	}

	rangeStep := ch.SoundSpeed * ch.SampleInterval / 2
	wavelength := ch.SoundSpeed / ch.Frequency
	gainLin := math.Pow(10, ch.Gain/10)
	psiLin := math.Pow(10, ch.EquivalentBeamAngle/10)
	sysTerm := 10 * math.Log10(
		ch.TransmitPower*gainLin*gainLin*wavelength*wavelength*
			ch.SoundSpeed*ch.PulseLength*psiLin/(32*math.Pi*math.Pi))

	maxSamples := 0
	for _, p := range rec.Pings {
		if len(p.Power) > maxSamples {
			maxSamples = len(p.Power)
		}
	}
	if maxSamples == 0 {
		return nil, errors.New("pings carry no samples")
	}

	ranges := make([]float64, maxSamples)
	for i := range ranges {
		ranges[i] = float64(i+1) * rangeStep
	}

	grid := &dataset.Grid{
		Name:   "Sv",
		Times:  make([]time.Time, len(rec.Pings)),
		Ranges: ranges,
		Values: make([][]float64, len(rec.Pings)),
		Attrs: map[string]string{
			"units":     "dB re 1 m-1",
			"channel":   ch.ChannelID,
			"long_name": "Volume backscattering strength",
		},
	}

	for i, p := range rec.Pings {
		row := make([]float64, maxSamples)
		for j := range row {
			if j >= len(p.Power) {
				row[j] = math.NaN()
				continue
			}
			r := ranges[j]
			row[j] = p.Power[j] + 20*math.Log10(r) + 2*ch.Absorption*r - sysTerm
		}
		grid.Times[i] = p.Time
		grid.Values[i] = row
	}

	grid.SortByTime()
	return grid, nil
}
