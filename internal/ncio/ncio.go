// Package ncio persists grids and tracks as NetCDF (classic format) files
// and reads them back, wrapping the go-native-netcdf reader and writer.
package ncio

import (
	"fmt"
	"sort"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/seaward/echoflow/internal/dataset"
)

const (
	timeVar  = "ping_time"
	rangeVar = "echo_range"

	timeUnits  = "seconds since 1970-01-01T00:00:00Z"
	rangeUnits = "m"
)

// WriteGrid persists one binned product file.
func WriteGrid(path string, g *dataset.Grid) error {
	return WriteCombined(path, g, nil, nil)
}

// WriteCombined persists a grid together with optional longitude/latitude
// series aligned to its time axis. This is the final merged product shape.
func WriteCombined(path string, g *dataset.Grid, lon, lat *dataset.Track) error {
	if err := g.Validate(); err != nil {
		return err
	}

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := addVar(cw, timeVar, encodeTimes(g.Times), []string{timeVar},
		map[string]string{"units": timeUnits}); err != nil {
		return closeOnErr(cw, err)
	}
	if err := addVar(cw, rangeVar, g.Ranges, []string{rangeVar},
		map[string]string{"units": rangeUnits}); err != nil {
		return closeOnErr(cw, err)
	}
	if err := addVar(cw, g.Name, g.Values, []string{timeVar, rangeVar}, g.Attrs); err != nil {
		return closeOnErr(cw, err)
	}

	for _, t := range []*dataset.Track{lon, lat} {
		if t == nil {
			continue
		}
		if len(t.Values) != len(g.Times) {
			return closeOnErr(cw, fmt.Errorf("%s: %d values vs %d ping times",
				t.Name, len(t.Values), len(g.Times)))
		}
		if err := addVar(cw, t.Name, t.Values, []string{timeVar}, t.Attrs); err != nil {
			return closeOnErr(cw, err)
		}
	}

	if err := cw.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// WriteTrack persists one position track file on its own time axis.
func WriteTrack(path string, t *dataset.Track) error {
	if len(t.Times) != len(t.Values) {
		return fmt.Errorf("track %s: %d times vs %d values", t.Name, len(t.Times), len(t.Values))
	}
	if len(t.Times) == 0 {
		return fmt.Errorf("track %s is empty", t.Name)
	}

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := addVar(cw, timeVar, encodeTimes(t.Times), []string{timeVar},
		map[string]string{"units": timeUnits}); err != nil {
		return closeOnErr(cw, err)
	}
	if err := addVar(cw, t.Name, t.Values, []string{timeVar}, t.Attrs); err != nil {
		return closeOnErr(cw, err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// ReadGrid loads a product file written by WriteGrid or WriteCombined. The
// data variable is located by name.
func ReadGrid(path, name string) (*dataset.Grid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	times, err := readTimes(nc, path)
	if err != nil {
		return nil, err
	}

	rv, err := nc.GetVariable(rangeVar)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", path, rangeVar, err)
	}
	ranges, ok := rv.Values.([]float64)
	if !ok {
		return nil, fmt.Errorf("%s: %s has unexpected type %T", path, rangeVar, rv.Values)
	}

	dv, err := nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", path, name, err)
	}
	values, ok := dv.Values.([][]float64)
	if !ok {
		return nil, fmt.Errorf("%s: %s has unexpected type %T", path, name, dv.Values)
	}

	g := &dataset.Grid{
		Name:   name,
		Times:  times,
		Ranges: ranges,
		Values: values,
		Attrs:  attrsToMap(dv.Attributes),
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ReadTrack loads a position track file, returning the named series.
func ReadTrack(path, name string) (*dataset.Track, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	times, err := readTimes(nc, path)
	if err != nil {
		return nil, err
	}

	vv, err := nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", path, name, err)
	}
	values, ok := vv.Values.([]float64)
	if !ok {
		return nil, fmt.Errorf("%s: %s has unexpected type %T", path, name, vv.Values)
	}
	if len(values) != len(times) {
		return nil, fmt.Errorf("%s: %d values vs %d times", path, len(values), len(times))
	}

	return &dataset.Track{
		Name:   name,
		Times:  times,
		Values: values,
		Attrs:  attrsToMap(vv.Attributes),
	}, nil
}

func closeOnErr(cw api.Writer, err error) error {
	_ = cw.Close()
	return err
}

func addVar(cw api.Writer, name string, values any, dims []string, attrs map[string]string) error {
	am, err := attrsToMapAPI(attrs)
	if err != nil {
		return err
	}
	if err := cw.AddVar(name, api.Variable{
		Values:     values,
		Dimensions: dims,
		Attributes: am,
	}); err != nil {
		return fmt.Errorf("write variable %s: %w", name, err)
	}
	return nil
}

func attrsToMapAPI(attrs map[string]string) (api.AttributeMap, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make(map[string]any, len(attrs))
	for k, v := range attrs {
		values[k] = v
	}
	am, err := util.NewOrderedMap(keys, values)
	if err != nil {
		return nil, fmt.Errorf("build attributes: %w", err)
	}
	return am, nil
}

func attrsToMap(am api.AttributeMap) map[string]string {
	if am == nil {
		return nil
	}
	keys := am.Keys()
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok := am.Get(k)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

func readTimes(nc api.Group, path string) ([]time.Time, error) {
	tv, err := nc.GetVariable(timeVar)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", path, timeVar, err)
	}
	secs, ok := tv.Values.([]float64)
	if !ok {
		return nil, fmt.Errorf("%s: %s has unexpected type %T", path, timeVar, tv.Values)
	}
	return decodeTimes(secs), nil
}

func encodeTimes(times []time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = float64(t.UnixNano()) / float64(time.Second)
	}
	return out
}

func decodeTimes(secs []float64) []time.Time {
	out := make([]time.Time, len(secs))
	for i, s := range secs {
		out[i] = time.Unix(0, int64(s*float64(time.Second))).UTC()
	}
	return out
}
