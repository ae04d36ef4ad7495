package dataset

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/cdf"

	"hstin/gdd/common"
	. "hstin/gdd/helper"
)

type InputOptions struct {
	// Variable names the temperature grid. Empty selects the only
	// (time, y, x) variable with temperature units.
	Variable string
}

// Input is a NetCDF file holding one temperature grid over a time axis.
type Input struct {
	nc   api.Group
	temp api.VarGetter

	// classic is set for netCDF classic files, whose records are read
	// through cdf.
	classicFile *os.File
	classic     *cdf.File

	Variable string
	Units    string

	ny, nx int
	times  []time.Time

	X, Y            []float64
	ProjectionUnits string
	Lat, Lon        []float64

	scale, offset float64
	fills         []float64

	buf []float64
}

func Open(path string, opts InputOptions) (*Input, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", common.ErrIO, path, err)
	}

	in := &Input{nc: nc, scale: 1}
	if err := in.load(opts); err != nil {
		nc.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	in.openClassic(path)

	Log.Info().Msgf("Opened %s: variable %s [%s], %d steps on %dx%d grid", path, in.Variable, in.Units, len(in.times), in.ny, in.nx)
	return in, nil
}

// openClassic leaves in.classic nil for NetCDF-4 files, which cdf cannot
// parse.
func (in *Input) openClassic(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	cf, err := cdf.Open(f)
	if err != nil || len(cf.Header.Dimensions(in.Variable)) != 3 {
		f.Close()
		return
	}
	in.classicFile, in.classic = f, cf
}

func (in *Input) load(opts InputOptions) error {
	name := opts.Variable
	if name == "" {
		var err error
		if name, err = in.findTemperature(); err != nil {
			return err
		}
	}

	temp, err := in.nc.GetVarGetter(name)
	if err != nil {
		return fmt.Errorf("%w: variable %q: %v", common.ErrInputFormat, name, err)
	}
	dims := temp.Dimensions()
	if len(dims) != 3 {
		return fmt.Errorf("%w: variable %q has dimensions %v, want (time, y, x)", common.ErrInputFormat, name, dims)
	}
	in.temp = temp
	in.Variable = name

	attrs := temp.Attributes()
	units, ok := attrString(attrs, "units")
	if !ok {
		return fmt.Errorf("%w: variable %q has no units", common.ErrInputFormat, name)
	}
	in.Units = units

	if v, ok := attrFloat(attrs, "scale_factor"); ok {
		in.scale = v
	}
	if v, ok := attrFloat(attrs, "add_offset"); ok {
		in.offset = v
	}
	in.fills = append(attrFloats(attrs, "_FillValue"), attrFloats(attrs, "missing_value")...)

	if err := in.loadTime(dims[0]); err != nil {
		return err
	}

	if in.Y, _, err = in.axis(dims[1]); err != nil {
		return err
	}
	if in.X, in.ProjectionUnits, err = in.axis(dims[2]); err != nil {
		return err
	}
	in.ny, in.nx = len(in.Y), len(in.X)

	if in.Lat, err = in.coordinates("lat"); err != nil {
		return err
	}
	if in.Lon, err = in.coordinates("lon"); err != nil {
		return err
	}

	in.buf = make([]float64, 0, in.ny*in.nx)
	return nil
}

func (in *Input) findTemperature() (string, error) {
	var found []string
	for _, name := range in.nc.ListVariables() {
		vg, err := in.nc.GetVarGetter(name)
		if err != nil {
			continue
		}
		if len(vg.Dimensions()) != 3 {
			continue
		}
		units, ok := attrString(vg.Attributes(), "units")
		if !ok {
			continue
		}
		if _, err := common.ParseTemperatureUnit(units); err == nil {
			found = append(found, name)
		}
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: no (time, y, x) variable with temperature units", common.ErrInputFormat)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("%w: several temperature variables (%s), select one explicitly", common.ErrInputFormat, strings.Join(found, ", "))
}

func (in *Input) loadTime(dim string) error {
	vg, err := in.nc.GetVarGetter(dim)
	if err != nil {
		return fmt.Errorf("%w: no time axis %q: %v", common.ErrInputFormat, dim, err)
	}

	attrs := vg.Attributes()
	units, ok := attrString(attrs, "units")
	if !ok {
		return fmt.Errorf("%w: time axis %q has no units", common.ErrInputFormat, dim)
	}
	tu, err := common.ParseTimeUnits(units)
	if err != nil {
		return err
	}
	calendar, _ := attrString(attrs, "calendar")
	if err := common.CheckCalendar(calendar); err != nil {
		return err
	}

	raw, err := vg.Values()
	if err != nil {
		return fmt.Errorf("%w: reading time axis: %v", common.ErrIO, err)
	}
	values, err := flatten(raw, nil)
	if err != nil {
		return fmt.Errorf("%w: time axis: %v", common.ErrInputFormat, err)
	}

	in.times = make([]time.Time, len(values))
	for i, v := range values {
		in.times[i] = tu.Decode(v)
	}
	return nil
}

func (in *Input) axis(dim string) ([]float64, string, error) {
	vg, err := in.nc.GetVarGetter(dim)
	if err != nil {
		return nil, "", fmt.Errorf("%w: no coordinate variable for axis %q: %v", common.ErrInputFormat, dim, err)
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading axis %q: %v", common.ErrIO, dim, err)
	}
	values, err := flatten(raw, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: axis %q: %v", common.ErrInputFormat, dim, err)
	}
	units, _ := attrString(vg.Attributes(), "units")
	return values, units, nil
}

func (in *Input) coordinates(name string) ([]float64, error) {
	vg, err := in.nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("%w: no %s variable: %v", common.ErrInputFormat, name, err)
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", common.ErrIO, name, err)
	}
	values, err := flatten(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrInputFormat, name, err)
	}
	if len(values) != in.ny*in.nx {
		return nil, fmt.Errorf("%w: %s has %d values, grid has %dx%d", common.ErrInputFormat, name, len(values), in.ny, in.nx)
	}
	return values, nil
}

func (in *Input) Shape() (int, int) {
	return in.ny, in.nx
}

func (in *Input) Steps() int {
	return len(in.times)
}

func (in *Input) Times() []time.Time {
	return in.times
}

func (in *Input) Timestamp(t int) (time.Time, error) {
	if t < 0 || t >= len(in.times) {
		return time.Time{}, fmt.Errorf("%w: timestep %d out of range", common.ErrIO, t)
	}
	return in.times[t], nil
}

// ReadTemperature reads step t unpacked: fill and missing values become NaN,
// everything else is raw*scale_factor + add_offset.
func (in *Input) ReadTemperature(t int, dst []float64) error {
	raw, err := in.readStep(t)
	if err != nil {
		return fmt.Errorf("%w: reading %s step %d: %v", common.ErrIO, in.Variable, t, err)
	}

	in.buf, err = flatten(raw, in.buf[:0])
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrInputFormat, in.Variable, err)
	}
	if len(in.buf) != len(dst) {
		return fmt.Errorf("%w: %s step %d has %d cells, want %d", common.ErrInputFormat, in.Variable, t, len(in.buf), len(dst))
	}

	for i, v := range in.buf {
		if in.isFill(v) {
			dst[i] = math.NaN()
			continue
		}
		dst[i] = v*in.scale + in.offset
	}
	return nil
}

func (in *Input) readStep(t int) (any, error) {
	if in.classic == nil {
		return in.temp.GetSlice(int64(t), int64(t+1))
	}

	r := in.classic.Reader(in.Variable, []int{t, 0, 0}, []int{t + 1, in.ny, in.nx})
	buf := r.Zero(in.ny * in.nx)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (in *Input) isFill(v float64) bool {
	for _, f := range in.fills {
		if v == f {
			return true
		}
	}
	return false
}

func (in *Input) Close() {
	if in.classicFile != nil {
		in.classicFile.Close()
	}
	in.nc.Close()
}
