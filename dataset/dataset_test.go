package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstin/gdd/common"
	"hstin/gdd/engine"
	"hstin/gdd/schema"
)

type fixture struct {
	ny, nx    int
	times     []float64
	timeUnits string
	calendar  string
	airUnits  string
	air       []float32
	packed    []int16
	scale     float32
	offset    float32
	missing   int16
	noLatLon  bool
}

func writeFixture(t *testing.T, f fixture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.nc")

	h := cdf.NewHeader([]string{"time", "y", "x"}, []int{0, f.ny, f.nx})
	h.AddAttribute("", "title", "test input")

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", f.timeUnits)
	if f.calendar != "" {
		h.AddAttribute("time", "calendar", f.calendar)
	}
	h.AddVariable("y", []string{"y"}, []float32{0})
	h.AddAttribute("y", "units", "m")
	h.AddVariable("x", []string{"x"}, []float32{0})
	h.AddAttribute("x", "units", "m")
	if !f.noLatLon {
		h.AddVariable("lat", []string{"y", "x"}, []float32{0})
		h.AddVariable("lon", []string{"y", "x"}, []float32{0})
	}
	if f.packed != nil {
		h.AddVariable("air", []string{"time", "y", "x"}, []int16{0})
		h.AddAttribute("air", "scale_factor", []float32{f.scale})
		h.AddAttribute("air", "add_offset", []float32{f.offset})
		h.AddAttribute("air", "missing_value", []int16{f.missing})
	} else {
		h.AddVariable("air", []string{"time", "y", "x"}, []float32{0})
	}
	h.AddAttribute("air", "units", f.airUnits)
	h.Define()

	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	cf, err := cdf.Create(file, h)
	require.NoError(t, err)

	write := func(name string, begin, end []int, data any) {
		_, err := cf.Writer(name, begin, end).Write(data)
		require.NoError(t, err)
	}

	steps := len(f.times)
	write("time", []int{0}, []int{steps}, f.times)

	ys := make([]float32, f.ny)
	for i := range ys {
		ys[i] = float32(i) * 32463
	}
	xs := make([]float32, f.nx)
	for i := range xs {
		xs[i] = float32(i) * 32463
	}
	write("y", []int{0}, []int{f.ny}, ys)
	write("x", []int{0}, []int{f.nx}, xs)

	if !f.noLatLon {
		lat := make([]float32, f.ny*f.nx)
		lon := make([]float32, f.ny*f.nx)
		for i := range lat {
			lat[i] = 40 + float32(i/f.nx)
			lon[i] = -100 + float32(i%f.nx)
		}
		write("lat", []int{0, 0}, []int{f.ny, f.nx}, lat)
		write("lon", []int{0, 0}, []int{f.ny, f.nx}, lon)
	}

	if f.packed != nil {
		write("air", []int{0, 0, 0}, []int{steps, f.ny, f.nx}, f.packed)
	} else {
		write("air", []int{0, 0, 0}, []int{steps, f.ny, f.nx}, f.air)
	}

	require.NoError(t, cdf.UpdateNumRecs(file))
	return path
}

func repeat(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func referenceFixture() fixture {
	// 2012-07-01 and 2012-07-02
	return fixture{
		ny: 2, nx: 2,
		times:     []float64{1862712, 1862736},
		timeUnits: "hours since 1800-1-1 00:00:0.0",
		airUnits:  "K",
		air:       append(repeat(4, 290.0), repeat(4, 285.0)...),
	}
}

func TestOpenDiscoversGrid(t *testing.T) {
	in, err := Open(writeFixture(t, referenceFixture()), InputOptions{})
	require.NoError(t, err)
	defer in.Close()

	ny, nx := in.Shape()
	assert.Equal(t, 2, ny)
	assert.Equal(t, 2, nx)
	assert.Equal(t, "air", in.Variable)
	assert.Equal(t, "K", in.Units)
	assert.Equal(t, "m", in.ProjectionUnits)
	assert.Equal(t, 2, in.Steps())

	ts, err := in.Timestamp(0)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2012, 7, 1, 0, 0, 0, 0, time.UTC)), ts.String())

	assert.Equal(t, []float64{40, 40, 41, 41}, in.Lat)
	assert.Equal(t, []float64{-100, -99, -100, -99}, in.Lon)

	dst := make([]float64, 4)
	require.NoError(t, in.ReadTemperature(1, dst))
	assert.Equal(t, []float64{285, 285, 285, 285}, dst)

	_, err = in.Timestamp(5)
	assert.ErrorIs(t, err, common.ErrIO)
}

func TestOpenUnpacksAndMasks(t *testing.T) {
	f := referenceFixture()
	f.times = f.times[:1]
	f.air = nil
	f.packed = []int16{100, 200, -32767, 0}
	f.scale = 0.5
	f.offset = 250
	f.missing = -32767

	in, err := Open(writeFixture(t, f), InputOptions{Variable: "air"})
	require.NoError(t, err)
	defer in.Close()

	dst := make([]float64, 4)
	require.NoError(t, in.ReadTemperature(0, dst))
	assert.Equal(t, 300.0, dst[0])
	assert.Equal(t, 350.0, dst[1])
	assert.True(t, math.IsNaN(dst[2]))
	assert.Equal(t, 250.0, dst[3])
}

func TestReadTemperatureLaterRecords(t *testing.T) {
	f := referenceFixture()
	f.times = []float64{1862712, 1862736, 1862760}
	f.air = []float32{
		290, 291, 292, 293,
		280, 281, 282, 283,
		270, 271, 272, 273,
	}

	in, err := Open(writeFixture(t, f), InputOptions{})
	require.NoError(t, err)
	defer in.Close()

	dst := make([]float64, 4)
	for _, step := range []int{2, 0, 1} {
		require.NoError(t, in.ReadTemperature(step, dst), "step %d", step)
		base := 290 - 10*float64(step)
		assert.Equal(t, []float64{base, base + 1, base + 2, base + 3}, dst, "step %d", step)
	}

	p := referenceFixture()
	p.air = nil
	p.packed = []int16{0, 0, 0, 0, 100, -32767, 200, 0}
	p.scale = 0.5
	p.offset = 250
	p.missing = -32767

	packed, err := Open(writeFixture(t, p), InputOptions{})
	require.NoError(t, err)
	defer packed.Close()

	require.NoError(t, packed.ReadTemperature(1, dst))
	assert.Equal(t, 300.0, dst[0])
	assert.True(t, math.IsNaN(dst[1]))
	assert.Equal(t, 350.0, dst[2])
	assert.Equal(t, 250.0, dst[3])
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.nc"), InputOptions{})
	assert.ErrorIs(t, err, common.ErrIO)

	f := referenceFixture()
	f.airUnits = "m/s"
	_, err = Open(writeFixture(t, f), InputOptions{})
	assert.ErrorIs(t, err, common.ErrInputFormat)

	f = referenceFixture()
	f.noLatLon = true
	_, err = Open(writeFixture(t, f), InputOptions{})
	assert.ErrorIs(t, err, common.ErrInputFormat)

	f = referenceFixture()
	f.calendar = "360_day"
	_, err = Open(writeFixture(t, f), InputOptions{})
	assert.ErrorIs(t, err, common.ErrInputFormat)

	_, err = Open(writeFixture(t, referenceFixture()), InputOptions{Variable: "nope"})
	assert.ErrorIs(t, err, common.ErrInputFormat)
}

func TestReferenceRunRoundTrip(t *testing.T) {
	in, err := Open(writeFixture(t, referenceFixture()), InputOptions{})
	require.NoError(t, err)
	defer in.Close()

	ny, nx := in.Shape()
	outPath := filepath.Join(t.TempDir(), "gdd.nc")
	out, err := Create(outPath, schema.New(schema.Options{NY: ny, NX: nx, TemperatureUnit: in.Units, ProjectionUnits: in.ProjectionUnits}))
	require.NoError(t, err)
	require.NoError(t, out.WriteCoordinates(in.Lat, in.Lon, in.Y, in.X))

	res, err := engine.New(engine.Options{Transfer: engine.Threshold{Value: 283.15}}).Run(in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Retained)
	assert.Equal(t, 2, out.Records())
	require.NoError(t, out.Close())

	file, err := os.Open(outPath)
	require.NoError(t, err)
	defer file.Close()
	cf, err := cdf.Open(file)
	require.NoError(t, err)

	info, err := file.Stat()
	require.NoError(t, err)
	records := int(cf.Header.NumRecs(info.Size()))
	assert.Equal(t, 2, records)
	assert.Equal(t, []int{0, 2, 2}, cf.Header.Lengths("gdd"))
	assert.Equal(t, []string{"time", "y", "x"}, cf.Header.Dimensions("gdd"))

	gdd := make([]int16, 8)
	_, err = cf.Reader("gdd", []int{0, 0, 0}, []int{records, 2, 2}).Read(gdd)
	require.NoError(t, err)
	assert.Equal(t, []int16{7, 7, 7, 7, 9, 9, 9, 9}, gdd)

	times := make([]float64, 2)
	_, err = cf.Reader("time", []int{0}, []int{records}).Read(times)
	require.NoError(t, err)
	assert.Equal(t, []float64{1862712, 1862736}, times)

	bounds := make([]float64, 4)
	_, err = cf.Reader("time_bnds", []int{0, 0}, []int{records, 2}).Read(bounds)
	require.NoError(t, err)
	for _, b := range bounds {
		assert.Equal(t, schema.TimeBoundsFill, b)
	}

	lat := make([]float32, 4)
	_, err = cf.Reader("lat", nil, nil).Read(lat)
	require.NoError(t, err)
	assert.Equal(t, []float32{40, 40, 41, 41}, lat)

	assert.Equal(t, "K*d", cf.Header.GetAttribute("gdd", "units"))
	assert.Equal(t, []int16{-99}, cf.Header.GetAttribute("gdd", "_FillValue"))
	assert.Equal(t, []int16{-99}, cf.Header.GetAttribute("gdd", "missing_value"))
	assert.Equal(t, "Growing Degree Days", cf.Header.GetAttribute("gdd", "long_name"))
	assert.Equal(t, "hours since 1800-1-1 00:00:0.0", cf.Header.GetAttribute("time", "units"))
	assert.Equal(t, "Time Boundaries", cf.Header.GetAttribute("time_bnds", "long_name"))
	assert.Equal(t, "lambert_conformal_conic", cf.Header.GetAttribute("Lambert_Conformal", "grid_mapping_name"))
	assert.Equal(t, []float64{50, 50}, cf.Header.GetAttribute("Lambert_Conformal", "standard_parallel"))
	assert.Equal(t, "m", cf.Header.GetAttribute("x", "units"))

	assert.Equal(t, "CF-1.0", cf.Header.GetAttribute("", "Conventions"))
	assert.Equal(t, "Daily NARR", cf.Header.GetAttribute("", "title"))
	assert.Equal(t, []float32{-107}, cf.Header.GetAttribute("", "centerlon"))
	assert.Equal(t, []float32{1.0, 0.897945, 46.3544, 46.63433}, cf.Header.GetAttribute("", "latcorners"))
}

func TestWriteGridRejectsWrongSize(t *testing.T) {
	out, err := Create(filepath.Join(t.TempDir(), "gdd.nc"), schema.New(schema.Options{NY: 2, NX: 2, TemperatureUnit: "K"}))
	require.NoError(t, err)
	defer out.Close()

	assert.ErrorIs(t, out.WriteGrid(0, []int16{1, 2, 3}), common.ErrInputFormat)
	assert.ErrorIs(t, out.WriteCoordinates([]float64{1}, nil, nil, nil), common.ErrInputFormat)
}

func TestFlatten(t *testing.T) {
	v, err := flatten([][]int32{{1, 2}, {3}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, v)

	v, err = flatten([][][]float32{{{1.5}, {2.5}}}, v[:0])
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, v)

	_, err = flatten([]string{"a"}, nil)
	assert.Error(t, err)
}

func TestReadResult(t *testing.T) {
	in, err := Open(writeFixture(t, referenceFixture()), InputOptions{})
	require.NoError(t, err)
	defer in.Close()

	outPath := filepath.Join(t.TempDir(), "gdd.nc")
	out, err := Create(outPath, schema.New(schema.Options{NY: 2, NX: 2, TemperatureUnit: "K"}))
	require.NoError(t, err)
	require.NoError(t, out.WriteCoordinates(in.Lat, in.Lon, in.Y, in.X))
	_, err = engine.New(engine.Options{Transfer: engine.Threshold{Value: 283.15}}).Run(in, out)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	r, err := ReadResult(outPath)
	require.NoError(t, err)
	assert.Equal(t, 2, r.NY)
	assert.Equal(t, 2, r.NX)
	assert.Equal(t, "K*d", r.Units)
	require.Len(t, r.Times, 2)
	assert.True(t, r.Times[1].Equal(time.Date(2012, 7, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []int16{7, 7, 7, 7, 9, 9, 9, 9}, r.Cells)
	assert.Equal(t, []int16{7, 9}, r.Series(1, 0))
	assert.Equal(t, []float64{-100, -99, -100, -99}, r.Lon)

	_, err = ReadResult(writeFixture(t, referenceFixture()))
	assert.ErrorIs(t, err, common.ErrInputFormat)
}
