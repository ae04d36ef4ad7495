package dataset

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"

	"hstin/gdd/common"
	. "hstin/gdd/helper"
	"hstin/gdd/schema"
)

// Output is a NetCDF classic file laid out by a schema.Schema. It receives
// one time value and one gdd grid per retained timestep.
type Output struct {
	path   string
	file   *os.File
	cdf    *cdf.File
	ny, nx int

	records int
}

func Create(path string, s schema.Schema) (*Output, error) {
	var dims []string
	var lengths []int
	for _, d := range s.Dimensions {
		dims = append(dims, d.Name)
		lengths = append(lengths, d.Length)
	}

	h := cdf.NewHeader(dims, lengths)
	for _, a := range s.Global {
		h.AddAttribute("", a.Name, a.Value)
	}
	for _, v := range s.Variables {
		h.AddVariable(v.Name, v.Dimensions, zeroValue(v.Type))
		for _, a := range v.Attributes {
			h.AddAttribute(v.Name, a.Name, a.Value)
		}
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", common.ErrIO, path, err)
	}

	cf, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: writing header of %s: %v", common.ErrIO, path, err)
	}

	ny, _ := s.Dimension("y")
	nx, _ := s.Dimension("x")

	return &Output{path: path, file: f, cdf: cf, ny: ny.Length, nx: nx.Length}, nil
}

func zeroValue(t schema.DataType) any {
	switch t {
	case schema.SHORT:
		return []int16{0}
	case schema.INT:
		return []int32{0}
	case schema.FLOAT:
		return []float32{0}
	}
	return []float64{0}
}

// WriteCoordinates writes the static lat, lon, y and x variables.
func (o *Output) WriteCoordinates(lat, lon, y, x []float64) error {
	for _, c := range []struct {
		name   string
		values []float64
	}{
		{"lat", lat},
		{"lon", lon},
		{"y", y},
		{"x", x},
	} {
		if err := o.writeFloat32(c.name, c.values); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) writeFloat32(name string, values []float64) error {
	end := o.cdf.Header.Lengths(name)
	n := 1
	for _, l := range end {
		n *= l
	}
	if len(values) != n {
		return fmt.Errorf("%w: %s has %d values, want %d", common.ErrInputFormat, name, len(values), n)
	}

	data := make([]float32, len(values))
	for i, v := range values {
		data[i] = float32(v)
	}

	w := o.cdf.Writer(name, make([]int, len(end)), end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: writing %s: %v", common.ErrIO, name, err)
	}
	return nil
}

// WriteTime stores the time value of record index, and the fill value in the
// matching time_bnds record.
func (o *Output) WriteTime(index int, value float64) error {
	w := o.cdf.Writer(schema.TimeVariable, []int{index}, []int{index + 1})
	if _, err := w.Write([]float64{value}); err != nil {
		return fmt.Errorf("%w: writing time %d: %v", common.ErrIO, index, err)
	}

	w = o.cdf.Writer(schema.TimeBoundsVar, []int{index, 0}, []int{index + 1, 2})
	if _, err := w.Write([]float64{schema.TimeBoundsFill, schema.TimeBoundsFill}); err != nil {
		return fmt.Errorf("%w: writing time bounds %d: %v", common.ErrIO, index, err)
	}
	return nil
}

func (o *Output) WriteGrid(index int, cells []int16) error {
	if len(cells) != o.ny*o.nx {
		return fmt.Errorf("%w: grid has %d cells, want %dx%d", common.ErrInputFormat, len(cells), o.ny, o.nx)
	}

	w := o.cdf.Writer(schema.GDDVariable, []int{index, 0, 0}, []int{index + 1, o.ny, o.nx})
	if _, err := w.Write(cells); err != nil {
		return fmt.Errorf("%w: writing %s record %d: %v", common.ErrIO, schema.GDDVariable, index, err)
	}

	if index+1 > o.records {
		o.records = index + 1
	}
	return nil
}

func (o *Output) Records() int {
	return o.records
}

// Close updates the record count in the header and closes the file.
func (o *Output) Close() error {
	if err := cdf.UpdateNumRecs(o.file); err != nil {
		o.file.Close()
		return fmt.Errorf("%w: updating record count of %s: %v", common.ErrIO, o.path, err)
	}
	if err := o.file.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", common.ErrIO, o.path, err)
	}

	Log.Info().Msgf("Wrote %d records to %s", o.records, o.path)
	return nil
}
