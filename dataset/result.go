package dataset

import (
	"fmt"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"

	"hstin/gdd/common"
	"hstin/gdd/schema"
)

// Result is a fully loaded gdd output file.
type Result struct {
	NY, NX   int
	Units    string
	Times    []time.Time
	Lat, Lon []float64
	// Cells holds every record, row major, NY*NX cells per record.
	Cells []int16
}

func ReadResult(path string) (*Result, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", common.ErrIO, path, err)
	}
	defer nc.Close()

	in := &Input{nc: nc}
	if err := in.loadTime(schema.TimeVariable); err != nil {
		return nil, err
	}

	r := &Result{Times: in.times}

	if in.Y, _, err = in.axis("y"); err != nil {
		return nil, err
	}
	if in.X, _, err = in.axis("x"); err != nil {
		return nil, err
	}
	in.ny, in.nx = len(in.Y), len(in.X)
	r.NY, r.NX = in.ny, in.nx

	if r.Lat, err = in.coordinates("lat"); err != nil {
		return nil, err
	}
	if r.Lon, err = in.coordinates("lon"); err != nil {
		return nil, err
	}

	vg, err := nc.GetVarGetter(schema.GDDVariable)
	if err != nil {
		return nil, fmt.Errorf("%w: no %s variable: %v", common.ErrInputFormat, schema.GDDVariable, err)
	}
	r.Units, _ = attrString(vg.Attributes(), "units")

	raw, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", common.ErrIO, schema.GDDVariable, err)
	}
	switch v := raw.(type) {
	case [][][]int16:
		r.Cells = make([]int16, 0, len(v)*r.NY*r.NX)
		for _, plane := range v {
			for _, row := range plane {
				r.Cells = append(r.Cells, row...)
			}
		}
	default:
		values, err := flatten(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", common.ErrInputFormat, schema.GDDVariable, err)
		}
		r.Cells = make([]int16, len(values))
		for i, x := range values {
			r.Cells[i] = int16(x)
		}
	}

	if len(r.Cells) != len(r.Times)*r.NY*r.NX {
		return nil, fmt.Errorf("%w: %s has %d cells for %d records of %dx%d", common.ErrInputFormat, schema.GDDVariable, len(r.Cells), len(r.Times), r.NY, r.NX)
	}
	return r, nil
}

// Series is the gdd value of cell (y, x) at every record.
func (r *Result) Series(y, x int) []int16 {
	out := make([]int16, len(r.Times))
	cell := y*r.NX + x
	for t := range out {
		out[t] = r.Cells[t*r.NY*r.NX+cell]
	}
	return out
}
