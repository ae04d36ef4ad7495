package schema

import "fmt"

type DataType int

const (
	SHORT DataType = iota
	INT
	FLOAT
	DOUBLE
)

func (t DataType) String() string {
	switch t {
	case SHORT:
		return "short"
	case INT:
		return "int"
	case FLOAT:
		return "float"
	case DOUBLE:
		return "double"
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// Attribute values are string, []int16, []int32, []float32 or []float64.
type Attribute struct {
	Name  string
	Value any
}

// Dimension with Length 0 is the unlimited record dimension.
type Dimension struct {
	Name   string
	Length int
}

type Variable struct {
	Name       string
	Type       DataType
	Dimensions []string
	Attributes []Attribute
}

type Schema struct {
	Dimensions []Dimension
	Global     []Attribute
	Variables  []Variable
}

const (
	GDDVariable       = "gdd"
	TimeVariable      = "time"
	TimeBoundsVar     = "time_bnds"
	ProjectionVar     = "Lambert_Conformal"
	FillValue   int16 = -99
)

// TimeBoundsFill is the NetCDF default fill for doubles, written to the
// declared but unpopulated time_bnds variable.
const TimeBoundsFill = 9.969209968386869e36

type Options struct {
	NY int
	NX int
	// TemperatureUnit is the working unit; the gdd units become "<unit>*d".
	TemperatureUnit string
	// ProjectionUnits are the units of the x/y projection coordinates.
	ProjectionUnits string
}

func New(opts Options) Schema {
	projUnits := opts.ProjectionUnits
	if projUnits == "" {
		projUnits = "m"
	}

	return Schema{
		Dimensions: []Dimension{
			{Name: "time", Length: 0},
			{Name: "y", Length: opts.NY},
			{Name: "x", Length: opts.NX},
			{Name: "nbnds", Length: 2},
		},
		Global: []Attribute{
			{"Conventions", "CF-1.0"},
			{"centerlon", []float32{-107.0}},
			{"history", "created by National Geographic Education Programs"},
			{"institution", "National Geographic Society"},
			{"latcorners", []float32{1.0, 0.897945, 46.3544, 46.63433}},
			{"loncorners", []float32{-145.5, -68.32005, -2.569891, 148.6418}},
			{"platform", "Model"},
			{"references", ""},
			{"standardpar1", []float32{50.0}},
			{"standardpar2", []float32{50.000001}},
			{"stream", "s4"},
			{"title", "Daily NARR"},
		},
		Variables: []Variable{
			{
				Name:       TimeVariable,
				Type:       DOUBLE,
				Dimensions: []string{"time"},
				Attributes: []Attribute{
					{"avg_period", "0000-00-01 00:00:00"},
					{"units", "hours since 1800-1-1 00:00:0.0"},
					{"axis", "T"},
					{"coordinate_defines", "start"},
					{"delta_t", "0000-00-01 00:00:00"},
					{"long_name", "analysis time"},
					{"standard_name", "time"},
				},
			},
			{
				Name:       "lat",
				Type:       FLOAT,
				Dimensions: []string{"y", "x"},
				Attributes: []Attribute{
					{"axis", "Y"},
					{"coordinate_defines", "point"},
					{"long_name", "latitude coordinate"},
					{"standard_name", "latitude"},
					{"units", "degrees_north"},
				},
			},
			{
				Name:       "lon",
				Type:       FLOAT,
				Dimensions: []string{"y", "x"},
				Attributes: []Attribute{
					{"axis", "X"},
					{"coordinate_defines", "point"},
					{"long_name", "longitude coordinate"},
					{"standard_name", "longitude"},
					{"units", "degrees_east"},
				},
			},
			{
				Name:       "y",
				Type:       FLOAT,
				Dimensions: []string{"y"},
				Attributes: []Attribute{
					{"long_name", "northward distance from southwest corner of domain in projection coordinates"},
					{"standard_name", "projection_y_coordinate"},
					{"units", projUnits},
				},
			},
			{
				Name:       "x",
				Type:       FLOAT,
				Dimensions: []string{"x"},
				Attributes: []Attribute{
					{"long_name", "eastward distance from southwest corner of domain in projection coordinates"},
					{"standard_name", "projection_x_coordinate"},
					{"units", projUnits},
				},
			},
			{
				Name:       ProjectionVar,
				Type:       INT,
				Dimensions: []string{},
				Attributes: []Attribute{
					{"false_easting", []float64{5632642.22547}},
					{"false_northing", []float64{4612545.65137}},
					{"grid_mapping_name", "lambert_conformal_conic"},
					{"latitude_of_projection_origin", []float64{50.0}},
					{"longitude_of_central_meridian", []float64{-107.0}},
					{"standard_parallel", []float64{50.0, 50.0}},
				},
			},
			{
				Name:       TimeBoundsVar,
				Type:       DOUBLE,
				Dimensions: []string{"time", "nbnds"},
				Attributes: []Attribute{
					{"long_name", "Time Boundaries"},
				},
			},
			{
				Name:       GDDVariable,
				Type:       SHORT,
				Dimensions: []string{"time", "y", "x"},
				Attributes: []Attribute{
					{"cell_methods", "time: mean (of each 3-hourly interval) mean (of 8 3-hourly means)"},
					{"_FillValue", []int16{FillValue}},
					{"missing_value", []int16{FillValue}},
					{"coordinates", "lat lon"},
					{"dataset", "NARR Daily Averages"},
					{"grid_mapping", ProjectionVar},
					{"level_desc", "2 m"},
					{"long_name", "Growing Degree Days"},
					{"parent_stat", "Individual Obs"},
					{"statistic", "Mean"},
					{"units", opts.TemperatureUnit + "*d"},
					{"var_desc", "Growing degree days"},
				},
			},
		},
	}
}

func (s Schema) Dimension(name string) (Dimension, bool) {
	for _, d := range s.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

func (s Schema) Variable(name string) (Variable, bool) {
	for _, v := range s.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

func (v Variable) Attribute(name string) (any, bool) {
	for _, a := range v.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}
