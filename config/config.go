package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hstin/gdd/common"
	"hstin/gdd/engine"
)

// DefaultThreshold is used when neither a threshold nor a range is given.
const DefaultThreshold = 283.15

// Config is a run description, read from a YAML run file and/or flags.
type Config struct {
	Threshold   *float64 `yaml:"threshold"`
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
	Units       string   `yaml:"units"`
	Season      string   `yaml:"season"`
	ResetYearly bool     `yaml:"reset_yearly"`
	Variable    string   `yaml:"variable"`
	Workers     int      `yaml:"workers"`
	Catalog     string   `yaml:"catalog"`
	MetricsFile string   `yaml:"metrics_file"`
}

func Load(path string) (Config, error) {
	var c Config

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("%w: reading run file: %v", common.ErrConfiguration, err)
	}

	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("%w: parsing run file %s: %v", common.ErrConfiguration, path, err)
	}
	return c, nil
}

// Run is a validated configuration.
type Run struct {
	Transfer engine.TransferFunction
	// WorkingUnit is the unit samples are converted to before the transfer
	// function. Empty means the input's own units are used unchanged.
	WorkingUnit string
	Filter      engine.TimestepFilter
	ResetYearly bool
	Variable    string
	Workers     int
}

// Build validates c and selects the transfer form. Threshold and range
// parameters are mutually exclusive; with neither, DefaultThreshold applies.
func (c Config) Build() (Run, error) {
	r := Run{
		ResetYearly: c.ResetYearly,
		Variable:    c.Variable,
		Workers:     c.Workers,
	}

	if c.Workers < 0 {
		return r, fmt.Errorf("%w: workers must not be negative", common.ErrConfiguration)
	}
	if r.Workers == 0 {
		r.Workers = 1
	}

	isRange := c.Min != nil || c.Max != nil || c.Units != ""

	switch {
	case c.Threshold != nil && isRange:
		return r, fmt.Errorf("%w: threshold and min/max/units are mutually exclusive", common.ErrConfiguration)

	case isRange:
		if c.Min == nil || c.Max == nil || c.Units == "" {
			return r, fmt.Errorf("%w: the range form needs min, max and units", common.ErrConfiguration)
		}
		if *c.Min > *c.Max {
			return r, fmt.Errorf("%w: min %g is above max %g", common.ErrConfiguration, *c.Min, *c.Max)
		}
		if _, err := common.ParseTemperatureUnit(c.Units); err != nil {
			return r, err
		}
		r.Transfer = engine.Range{Min: *c.Min, Max: *c.Max, Unit: c.Units}
		r.WorkingUnit = c.Units

	case c.Threshold != nil:
		r.Transfer = engine.Threshold{Value: *c.Threshold}

	default:
		r.Transfer = engine.Threshold{Value: DefaultThreshold}
	}

	switch {
	case c.Season != "":
		f, err := engine.ParseSeason(c.Season)
		if err != nil {
			return r, err
		}
		r.Filter = f
	case isRange:
		r.Filter = engine.GrowingSeason
	}

	return r, nil
}

// Converter maps the input's native units to the working unit. It is nil
// when no conversion is configured.
func (r Run) Converter(inputUnits string) (common.Converter, error) {
	if r.WorkingUnit == "" {
		return nil, nil
	}
	return common.BuildConverter(inputUnits, r.WorkingUnit)
}

// OutputUnit is the temperature unit the gdd totals are counted in.
func (r Run) OutputUnit(inputUnits string) string {
	if r.WorkingUnit == "" {
		return inputUnits
	}
	return r.WorkingUnit
}
