package common

import (
	"fmt"
	"strings"

	"github.com/martinlindhe/unit"
)

type TemperatureScale int

const (
	KELVIN TemperatureScale = iota
	CELSIUS
	FAHRENHEIT
	RANKINE
)

// Converter maps a value in one temperature unit to another.
type Converter func(value float64) float64

type ScaleOptions struct {
	Symbol string
	From   func(float64) unit.Temperature
	To     func(unit.Temperature) float64
}

var Scales map[TemperatureScale]ScaleOptions = map[TemperatureScale]ScaleOptions{
	KELVIN:     {Symbol: "K", From: unit.FromKelvin, To: unit.Temperature.Kelvin},
	CELSIUS:    {Symbol: "degC", From: unit.FromCelsius, To: unit.Temperature.Celsius},
	FAHRENHEIT: {Symbol: "degF", From: unit.FromFahrenheit, To: unit.Temperature.Fahrenheit},
	RANKINE:    {Symbol: "degR", From: unit.FromRankine, To: unit.Temperature.Rankine},
}

var temperatureUnits map[string]TemperatureScale = map[string]TemperatureScale{
	"k":                  KELVIN,
	"kelvin":             KELVIN,
	"kelvins":            KELVIN,
	"degk":               KELVIN,
	"deg_k":              KELVIN,
	"degree_k":           KELVIN,
	"degrees_k":          KELVIN,
	"degree_kelvin":      KELVIN,
	"degrees_kelvin":     KELVIN,
	"c":                  CELSIUS,
	"°c":                 CELSIUS,
	"degc":               CELSIUS,
	"deg_c":              CELSIUS,
	"degree_c":           CELSIUS,
	"degrees_c":          CELSIUS,
	"celsius":            CELSIUS,
	"degree_celsius":     CELSIUS,
	"degrees_celsius":    CELSIUS,
	"f":                  FAHRENHEIT,
	"°f":                 FAHRENHEIT,
	"degf":               FAHRENHEIT,
	"deg_f":              FAHRENHEIT,
	"degree_f":           FAHRENHEIT,
	"degrees_f":          FAHRENHEIT,
	"fahrenheit":         FAHRENHEIT,
	"degree_fahrenheit":  FAHRENHEIT,
	"degrees_fahrenheit": FAHRENHEIT,
	"r":                  RANKINE,
	"°r":                 RANKINE,
	"degr":               RANKINE,
	"deg_r":              RANKINE,
	"rankine":            RANKINE,
	"degree_rankine":     RANKINE,
	"degrees_rankine":    RANKINE,
}

// units of other physical dimensions that show up in weather model output
var otherUnits map[string]string = map[string]string{
	"%":       "fraction",
	"1":       "fraction",
	"j/kg":    "specific energy",
	"m/s":     "velocity",
	"m s-1":   "velocity",
	"pa":      "pressure",
	"hpa":     "pressure",
	"m":       "length",
	"km":      "length",
	"kg m^-2": "areal density",
	"kg/m^2":  "areal density",
}

func normalizeUnit(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.ReplaceAll(u, " ", "_")
	return u
}

// ParseTemperatureUnit resolves a UDUNITS style temperature unit string.
func ParseTemperatureUnit(u string) (TemperatureScale, error) {
	key := normalizeUnit(u)
	if scale, ok := temperatureUnits[key]; ok {
		return scale, nil
	}
	if dim, ok := otherUnits[strings.ReplaceAll(key, "_", " ")]; ok {
		return 0, fmt.Errorf("%w: unit %q measures %s, not temperature", ErrConfiguration, u, dim)
	}
	return 0, fmt.Errorf("%w: unknown temperature unit %q", ErrConfiguration, u)
}

// BuildConverter returns a function converting values in source units to target units.
func BuildConverter(source, target string) (Converter, error) {
	from, err := ParseTemperatureUnit(source)
	if err != nil {
		return nil, fmt.Errorf("source unit: %w", err)
	}

	to, err := ParseTemperatureUnit(target)
	if err != nil {
		return nil, fmt.Errorf("target unit: %w", err)
	}

	if from == to {
		return func(value float64) float64 { return value }, nil
	}

	fromScale := Scales[from].From
	toScale := Scales[to].To

	return func(value float64) float64 {
		return toScale(fromScale(value))
	}, nil
}
