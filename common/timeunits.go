package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// OutputTimeUnitsString is the units attribute of every time axis we write.
const OutputTimeUnitsString = "hours since 1800-1-1 00:00:0.0"

var OutputTimeUnits = TimeUnits{
	Step:  time.Hour,
	Epoch: time.Date(1800, 1, 1, 0, 0, 0, 0, time.UTC),
}

var timeSteps map[string]time.Duration = map[string]time.Duration{
	"seconds": time.Second,
	"second":  time.Second,
	"secs":    time.Second,
	"sec":     time.Second,
	"s":       time.Second,
	"minutes": time.Minute,
	"minute":  time.Minute,
	"mins":    time.Minute,
	"min":     time.Minute,
	"hours":   time.Hour,
	"hour":    time.Hour,
	"hrs":     time.Hour,
	"hr":      time.Hour,
	"h":       time.Hour,
	"days":    24 * time.Hour,
	"day":     24 * time.Hour,
	"d":       24 * time.Hour,
}

var supportedCalendars map[string]struct{} = map[string]struct{}{
	"":                    {},
	"standard":            {},
	"gregorian":           {},
	"proleptic_gregorian": {},
}

// TimeUnits is a decoded CF "<step> since <epoch>" units string.
type TimeUnits struct {
	Step  time.Duration
	Epoch time.Time
}

// ParseTimeUnits decodes strings like "hours since 1800-1-1 00:00:0.0".
func ParseTimeUnits(s string) (TimeUnits, error) {
	parts := strings.Fields(s)
	if len(parts) < 3 || !strings.EqualFold(parts[1], "since") {
		return TimeUnits{}, fmt.Errorf("%w: time units %q are not of the form '<unit> since <date>'", ErrInputFormat, s)
	}

	step, ok := timeSteps[strings.ToLower(parts[0])]
	if !ok {
		return TimeUnits{}, fmt.Errorf("%w: unsupported time step %q", ErrInputFormat, parts[0])
	}

	epoch, err := parseReferenceTime(parts[2:])
	if err != nil {
		return TimeUnits{}, fmt.Errorf("%w: time units %q: %v", ErrInputFormat, s, err)
	}

	return TimeUnits{Step: step, Epoch: epoch}, nil
}

// CheckCalendar rejects calendars that do not map onto time.Time.
func CheckCalendar(calendar string) error {
	if _, ok := supportedCalendars[strings.ToLower(calendar)]; !ok {
		return fmt.Errorf("%w: unsupported calendar %q", ErrInputFormat, calendar)
	}
	return nil
}

func parseReferenceTime(fields []string) (time.Time, error) {
	if date, clock, ok := strings.Cut(fields[0], "T"); ok {
		fields = append([]string{date, strings.TrimSuffix(clock, "Z")}, fields[1:]...)
	}
	if len(fields) > 1 {
		fields[1] = strings.TrimSuffix(fields[1], "Z")
	}

	dateParts := strings.Split(fields[0], "-")
	if len(dateParts) != 3 {
		return time.Time{}, fmt.Errorf("bad reference date %q", fields[0])
	}
	var ymd [3]int
	for i, p := range dateParts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad reference date %q", fields[0])
		}
		ymd[i] = n
	}

	var hour, minute int
	var seconds float64
	if len(fields) > 1 {
		clock := strings.Split(fields[1], ":")
		if len(clock) > 3 {
			return time.Time{}, fmt.Errorf("bad reference time %q", fields[1])
		}
		var err error
		if hour, err = strconv.Atoi(clock[0]); err != nil {
			return time.Time{}, fmt.Errorf("bad reference time %q", fields[1])
		}
		if len(clock) > 1 {
			if minute, err = strconv.Atoi(clock[1]); err != nil {
				return time.Time{}, fmt.Errorf("bad reference time %q", fields[1])
			}
		}
		if len(clock) > 2 {
			if seconds, err = strconv.ParseFloat(clock[2], 64); err != nil {
				return time.Time{}, fmt.Errorf("bad reference time %q", fields[1])
			}
		}
	}

	var offset time.Duration
	if len(fields) > 2 {
		var err error
		if offset, err = parseZoneOffset(fields[2]); err != nil {
			return time.Time{}, err
		}
	}

	whole, frac := math.Modf(seconds)
	t := time.Date(ymd[0], time.Month(ymd[1]), ymd[2], hour, minute, int(whole), int(frac*1e9), time.UTC)
	return t.Add(-offset), nil
}

func parseZoneOffset(z string) (time.Duration, error) {
	switch strings.ToUpper(z) {
	case "UTC", "GMT", "Z":
		return 0, nil
	}

	sign := time.Duration(1)
	switch z[0] {
	case '-':
		sign = -1
		z = z[1:]
	case '+':
		z = z[1:]
	}

	hm := strings.Split(z, ":")
	if len(hm) == 1 && len(z) == 4 {
		hm = []string{z[:2], z[2:]}
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil {
		return 0, fmt.Errorf("bad zone offset %q", z)
	}
	var m int
	if len(hm) > 1 {
		if m, err = strconv.Atoi(hm[1]); err != nil {
			return 0, fmt.Errorf("bad zone offset %q", z)
		}
	}
	return sign * (time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

// Decode converts an axis value into a UTC timestamp.
func (u TimeUnits) Decode(value float64) time.Time {
	secs := value * u.Step.Seconds()
	whole, frac := math.Modf(secs)
	return time.Unix(u.Epoch.Unix()+int64(whole), int64(u.Epoch.Nanosecond())+int64(math.Round(frac*1e9))).UTC()
}

// Encode converts a timestamp into an axis value.
func (u TimeUnits) Encode(t time.Time) float64 {
	secs := float64(t.Unix()-u.Epoch.Unix()) + float64(t.Nanosecond()-u.Epoch.Nanosecond())/1e9
	return secs / u.Step.Seconds()
}
