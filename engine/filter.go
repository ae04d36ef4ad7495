package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hstin/gdd/common"
)

// TimestepFilter decides whether a timestep is emitted.
type TimestepFilter interface {
	Includes(t time.Time) bool
}

// SeasonFilter keeps timesteps whose UTC month lies in [First, Last]. A
// season with First after Last wraps over the new year.
type SeasonFilter struct {
	First time.Month
	Last  time.Month
}

// GrowingSeason is March through September.
var GrowingSeason = SeasonFilter{First: time.March, Last: time.September}

func (s SeasonFilter) Includes(t time.Time) bool {
	m := t.UTC().Month()
	if s.First <= s.Last {
		return m >= s.First && m <= s.Last
	}
	return m >= s.First || m <= s.Last
}

func (s SeasonFilter) String() string {
	return fmt.Sprintf("%s-%s", s.First.String()[:3], s.Last.String()[:3])
}

var monthNames map[string]time.Month = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseSeason reads "3-9", "mar-sep" or "all". For "all" the returned filter
// is nil, which keeps every timestep.
func ParseSeason(s string) (TimestepFilter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "all" {
		return nil, nil
	}

	first, last, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("%w: season %q is not of the form <month>-<month>", common.ErrConfiguration, s)
	}

	from, err := parseMonth(first)
	if err != nil {
		return nil, err
	}
	to, err := parseMonth(last)
	if err != nil {
		return nil, err
	}

	return SeasonFilter{First: from, Last: to}, nil
}

func parseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("%w: month %d out of range", common.ErrConfiguration, n)
		}
		return time.Month(n), nil
	}
	if len(s) >= 3 {
		if m, ok := monthNames[s[:3]]; ok {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown month %q", common.ErrConfiguration, s)
}
