package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeUnits_NARR(t *testing.T) {
	u, err := ParseTimeUnits("hours since 1800-1-1 00:00:0.0")
	require.NoError(t, err)

	assert.Equal(t, time.Hour, u.Step)
	assert.True(t, u.Epoch.Equal(OutputTimeUnits.Epoch))

	// 2012-03-01 00:00 UTC
	assert.True(t, time.Date(2012, 3, 1, 0, 0, 0, 0, time.UTC).Equal(u.Decode(1859784)))
}

func TestParseTimeUnits_Forms(t *testing.T) {
	cases := []struct {
		units string
		value float64
		want  time.Time
	}{
		{"days since 1970-01-01", 1, time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"seconds since 1970-01-01T00:00:00Z", 90, time.Date(1970, 1, 1, 0, 1, 30, 0, time.UTC)},
		{"minutes since 2000-06-15 12:00", 30, time.Date(2000, 6, 15, 12, 30, 0, 0, time.UTC)},
		{"hours since 2000-01-01 00:00:00 UTC", 6, time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC)},
		{"hours since 2000-01-01 06:00:00 +06:00", 0, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"Days Since 1900-01-01", 0.5, time.Date(1900, 1, 1, 12, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.units, func(t *testing.T) {
			u, err := ParseTimeUnits(tc.units)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(u.Decode(tc.value)), "got %s", u.Decode(tc.value))
		})
	}
}

func TestParseTimeUnits_Invalid(t *testing.T) {
	for _, s := range []string{"", "hours", "hours after 1800-01-01", "fortnights since 1800-01-01", "hours since 1800/01/01", "hours since 1800-01-01 aa:00"} {
		_, err := ParseTimeUnits(s)
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, ErrInputFormat), s)
	}
}

func TestTimeUnits_EncodeRoundTrip(t *testing.T) {
	ts := time.Date(2012, 7, 4, 0, 0, 0, 0, time.UTC)
	v := OutputTimeUnits.Encode(ts)

	assert.Equal(t, 1862784.0, v)
	assert.True(t, ts.Equal(OutputTimeUnits.Decode(v)))
}

func TestCheckCalendar(t *testing.T) {
	assert.NoError(t, CheckCalendar(""))
	assert.NoError(t, CheckCalendar("Gregorian"))
	assert.NoError(t, CheckCalendar("proleptic_gregorian"))

	err := CheckCalendar("noleap")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInputFormat))
}
