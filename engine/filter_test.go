package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstin/gdd/common"
)

func TestGrowingSeasonMonths(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		ts := time.Date(2012, m, 15, 12, 0, 0, 0, time.UTC)
		want := m >= time.March && m <= time.September
		assert.Equal(t, want, GrowingSeason.Includes(ts), m.String())
	}
}

func TestSeasonUsesUTC(t *testing.T) {
	// 1 March 00:30 in UTC+2 is still February in UTC
	zone := time.FixedZone("EET", 2*60*60)
	ts := time.Date(2012, 3, 1, 0, 30, 0, 0, zone)
	assert.False(t, GrowingSeason.Includes(ts))
	assert.True(t, GrowingSeason.Includes(ts.Add(2*time.Hour)))
}

func TestSeasonWrapsNewYear(t *testing.T) {
	winter := SeasonFilter{First: time.November, Last: time.February}
	assert.True(t, winter.Includes(time.Date(2012, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, winter.Includes(time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, winter.Includes(time.Date(2012, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseSeason(t *testing.T) {
	f, err := ParseSeason("3-9")
	require.NoError(t, err)
	assert.Equal(t, GrowingSeason, f)

	f, err = ParseSeason("Nov-feb")
	require.NoError(t, err)
	assert.Equal(t, SeasonFilter{First: time.November, Last: time.February}, f)

	f, err = ParseSeason("all")
	require.NoError(t, err)
	assert.Nil(t, f)

	for _, bad := range []string{"", "3", "0-9", "3-13", "mar-smarch"} {
		_, err := ParseSeason(bad)
		assert.ErrorIs(t, err, common.ErrConfiguration, bad)
	}
}

func TestThresholdContribution(t *testing.T) {
	th := Threshold{Value: 283.15}
	assert.InDelta(t, 6.85, th.Contribution(290), 1e-9)
	assert.Equal(t, 0.0, th.Contribution(250))
	assert.True(t, math.IsNaN(th.Contribution(math.NaN())))
}

func TestRangeContribution(t *testing.T) {
	r := Range{Min: 10, Max: 30, Unit: "degC"}
	assert.Equal(t, 0.0, r.Contribution(5))
	assert.Equal(t, 5.0, r.Contribution(15))
	assert.Equal(t, 20.0, r.Contribution(30))
	assert.Equal(t, 20.0, r.Contribution(55))
	assert.True(t, math.IsNaN(r.Contribution(math.NaN())))
}
