package catalog

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) (*Catalog, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	c, err := Open(filepath.Join(t.TempDir(), "runs.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, clock
}

func TestSummarize(t *testing.T) {
	s := Summarize([]int16{-99, 10, 20, 30, -99}, -99)
	assert.Equal(t, Stats{Min: 10, Mean: 20, Max: 30, Valid: 3}, s)

	assert.Equal(t, Stats{}, Summarize([]int16{-99, -99}, -99))
}

func TestRunLifecycle(t *testing.T) {
	c, clock := openTest(t)

	id, err := c.StartRun("air.2m.2012.nc", "gdd.nc", "threshold(283.15)")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	day := time.Date(2012, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.RecordStep(id, 0, day, Summarize([]int16{1, 2, 3}, -99)))
	require.NoError(t, c.RecordStep(id, 1, day.Add(StepLength), Summarize([]int16{-99}, -99)))

	clock.Advance(90 * time.Second)
	require.NoError(t, c.FinishRun(id, 2, 60, nil))

	runs, err := c.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "gdd.nc", r.Output)
	assert.Equal(t, "threshold(283.15)", r.Transfer)
	assert.Equal(t, 2, r.Retained)
	assert.Equal(t, 60, r.Skipped)
	assert.Empty(t, r.Error)
	assert.Equal(t, 90*time.Second, r.FinishedAt.Sub(r.StartedAt))

	steps, err := c.Steps(id)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.True(t, steps[0].Begin.Equal(day))
	assert.True(t, steps[0].End.Equal(day.AddDate(0, 0, 1)))
	assert.Equal(t, Stats{Min: 1, Mean: 2, Max: 3, Valid: 3}, steps[0].Stats)
	assert.Equal(t, 0, steps[1].Stats.Valid)
}

func TestFailedRunKeepsError(t *testing.T) {
	c, _ := openTest(t)

	id, err := c.StartRun("in.nc", "out.nc", "range(10..30 degC)")
	require.NoError(t, err)
	require.NoError(t, c.FinishRun(id, 0, 0, errors.New("disk full")))

	runs, err := c.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "disk full", runs[0].Error)
}

func TestDuplicateStepRejected(t *testing.T) {
	c, _ := openTest(t)

	id, err := c.StartRun("in.nc", "out.nc", "threshold(283.15)")
	require.NoError(t, err)
	day := time.Date(2012, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.RecordStep(id, 0, day, Stats{}))
	assert.Error(t, c.RecordStep(id, 0, day, Stats{}))
}
