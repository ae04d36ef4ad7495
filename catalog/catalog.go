package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"

	"hstin/gdd/common"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	input       TEXT NOT NULL,
	output      TEXT NOT NULL,
	transfer    TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	retained    INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS steps (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	step       INTEGER NOT NULL,
	begin_date TIMESTAMP NOT NULL,
	end_date   TIMESTAMP NOT NULL,
	min        REAL,
	mean       REAL,
	max        REAL,
	valid      INTEGER NOT NULL,
	PRIMARY KEY (run_id, step)
);
`

// StepLength is the period one daily grid covers.
const StepLength = 24 * time.Hour

// Catalog records runs and the period and statistics of every grid they
// emit, in a SQLite database.
type Catalog struct {
	db    *sql.DB
	clock clockwork.Clock
}

func Open(path string, clock clockwork.Clock) (*Catalog, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening catalog: %v", common.ErrIO, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: opening catalog: %v", common.ErrIO, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating catalog tables: %v", common.ErrIO, err)
	}

	return &Catalog{db: db, clock: clock}, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

type Run struct {
	ID         string
	Input      string
	Output     string
	Transfer   string
	StartedAt  time.Time
	FinishedAt time.Time
	Retained   int
	Skipped    int
	Error      string
}

type Step struct {
	Index int
	Begin time.Time
	End   time.Time
	Stats Stats
}

// Stats summarize the cells of one grid that are not the fill value.
type Stats struct {
	Min   float64
	Mean  float64
	Max   float64
	Valid int
}

func Summarize(cells []int16, fill int16) Stats {
	values := make([]float64, 0, len(cells))
	for _, c := range cells {
		if c != fill {
			values = append(values, float64(c))
		}
	}
	if len(values) == 0 {
		return Stats{}
	}
	return Stats{
		Min:   floats.Min(values),
		Mean:  stat.Mean(values, nil),
		Max:   floats.Max(values),
		Valid: len(values),
	}
}

func (c *Catalog) StartRun(input, output, transfer string) (string, error) {
	id := uuid.NewString()
	_, err := c.db.Exec(`INSERT INTO runs (id, input, output, transfer, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, input, output, transfer, c.clock.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("%w: recording run: %v", common.ErrIO, err)
	}
	return id, nil
}

// RecordStep stores one emitted grid, covering one StepLength from begin.
func (c *Catalog) RecordStep(runID string, index int, begin time.Time, stats Stats) error {
	var minV, meanV, maxV any
	if stats.Valid > 0 {
		minV, meanV, maxV = stats.Min, stats.Mean, stats.Max
	}
	_, err := c.db.Exec(`INSERT INTO steps (run_id, step, begin_date, end_date, min, mean, max, valid) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, index, begin.UTC(), begin.UTC().Add(StepLength), minV, meanV, maxV, stats.Valid)
	if err != nil {
		return fmt.Errorf("%w: recording step %d: %v", common.ErrIO, index, err)
	}
	return nil
}

func (c *Catalog) FinishRun(runID string, retained, skipped int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := c.db.Exec(`UPDATE runs SET finished_at = ?, retained = ?, skipped = ?, error = ? WHERE id = ?`,
		c.clock.Now().UTC(), retained, skipped, msg, runID)
	if err != nil {
		return fmt.Errorf("%w: finishing run: %v", common.ErrIO, err)
	}
	return nil
}

func (c *Catalog) Runs() ([]Run, error) {
	rows, err := c.db.Query(`SELECT id, input, output, transfer, started_at, finished_at, retained, skipped, error FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying runs: %v", common.ErrIO, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Input, &r.Output, &r.Transfer, &r.StartedAt, &finished, &r.Retained, &r.Skipped, &r.Error); err != nil {
			return nil, fmt.Errorf("%w: reading run: %v", common.ErrIO, err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (c *Catalog) Steps(runID string) ([]Step, error) {
	rows, err := c.db.Query(`SELECT step, begin_date, end_date, min, mean, max, valid FROM steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying steps: %v", common.ErrIO, err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var s Step
		var minV, meanV, maxV sql.NullFloat64
		if err := rows.Scan(&s.Index, &s.Begin, &s.End, &minV, &meanV, &maxV, &s.Stats.Valid); err != nil {
			return nil, fmt.Errorf("%w: reading step: %v", common.ErrIO, err)
		}
		s.Stats.Min, s.Stats.Mean, s.Stats.Max = minV.Float64, meanV.Float64, maxV.Float64
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
