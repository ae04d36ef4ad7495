package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"hstin/gdd/common"
	. "hstin/gdd/helper"
)

// Sentinel is stored for cells whose running value is not finite.
const Sentinel int16 = -99

// Source is a time series of temperature grids.
type Source interface {
	Shape() (ny, nx int)
	Steps() int
	Timestamp(t int) (time.Time, error)
	// ReadTemperature fills dst (ny*nx, row major) with the samples of step t
	// in native units.
	ReadTemperature(t int, dst []float64) error
}

// Sink receives one time value and one grid per retained timestep.
type Sink interface {
	WriteTime(index int, value float64) error
	WriteGrid(index int, cells []int16) error
}

type State int

const (
	NotStarted State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var ErrAlreadyRun = errors.New("engine has already run")

type Options struct {
	Transfer TransferFunction
	// Convert maps native sample units to the working unit. nil means the
	// samples are already in the working unit.
	Convert common.Converter
	// Filter is optional; nil keeps every timestep.
	Filter TimestepFilter
	// ResetYearly zeroes the running total at the first retained step of
	// each calendar year.
	ResetYearly bool
	Workers     int
	Clock       clockwork.Clock
	// OnStep is called after every emitted grid. Cells is only valid for the
	// duration of the call.
	OnStep func(StepInfo)
}

type StepInfo struct {
	Input     int
	Output    int
	Time      time.Time
	Cells     []int16
	Sentinels int
	Duration  time.Duration
}

type Result struct {
	Retained      int
	Skipped       int
	SentinelCells int
	Duration      time.Duration
}

type Engine struct {
	opts  Options
	state State
}

func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{opts: opts}
}

func (e *Engine) State() State {
	return e.state
}

// Run folds every timestep of src into a running total and emits the
// retained steps to sink. An engine runs once.
func (e *Engine) Run(src Source, sink Sink) (Result, error) {
	if e.state != NotStarted {
		return Result{}, ErrAlreadyRun
	}
	if e.opts.Transfer == nil {
		return Result{}, fmt.Errorf("%w: no transfer function", common.ErrConfiguration)
	}
	e.state = Running
	defer func() { e.state = Finished }()

	ny, nx := src.Shape()
	acc := NewAccumulator(ny, nx, e.opts.Transfer, e.opts.Convert, e.opts.Workers)
	temps := make([]float64, ny*nx)

	var res Result
	start := e.opts.Clock.Now()
	lastYear := 0

	for t := 0; t < src.Steps(); t++ {
		stepStart := e.opts.Clock.Now()

		ts, err := src.Timestamp(t)
		if err != nil {
			return res, fmt.Errorf("timestep %d: %w", t, err)
		}
		if e.opts.Filter != nil && !e.opts.Filter.Includes(ts) {
			res.Skipped++
			continue
		}

		year := ts.UTC().Year()
		if e.opts.ResetYearly && res.Retained > 0 && year != lastYear {
			Log.Debug().Msgf("Resetting running total at %s", ts.UTC().Format(time.DateOnly))
			acc.Reset()
		}
		lastYear = year

		out := res.Retained
		if err := sink.WriteTime(out, common.OutputTimeUnits.Encode(ts)); err != nil {
			return res, fmt.Errorf("timestep %d: %w", t, err)
		}

		if err := src.ReadTemperature(t, temps); err != nil {
			return res, fmt.Errorf("timestep %d: %w", t, err)
		}

		cells, sentinels := acc.Step(temps)
		if err := sink.WriteGrid(out, cells); err != nil {
			return res, fmt.Errorf("timestep %d: %w", t, err)
		}

		res.Retained++
		res.SentinelCells += sentinels

		elapsed := e.opts.Clock.Since(stepStart)
		Log.Debug().Msgf("Step %d -> %d (%s) written in %s, %d sentinel cells", t, out, ts.UTC().Format(time.DateOnly), elapsed, sentinels)

		if e.opts.OnStep != nil {
			e.opts.OnStep(StepInfo{
				Input:     t,
				Output:    out,
				Time:      ts,
				Cells:     cells,
				Sentinels: sentinels,
				Duration:  elapsed,
			})
		}
	}

	res.Duration = e.opts.Clock.Since(start)
	return res, nil
}

// Accumulator holds the running total grid. Step folds one sample grid into
// a fresh destination buffer and then makes it the running total, so the
// previous total is never read and written in the same pass.
type Accumulator struct {
	transfer TransferFunction
	convert  common.Converter
	workers  int
	ny, nx   int

	total []int16
	spare []int16
}

func NewAccumulator(ny, nx int, transfer TransferFunction, convert common.Converter, workers int) *Accumulator {
	if workers < 1 {
		workers = 1
	}
	return &Accumulator{
		transfer: transfer,
		convert:  convert,
		workers:  workers,
		ny:       ny,
		nx:       nx,
		total:    make([]int16, ny*nx),
		spare:    make([]int16, ny*nx),
	}
}

// Total is the current running total. It is overwritten by the next Step.
func (a *Accumulator) Total() []int16 {
	return a.total
}

func (a *Accumulator) Reset() {
	clear(a.total)
}

// Step applies one timestep and returns the new total along with the number
// of cells that were stored as Sentinel.
func (a *Accumulator) Step(temps []float64) ([]int16, int) {
	prev, next := a.total, a.spare

	var sentinels int
	if a.workers == 1 || a.ny < 2 {
		sentinels = a.fold(prev, next, temps, 0, len(next))
	} else {
		band := (a.ny + a.workers - 1) / a.workers
		counts := make([]int, a.workers)

		var wg sync.WaitGroup
		for w := 0; w < a.workers; w++ {
			lo := w * band
			hi := min(lo+band, a.ny)
			if lo >= hi {
				break
			}
			wg.Add(1)
			go func(w, lo, hi int) {
				defer wg.Done()
				counts[w] = a.fold(prev, next, temps, lo*a.nx, hi*a.nx)
			}(w, lo, hi)
		}
		wg.Wait()

		for _, c := range counts {
			sentinels += c
		}
	}

	a.total, a.spare = next, prev
	return a.total, sentinels
}

func (a *Accumulator) fold(prev, next []int16, temps []float64, lo, hi int) int {
	sentinels := 0
	for i := lo; i < hi; i++ {
		temp := temps[i]
		if a.convert != nil {
			temp = a.convert(temp)
		}
		v, ok := accumulate(prev[i], a.transfer.Contribution(temp))
		if !ok {
			sentinels++
		}
		next[i] = v
	}
	return sentinels
}

// accumulate adds a contribution to a stored total and rounds half up. ok is
// false when the sum is not finite and Sentinel was stored instead.
func accumulate(prev int16, contribution float64) (int16, bool) {
	v := float64(prev) + contribution
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Sentinel, false
	}

	r := math.Floor(v + 0.5)
	switch {
	case r > math.MaxInt16:
		return math.MaxInt16, true
	case r < math.MinInt16:
		return math.MinInt16, true
	}
	return int16(r), true
}
