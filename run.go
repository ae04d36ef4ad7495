package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v2"

	"hstin/gdd/catalog"
	"hstin/gdd/common"
	"hstin/gdd/config"
	"hstin/gdd/dataset"
	"hstin/gdd/engine"
	. "hstin/gdd/helper"
	"hstin/gdd/metrics"
	"hstin/gdd/models/narr"
	"hstin/gdd/schema"
	"hstin/gdd/server"
)

// loadConfig reads the optional run file and lays the explicitly set flags
// over it. A transfer form given on the command line replaces the other form
// from the file.
func loadConfig(cCtx *cli.Context) (config.Config, error) {
	var cfg config.Config

	if path := cCtx.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if cCtx.IsSet("threshold") {
		v := cCtx.Float64("threshold")
		cfg.Threshold = &v
		if !cCtx.IsSet("min") && !cCtx.IsSet("max") && !cCtx.IsSet("units") {
			cfg.Min, cfg.Max, cfg.Units = nil, nil, ""
		}
	}
	if cCtx.IsSet("min") || cCtx.IsSet("max") || cCtx.IsSet("units") {
		if !cCtx.IsSet("threshold") {
			cfg.Threshold = nil
		}
		if cCtx.IsSet("min") {
			v := cCtx.Float64("min")
			cfg.Min = &v
		}
		if cCtx.IsSet("max") {
			v := cCtx.Float64("max")
			cfg.Max = &v
		}
		if cCtx.IsSet("units") {
			cfg.Units = cCtx.String("units")
		}
	}

	if cCtx.IsSet("season") {
		cfg.Season = cCtx.String("season")
	}
	if cCtx.IsSet("reset-yearly") {
		cfg.ResetYearly = cCtx.Bool("reset-yearly")
	}
	if cCtx.IsSet("variable") {
		cfg.Variable = cCtx.String("variable")
	}
	if cCtx.IsSet("workers") {
		cfg.Workers = cCtx.Int("workers")
	}
	if cCtx.IsSet("catalog") {
		cfg.Catalog = cCtx.String("catalog")
	}
	if cCtx.IsSet("metrics-file") {
		cfg.MetricsFile = cCtx.String("metrics-file")
	}

	return cfg, nil
}

func runAction(cCtx *cli.Context) error {
	if cCtx.NArg() != 2 {
		return fmt.Errorf("%w: expected <output> <input>, got %d arguments", common.ErrConfiguration, cCtx.NArg())
	}

	cfg, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	if err := runGDD(cfg, cCtx.Args().Get(0), cCtx.Args().Get(1), clockwork.NewRealClock()); err != nil {
		return err
	}

	fmt.Fprintln(cCtx.App.Writer, "done")
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func runGDD(cfg config.Config, outputPath, inputPath string, clock clockwork.Clock) (err error) {
	run, err := cfg.Build()
	if err != nil {
		return err
	}

	if isURL(inputPath) {
		d, err := narr.NewNARRDownloader(narr.NARRDownloaderOptions{
			OutputFolder: filepath.Dir(outputPath),
			Retries:      3,
		})
		if err != nil {
			return err
		}
		if inputPath, err = d.Download(inputPath); err != nil {
			return err
		}
	}

	in, err := dataset.Open(inputPath, dataset.InputOptions{Variable: run.Variable})
	if err != nil {
		return err
	}
	defer in.Close()

	convert, err := run.Converter(in.Units)
	if err != nil {
		return err
	}

	ny, nx := in.Shape()
	out, err := dataset.Create(outputPath, schema.New(schema.Options{
		NY:              ny,
		NX:              nx,
		TemperatureUnit: run.OutputUnit(in.Units),
		ProjectionUnits: in.ProjectionUnits,
	}))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := out.WriteCoordinates(in.Lat, in.Lon, in.Y, in.X); err != nil {
		return err
	}

	m := metrics.NewMetrics()

	var cat *catalog.Catalog
	var runID string
	if cfg.Catalog != "" {
		if cat, err = catalog.Open(cfg.Catalog, clock); err != nil {
			return err
		}
		defer cat.Close()

		if runID, err = cat.StartRun(inputPath, outputPath, run.Transfer.String()); err != nil {
			return err
		}
	}

	var catalogErr error
	eng := engine.New(engine.Options{
		Transfer:    run.Transfer,
		Convert:     convert,
		Filter:      run.Filter,
		ResetYearly: run.ResetYearly,
		Workers:     run.Workers,
		Clock:       clock,
		OnStep: func(step engine.StepInfo) {
			m.ObserveStep(step.Sentinels, step.Duration)
			if cat == nil || catalogErr != nil {
				return
			}
			catalogErr = cat.RecordStep(runID, step.Output, step.Time, catalog.Summarize(step.Cells, schema.FillValue))
		},
	})

	Log.Info().Msgf("Accumulating %s with %s into %s", inputPath, run.Transfer, outputPath)

	result, runErr := eng.Run(in, out)
	if runErr == nil {
		runErr = catalogErr
	}

	m.ObserveRun(result.Skipped, clock.Now(), runErr)
	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			Log.Warn().Err(err).Msgf("Writing metrics to %s", cfg.MetricsFile)
		}
	}

	if cat != nil {
		if err := cat.FinishRun(runID, result.Retained, result.Skipped, runErr); err != nil && runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		return runErr
	}

	Log.Info().Msgf("Wrote %d grids (%d steps skipped, %d sentinel cells) in %s", result.Retained, result.Skipped, result.SentinelCells, result.Duration)
	return nil
}

func fetchAction(cCtx *cli.Context) error {
	files, err := narr.DownloadYears(narr.NARRDownloaderOptions{
		Dataset:      cCtx.String("dataset"),
		BaseURL:      cCtx.String("base-url"),
		OutputFolder: cCtx.String("dir"),
		Retries:      cCtx.Int("retries"),
	}, cCtx.IntSlice("year"), cCtx.Bool("fast"))

	for year, path := range files {
		Log.Info().Msgf("%d: %s", year, path)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cCtx.App.Writer, "done")
	return nil
}

func serveAction(cCtx *cli.Context) error {
	if !cCtx.Bool("http") && !cCtx.Bool("grpc") {
		return fmt.Errorf("%w: serve needs --http and/or --grpc", common.ErrConfiguration)
	}

	result, err := dataset.ReadResult(cCtx.String("data"))
	if err != nil {
		return err
	}

	store := server.NewStore(result, server.StoreOptions{
		MaxDistanceKm: cCtx.Float64("max-distance"),
		CacheSize:     cCtx.Int("cache-size"),
	})
	m := metrics.NewMetrics()

	var wg sync.WaitGroup

	if cCtx.Bool("http") {
		wg.Add(1)
		go server.StartServer(server.NewApp(store, m), cCtx.String("http-port"))
	}

	if cCtx.Bool("grpc") {
		wg.Add(1)
		go server.StartGRPCServer(server.NewGRPCServer(store, m), cCtx.String("grpc-port"))
	}

	wg.Wait()
	return nil
}
