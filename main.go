package main

import (
	"os"

	"github.com/urfave/cli/v2"

	. "hstin/gdd/helper"
	"hstin/gdd/models/narr"
	"hstin/gdd/server"
)

func newApp() *cli.App {
	return &cli.App{
		Name:      "gdd",
		Usage:     "Accumulate growing degree days over a gridded temperature dataset",
		UsageText: "gdd [--threshold T | --min MIN --max MAX --units U] [options] <output> <input>",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:    "threshold",
				Aliases: []string{"t"},
				Usage:   "Base temperature, in the units of the input",
				EnvVars: []string{"GDD_THRESHOLD"},
			},
			&cli.Float64Flag{
				Name:    "min",
				Usage:   "Lower bound of the counted range",
				EnvVars: []string{"GDD_MIN"},
			},
			&cli.Float64Flag{
				Name:    "max",
				Usage:   "Upper bound of the counted range",
				EnvVars: []string{"GDD_MAX"},
			},
			&cli.StringFlag{
				Name:    "units",
				Aliases: []string{"u"},
				Usage:   "Temperature unit of --min and --max (degC, degF, K)",
				EnvVars: []string{"GDD_UNITS"},
			},
			&cli.StringFlag{
				Name:    "season",
				Usage:   "Months to keep, e.g. 3-9, mar-sep or all",
				EnvVars: []string{"GDD_SEASON"},
			},
			&cli.BoolFlag{
				Name:    "reset-yearly",
				Usage:   "Restart the total at the first kept step of every year",
				EnvVars: []string{"GDD_RESET_YEARLY"},
			},
			&cli.StringFlag{
				Name:    "variable",
				Usage:   "Name of the temperature variable in the input",
				EnvVars: []string{"GDD_VARIABLE"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Goroutines per timestep",
				EnvVars: []string{"GDD_WORKERS"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML run file; flags that are set override it",
				EnvVars: []string{"GDD_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "SQLite database that records runs and emitted grids",
				EnvVars: []string{"GDD_CATALOG"},
			},
			&cli.StringFlag{
				Name:    "metrics-file",
				Usage:   "Write Prometheus metrics to this textfile after the run",
				EnvVars: []string{"GDD_METRICS_FILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "console",
				Usage:   "Log format (console or json)",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: func(cCtx *cli.Context) error {
			SetupLogger(cCtx.String("log-level"), cCtx.String("log-format"))
			return nil
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:      "fetch",
				Usage:     "Download NARR daily temperature files",
				UsageText: "gdd fetch --year 2012 [--year 2013] [--dir data]",
				Flags: []cli.Flag{
					&cli.IntSliceFlag{
						Name:     "year",
						Aliases:  []string{"y"},
						Usage:    "Year to download, repeatable",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "dir",
						Value:   "data",
						Usage:   "Download folder",
						EnvVars: []string{"GDD_DATA_DIR"},
					},
					&cli.StringFlag{
						Name:    "dataset",
						Value:   "air.2m",
						Usage:   "NARR dataset",
						EnvVars: []string{"GDD_DATASET"},
					},
					&cli.StringFlag{
						Name:    "base-url",
						Value:   narr.DefaultBaseURL,
						Usage:   "Server the NARR files are fetched from",
						EnvVars: []string{"GDD_BASE_URL"},
					},
					&cli.IntFlag{
						Name:  "retries",
						Value: 3,
						Usage: "Retries per file",
					},
					&cli.BoolFlag{
						Name:  "fast",
						Usage: "Download all years at once",
					},
				},
				Action: fetchAction,
			},
			{
				Name:      "serve",
				Usage:     "Answer point queries against a gdd output file",
				UsageText: "gdd serve --data gdd.nc [--http] [--grpc]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "gdd output file to serve",
						EnvVars:  []string{"GDD_DATA"},
						Required: true,
					},
					&cli.BoolFlag{
						Name:    "http",
						Value:   false,
						Usage:   "Start the HTTP server",
						EnvVars: []string{"START_HTTP"},
					},
					&cli.BoolFlag{
						Name:    "grpc",
						Value:   false,
						Usage:   "Start the gRPC server",
						EnvVars: []string{"START_GRPC"},
					},
					&cli.StringFlag{
						Name:    "http-port",
						Value:   "8081",
						Usage:   "HTTP server port",
						EnvVars: []string{"HTTP_PORT"},
					},
					&cli.StringFlag{
						Name:    "grpc-port",
						Value:   "50051",
						Usage:   "gRPC server port",
						EnvVars: []string{"GRPC_PORT"},
					},
					&cli.Float64Flag{
						Name:    "max-distance",
						Value:   server.DefaultMaxDistanceKm,
						Usage:   "Farthest distance in km a query may be from the nearest cell",
						EnvVars: []string{"MAX_DISTANCE_KM"},
					},
					&cli.IntFlag{
						Name:    "cache-size",
						Value:   server.DefaultCacheSize,
						Usage:   "Entries kept in the point lookup cache",
						EnvVars: []string{"CACHE_SIZE"},
					},
				},
				Action: serveAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		Log.Error().Err(err).Msg("gdd failed")
		os.Exit(1)
	}
}
