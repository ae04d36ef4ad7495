package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xhhuango/json"

	. "hstin/gdd/helper"
	"hstin/gdd/metrics"
)

func NewApp(store *Store, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
		ServerHeader:          "gdd",
	})

	app.Get("/gdd", func(c *fiber.Ctx) error {
		latitude, err := strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil {
			m.PointQueries.WithLabelValues("http", "invalid").Inc()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid latitude"})
		}

		longitude, err := strconv.ParseFloat(c.Query("lng"), 64)
		if err != nil {
			m.PointQueries.WithLabelValues("http", "invalid").Inc()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid longitude"})
		}

		resp, err := store.Point(latitude, longitude)
		switch {
		case errors.Is(err, ErrOutsideGrid):
			m.PointQueries.WithLabelValues("http", "outside").Inc()
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case err != nil:
			m.PointQueries.WithLabelValues("http", "invalid").Inc()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		m.PointQueries.WithLabelValues("http", "ok").Inc()
		return c.JSON(resp)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	return app
}

func StartServer(app *fiber.App, port string) {
	Log.Info().Msg("HTTP server started on port " + port)

	Log.Fatal().Err(app.Listen(":" + port)).Msg("Failed to start HTTP server")
}
