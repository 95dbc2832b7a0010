package gateway

import (
	"os"

	apiv1 "github.com/beam-cloud/redismap/pkg/api/v1"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const healthRoute = apiv1.HttpServerBaseRoute + "/health"

func configureEchoLogger(e *echo.Echo, pretty bool) {
	logger := log.Logger
	if pretty {
		// Easier to read while debugging, but slower than the default logger
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02T15:04:05",
		}).With().Timestamp().Logger()
	}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogRoutePath: true,
		LogURIPath:   true,
		LogLatency:   true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil {
				event = logger.Err(v.Error)
			}

			event.
				Str("method", c.Request().Method).
				Str("URI", v.URIPath).
				Str("route", v.RoutePath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("")
			return nil
		},
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == healthRoute
		},
	}))
}
