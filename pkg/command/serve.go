package command

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/beam-cloud/redismap/pkg/gateway"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the map over HTTP until interrupted",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP port, overrides config",
			},
			&cli.BoolFlag{
				Name:  "no-metrics",
				Usage: "Do not serve Prometheus metrics",
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	config := getConfig(c)
	if c.IsSet("port") {
		config.HTTP.Port = c.Int("port")
	}
	if c.Bool("no-metrics") {
		config.Monitoring.Prometheus.Enabled = false
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := gateway.NewGateway(ctx, config)
	if err != nil {
		return errors.Wrap(err, "create gateway")
	}

	if err := gw.Start(ctx); err != nil {
		return errors.Wrap(err, "serve")
	}

	log.Info().Msg("gateway stopped")
	return nil
}
