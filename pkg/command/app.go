// Package command holds the redismap command-line application.
package command

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	dmap "github.com/beam-cloud/redismap/pkg/abstractions/map"
	"github.com/beam-cloud/redismap/pkg/common"
	"github.com/beam-cloud/redismap/pkg/types"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const configMetadataKey = "config"

func App() *cli.App {
	return &cli.App{
		Name:    "redismap",
		Usage:   "Read and write a Redis hash as a map of integers",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			DemoCommand(),
			GetCommand(),
			PutCommand(),
			RemoveCommand(),
			ListCommand(),
			SizeCommand(),
			ClearCommand(),
			ServeCommand(),
		},
		Before: func(c *cli.Context) error {
			config, err := loadConfig(c)
			if err != nil {
				return err
			}

			common.ConfigureLogger(config.DebugMode, config.PrettyLogs)
			c.App.Metadata[configMetadataKey] = config
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "hash-key",
			Aliases: []string{"k"},
			Usage:   "Redis key of the hash to operate on",
			EnvVars: []string{"REDISMAP_HASH_KEY"},
		},
		&cli.StringSliceFlag{
			Name:    "redis-addr",
			Aliases: []string{"a"},
			Usage:   "Redis address, repeat for cluster nodes",
			EnvVars: []string{"REDISMAP_REDIS_ADDRS"},
		},
		&cli.StringFlag{
			Name:  "redis-mode",
			Usage: "Redis mode: single or cluster",
		},
		&cli.StringFlag{
			Name:  "swap-mode",
			Usage: "How put and remove read the previous value: none, optimistic or lock",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
}

// loadConfig layers command-line flags over the file and environment config.
func loadConfig(c *cli.Context) (types.AppConfig, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return types.AppConfig{}, errors.Wrap(err, "load config")
	}

	config, err := configManager.Unmarshal()
	if err != nil {
		return types.AppConfig{}, errors.Wrap(err, "parse config")
	}

	if c.IsSet("hash-key") {
		config.Map.HashKey = c.String("hash-key")
	}
	if c.IsSet("redis-addr") {
		config.Database.Redis.Addrs = c.StringSlice("redis-addr")
	}
	if c.IsSet("redis-mode") {
		config.Database.Redis.Mode = types.RedisMode(c.String("redis-mode"))
	}
	if c.IsSet("swap-mode") {
		config.Map.SwapMode = types.SwapMode(c.String("swap-mode"))
	}
	if c.Bool("debug") {
		config.DebugMode = true
	}

	return config, nil
}

func getConfig(c *cli.Context) types.AppConfig {
	if config, ok := c.App.Metadata[configMetadataKey].(types.AppConfig); ok {
		return config
	}
	return types.AppConfig{}
}

// withMap connects to Redis, runs fn against the configured map and closes
// the connection afterwards.
func withMap(c *cli.Context, fn func(ctx context.Context, m *dmap.RedisMap) error) error {
	config := getConfig(c)
	ctx := c.Context

	rdb, err := common.NewRedisClientWithRetry(ctx, config.Database.Redis, config.Database.Connect, common.WithClientName("RedisMapCli"))
	if err != nil {
		return errors.Wrap(err, "connect to redis")
	}
	defer rdb.Close()

	m, err := dmap.NewRedisMap(rdb, config.Map)
	if err != nil {
		return errors.Wrap(err, "create map")
	}

	return fn(ctx, m)
}

func fieldArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", errors.New("FIELD is required")
	}
	return c.Args().Get(0), nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
