package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	dmap "github.com/beam-cloud/redismap/pkg/abstractions/map"
	apiv1 "github.com/beam-cloud/redismap/pkg/api/v1"
	"github.com/beam-cloud/redismap/pkg/common"
	"github.com/beam-cloud/redismap/pkg/metrics"
	"github.com/beam-cloud/redismap/pkg/types"
)

const defaultShutdownTimeout = 10 * time.Second

// Gateway serves one map over HTTP, plus Prometheus metrics when enabled.
type Gateway struct {
	Config      types.AppConfig
	RedisClient *common.RedisClient
	Map         *dmap.RedisMap
	Metrics     *metrics.PrometheusMapMetrics
	httpServer  *http.Server
	echo        *echo.Echo
}

func NewGateway(ctx context.Context, config types.AppConfig) (*Gateway, error) {
	redisClient, err := common.NewRedisClientWithRetry(ctx, config.Database.Redis, config.Database.Connect, common.WithClientName("RedisMapGateway"))
	if err != nil {
		return nil, err
	}

	gateway, err := NewGatewayWithClient(config, redisClient)
	if err != nil {
		redisClient.Close()
		return nil, err
	}

	return gateway, nil
}

// NewGatewayWithClient builds the gateway around an already connected client.
func NewGatewayWithClient(config types.AppConfig, redisClient *common.RedisClient) (*Gateway, error) {
	gateway := &Gateway{
		Config:      config,
		RedisClient: redisClient,
	}

	var opts []dmap.RedisMapOption
	if config.Monitoring.Prometheus.Enabled {
		gateway.Metrics = metrics.NewPrometheusMapMetrics(config.Monitoring.Prometheus)
		opts = append(opts, dmap.WithObserver(gateway.Metrics))
	}

	m, err := dmap.NewRedisMap(redisClient, config.Map, opts...)
	if err != nil {
		return nil, err
	}
	gateway.Map = m

	gateway.initHttp()
	return gateway, nil
}

func (g *Gateway) initHttp() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if g.Config.DebugMode {
		pprof.Register(e)
	}

	e.Pre(middleware.RemoveTrailingSlash())
	configureEchoLogger(e, g.Config.HTTP.EnablePrettyLogs)
	e.Use(middleware.Recover())

	baseRouteGroup := e.Group(apiv1.HttpServerBaseRoute)
	apiv1.NewHealthGroup(baseRouteGroup.Group("/health"), g.RedisClient, g.Map.HashKey())
	apiv1.NewMapGroup(baseRouteGroup.Group("/map"), g.Map)

	g.echo = e

	// Accept both HTTP/2 and HTTP/1
	g.httpServer = &http.Server{
		Addr:    g.Config.HTTP.Addr(),
		Handler: h2c.NewHandler(e, &http2.Server{}),
	}
}

func (g *Gateway) Handler() http.Handler {
	return g.echo
}

// Start serves until ctx is cancelled, then shuts everything down. It returns
// the first server error, if any.
func (g *Gateway) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		g.RedisClient.Close()
		return err
	}

	return g.Serve(ctx, lis)
}

func (g *Gateway) Serve(ctx context.Context, lis net.Listener) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info().Str("addr", lis.Addr().String()).Str("hash_key", g.Map.HashKey()).Msg("gateway http server running")

		if err := g.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if g.Metrics != nil {
		eg.Go(func() error {
			return g.Metrics.ListenAndServe(ctx)
		})
	}

	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down gateway")
		return g.shutdown()
	})

	return eg.Wait()
}

func (g *Gateway) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := g.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	return g.RedisClient.Close()
}
