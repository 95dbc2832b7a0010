package apiv1

import (
	"fmt"
	"net/http"

	"github.com/beam-cloud/redismap/pkg/common"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type HealthGroup struct {
	redisClient *common.RedisClient
	hashKey     string
	routerGroup *echo.Group
}

func NewHealthGroup(g *echo.Group, rdb *common.RedisClient, hashKey string) *HealthGroup {
	group := &HealthGroup{routerGroup: g, redisClient: rdb, hashKey: hashKey}

	g.GET("", group.HealthCheck)

	return group
}

// HealthCheck fails when Redis is unreachable or when the map's key holds
// something other than a hash.
func (h *HealthGroup) HealthCheck(c echo.Context) error {
	g, ctx := errgroup.WithContext(c.Request().Context())

	g.Go(func() error {
		return h.redisClient.Ping(ctx).Err()
	})

	g.Go(func() error {
		keyType, err := h.redisClient.Type(ctx, h.hashKey).Result()
		if err != nil {
			return err
		}

		if keyType != "hash" && keyType != "none" {
			return fmt.Errorf("key <%v> holds a %s, not a hash", h.hashKey, keyType)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("health check failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status": "not ok",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
