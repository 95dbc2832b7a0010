package apiv1

import (
	"net/http"
	"net/url"

	dmap "github.com/beam-cloud/redismap/pkg/abstractions/map"
	"github.com/beam-cloud/redismap/pkg/types"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type MapGroup struct {
	routerGroup *echo.Group
	m           dmap.Map
}

func NewMapGroup(g *echo.Group, m dmap.Map) *MapGroup {
	group := &MapGroup{routerGroup: g, m: m}

	g.GET("/size", group.Size)
	g.GET("/keys", group.Keys)
	g.GET("/values", group.Values)
	g.GET("/contains", group.ContainsValue)
	g.GET("/entries", group.Entries)
	g.POST("/entries", group.PutAll)
	g.DELETE("/entries", group.Clear)
	g.GET("/fields/:field", group.Get)
	g.PUT("/fields/:field", group.Put)
	g.DELETE("/fields/:field", group.Remove)

	return group
}

type SizeResponse struct {
	Size    int64 `json:"size"`
	IsEmpty bool  `json:"is_empty"`
}

type FieldResponse struct {
	Field string `json:"field"`
	Value int64  `json:"value"`
}

type PutFieldRequest struct {
	Value *int64 `json:"value"`
}

// SwapResponse carries the replaced value. Previous is null when the field
// did not exist.
type SwapResponse struct {
	Previous *int64 `json:"previous"`
	Existed  bool   `json:"existed"`
}

type ContainsResponse struct {
	Contains bool `json:"contains"`
}

func (g *MapGroup) Size(ctx echo.Context) error {
	size, err := g.m.Size(ctx.Request().Context())
	if err != nil {
		return g.mapError(err)
	}

	return ctx.JSON(http.StatusOK, SizeResponse{Size: size, IsEmpty: size == 0})
}

func (g *MapGroup) Keys(ctx echo.Context) error {
	keys, err := g.m.Keys(ctx.Request().Context())
	if err != nil {
		return g.mapError(err)
	}

	return ctx.JSON(http.StatusOK, keys)
}

func (g *MapGroup) Values(ctx echo.Context) error {
	values, err := g.m.Values(ctx.Request().Context())
	if err != nil {
		return g.mapError(err)
	}

	return ctx.JSON(http.StatusOK, values)
}

func (g *MapGroup) ContainsValue(ctx echo.Context) error {
	var value int64
	err := echo.QueryParamsBinder(ctx).MustInt64("value", &value).BindError()
	if err != nil {
		return HTTPBadRequest("Query parameter 'value' must be an integer")
	}

	found, err := g.m.ContainsValue(ctx.Request().Context(), value)
	if err != nil {
		return g.mapError(err)
	}

	return ctx.JSON(http.StatusOK, ContainsResponse{Contains: found})
}

func (g *MapGroup) Entries(ctx echo.Context) error {
	entries, err := g.m.Entries(ctx.Request().Context())
	if err != nil {
		return g.mapError(err)
	}

	return ctx.JSON(http.StatusOK, entries)
}

func (g *MapGroup) PutAll(ctx echo.Context) error {
	var entries map[string]int64
	if err := (&echo.DefaultBinder{}).BindBody(ctx, &entries); err != nil {
		return HTTPBadRequest("Body must be an object of integer values")
	}

	if err := g.m.PutAll(ctx.Request().Context(), entries); err != nil {
		return g.mapError(err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

func (g *MapGroup) Clear(ctx echo.Context) error {
	if err := g.m.Clear(ctx.Request().Context()); err != nil {
		return g.mapError(err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

func (g *MapGroup) Get(ctx echo.Context) error {
	field, err := fieldParam(ctx)
	if err != nil {
		return err
	}

	value, ok, err := g.m.Get(ctx.Request().Context(), field)
	if err != nil {
		return g.mapError(err)
	}

	if !ok {
		return HTTPNotFound()
	}

	return ctx.JSON(http.StatusOK, FieldResponse{Field: field, Value: value})
}

func (g *MapGroup) Put(ctx echo.Context) error {
	field, err := fieldParam(ctx)
	if err != nil {
		return err
	}

	var req PutFieldRequest
	if err := (&echo.DefaultBinder{}).BindBody(ctx, &req); err != nil || req.Value == nil {
		return HTTPBadRequest("Body must contain an integer 'value'")
	}

	previous, existed, err := g.m.Put(ctx.Request().Context(), field, *req.Value)
	if err != nil {
		return g.mapError(err)
	}

	return ctx.JSON(http.StatusOK, swapResponse(previous, existed))
}

func (g *MapGroup) Remove(ctx echo.Context) error {
	field, err := fieldParam(ctx)
	if err != nil {
		return err
	}

	previous, existed, err := g.m.Remove(ctx.Request().Context(), field)
	if err != nil {
		return g.mapError(err)
	}

	return ctx.JSON(http.StatusOK, swapResponse(previous, existed))
}

func (g *MapGroup) mapError(err error) error {
	decodeErr := &types.ErrDecode{}
	if decodeErr.From(err) {
		return HTTPUnprocessableEntity(err.Error())
	}

	log.Error().Err(err).Msg("map operation failed")
	return HTTPInternalServerError("Map operation failed")
}

// fieldParam returns the decoded field name. The router matches on RawPath
// when the request carries one, leaving params escaped; otherwise they are
// already decoded.
func fieldParam(ctx echo.Context) (string, error) {
	field := ctx.Param("field")
	if ctx.Request().URL.RawPath != "" {
		unescaped, err := url.PathUnescape(field)
		if err != nil {
			return "", HTTPBadRequest("Invalid field")
		}
		field = unescaped
	}

	if field == "" {
		return "", HTTPBadRequest("Invalid field")
	}

	return field, nil
}

func swapResponse(previous int64, existed bool) SwapResponse {
	if !existed {
		return SwapResponse{}
	}

	return SwapResponse{Previous: &previous, Existed: true}
}
