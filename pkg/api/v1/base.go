package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const HttpServerBaseRoute string = "/api/v1"

func HTTPBadRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, message)
}

func HTTPNotFound() error {
	return echo.NewHTTPError(http.StatusNotFound)
}

func HTTPUnprocessableEntity(message string) error {
	return echo.NewHTTPError(http.StatusUnprocessableEntity, message)
}

func HTTPInternalServerError(message string) error {
	return echo.NewHTTPError(http.StatusInternalServerError, message)
}
