// Package httpx has the small request and response helpers shared by the
// domain handlers.
package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Written is the body of a successful create, update or delete.
type Written struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Created(c echo.Context, msg string, data interface{}) error {
	return c.JSON(http.StatusCreated, Written{Message: msg, Data: data})
}

func Updated(c echo.Context, msg string, data interface{}) error {
	return c.JSON(http.StatusOK, Written{Message: msg, Data: data})
}

func Deleted(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, Written{Message: msg})
}

// ParamID parses the :id path parameter.
func ParamID(c echo.Context) (uuid.UUID, error) {
	return parseID(c.Param("id"))
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "id inválido")
	}
	return id, nil
}

// Bind decodes the request body into v.
func Bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cuerpo de la solicitud inválido")
	}
	return nil
}

// BoolParam reads an optional boolean query parameter. "True"/"False" (as
// sent by the clinic's filter forms) and the usual strconv forms are accepted;
// anything else means "not filtered".
func BoolParam(c echo.Context, name string) *bool {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return nil
	}
	return &b
}

// Query returns the trimmed q parameter.
func Query(c echo.Context) string {
	return strings.TrimSpace(c.QueryParam("q"))
}

// IsDigits reports whether s is a non-empty run of ASCII digits. List
// filters treat such searches as identifiers.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
