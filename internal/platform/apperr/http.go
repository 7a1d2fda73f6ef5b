package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// HTTPErrorHandler maps service errors to status codes: validation 422,
// conflict 409, not found 404, everything unknown 500.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Render(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Str("route", c.Path()).Msg("unhandled error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

// GenericFailure is the only detail a client sees for unexpected errors.
const GenericFailure = "error inesperado, no se guardó ningún cambio"

// Render returns the status and JSON body for err.
func Render(err error) (int, interface{}) {
	if v, ok := AsValidation(err); ok {
		return http.StatusUnprocessableEntity, v
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict, map[string]string{"error": err.Error()}
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound, map[string]string{"error": err.Error()}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := he.Message
		if s, ok := msg.(string); ok {
			return he.Code, map[string]string{"error": s}
		}
		if msg == nil {
			msg = http.StatusText(he.Code)
		}
		return he.Code, map[string]interface{}{"error": msg}
	}
	return http.StatusInternalServerError, map[string]string{"error": GenericFailure}
}
