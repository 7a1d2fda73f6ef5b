package dashboard

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard", h.Get)
}

func (h *Handler) Get(c echo.Context) error {
	sum, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

// InvalidateOnWrite drops the cached summary after a successful write to a
// route under one of prefixes. Reads and failed writes leave it alone.
func (h *Handler) InvalidateOnWrite(prefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return err
			}
			if err != nil || c.Response().Status >= http.StatusBadRequest {
				return err
			}
			for _, p := range prefixes {
				if strings.HasPrefix(c.Path(), p) {
					if ierr := h.svc.Invalidate(c.Request().Context()); ierr != nil {
						h.svc.logger.Warn().Err(ierr).Str("route", c.Path()).Msg("dashboard cache invalidation failed")
					}
					break
				}
			}
			return err
		}
	}
}
