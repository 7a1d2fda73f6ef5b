package scheduling

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/httpx"
	"github.com/saludsync/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.List)
	api.GET("/appointments/today/count", h.CountToday)
	api.GET("/appointments/:id", h.Get)

	w := api.Group("/appointments", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor))
	w.POST("", h.Create)
	w.PUT("/:id", h.Update)
	w.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var a Appointment
	if err := httpx.Bind(c, &a); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Create(ctx, &a, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return h.written(c, &a, "Éxito al crear la cita médica ", http.StatusCreated)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	var a Appointment
	if err := httpx.Bind(c, &a); err != nil {
		return err
	}
	a.ID = id
	ctx := c.Request().Context()
	if err := h.svc.Update(ctx, &a, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return h.written(c, &a, "Éxito al modificar la cita médica ", http.StatusOK)
}

func (h *Handler) written(c echo.Context, a *Appointment, prefix string, status int) error {
	sum, err := h.svc.Detail(c.Request().Context(), a.ID)
	if err != nil {
		return err
	}
	msg := prefix + sum.Patient + " - " + sum.StatusLabel + "."
	if status == http.StatusCreated {
		return httpx.Created(c, msg, sum)
	}
	return httpx.Updated(c, msg, sum)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.Detail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	q := httpx.Query(c)
	f := Filter{Query: q, ByCedula: httpx.IsDigits(q), Status: c.QueryParam("estado")}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Summary{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) CountToday(c echo.Context) error {
	n, err := h.svc.CountToday(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"citas_hoy": n})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, id, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Deleted(c, "Éxito al eliminar la cita médica.")
}
