package encounter

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
	api.GET("/encounters", h.List)
	api.GET("/encounters/:id", h.Get)
	api.GET("/encounters/:id/lines", h.Lines)

	w := api.Group("/encounters", auth.RequireRole(auth.RoleDoctor))
	w.POST("", h.Create)
	w.PUT("/:id", h.Update)
	w.DELETE("/:id", h.Delete)
}

// saveRequest is the header plus the detail grid of one submission.
type saveRequest struct {
	Input
	Lines []LineChange `json:"detalles"`
}

func (h *Handler) Create(c echo.Context) error {
	var req saveRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	req.Input.ID = nil
	return h.save(c, req, true)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	var req saveRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	req.Input.ID = &id
	return h.save(c, req, false)
}

func (h *Handler) save(c echo.Context, req saveRequest, create bool) error {
	ctx := c.Request().Context()
	e, err := h.svc.Save(ctx, req.Input, req.Lines, auth.ActorFromContext(ctx))
	if err != nil {
		return err
	}
	d, err := h.svc.Detail(ctx, e.ID)
	if err != nil {
		return err
	}
	name := d.Patient.FirstNames + " " + d.Patient.LastNames
	if create {
		return httpx.Created(c, "Éxito al crear la atención para el paciente "+name+".", d)
	}
	return httpx.Updated(c, "Éxito al modificar la atención para el paciente "+name+".", d)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Detail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Lines(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	lines, err := h.svc.Lines(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if lines == nil {
		lines = []*Line{}
	}
	return c.JSON(http.StatusOK, lines)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), Filter{Query: httpx.Query(c)}, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Summary{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
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
	return httpx.Deleted(c, "Atención eliminada exitosamente.")
}
