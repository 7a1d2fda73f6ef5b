package billing

import (
	"net/http"

	"github.com/google/uuid"
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
	api.GET("/services", h.ListServices)
	api.GET("/services/:id", h.GetService)
	api.GET("/costs", h.ListCosts)
	api.GET("/costs/:id", h.GetCost)

	w := api.Group("", auth.RequireRole(auth.RoleStaff))
	w.POST("/services", h.CreateService)
	w.PUT("/services/:id", h.UpdateService)
	w.DELETE("/services/:id", h.DeleteService)
	w.POST("/costs", h.CreateCost)
	w.PUT("/costs/:id", h.UpdateCost)
	w.DELETE("/costs/:id", h.DeleteCost)
}

// -- Additional services --

type serviceRequest struct {
	AdditionalService
	Active *bool `json:"activo"`
}

func (r *serviceRequest) service() *AdditionalService {
	s := r.AdditionalService
	s.Active = r.Active == nil || *r.Active
	return &s
}

func (h *Handler) CreateService(c echo.Context) error {
	var req serviceRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	s := req.service()
	ctx := c.Request().Context()
	if err := h.svc.CreateService(ctx, s, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Created(c, "Éxito al crear el servicio "+s.Name+".", s)
}

func (h *Handler) GetService(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	s, err := h.svc.GetService(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateService(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	var req serviceRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	s := req.service()
	s.ID = id
	ctx := c.Request().Context()
	if err := h.svc.UpdateService(ctx, s, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Updated(c, "Éxito al modificar el servicio "+s.Name+".", s)
}

func (h *Handler) DeleteService(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteService(ctx, id, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Deleted(c, "Éxito al eliminar el servicio.")
}

func (h *Handler) ListServices(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Query: httpx.Query(c), Active: httpx.BoolParam(c, "activo")}
	items, total, err := h.svc.ListServices(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*AdditionalService{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

// -- Encounter costs --

type costRequest struct {
	EncounterID uuid.UUID   `json:"atencion_id"`
	ServiceIDs  []uuid.UUID `json:"servicio_ids"`
	Active      *bool       `json:"activo"`
}

func (r *costRequest) cost() *Cost {
	return &Cost{EncounterID: r.EncounterID, ServiceIDs: r.ServiceIDs, Active: r.Active == nil || *r.Active}
}

func (h *Handler) CreateCost(c echo.Context) error {
	var req costRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	cost := req.cost()
	ctx := c.Request().Context()
	if err := h.svc.CreateCost(ctx, cost, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Created(c, "Éxito al registrar los costos de la atención.", cost)
}

func (h *Handler) GetCost(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.CostDetail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateCost(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	var req costRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	cost := req.cost()
	cost.ID = id
	ctx := c.Request().Context()
	if err := h.svc.UpdateCost(ctx, cost, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Updated(c, "Éxito al modificar los costos de la atención.", cost)
}

func (h *Handler) DeleteCost(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteCost(ctx, id, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Deleted(c, "Éxito al eliminar los costos de la atención.")
}

func (h *Handler) ListCosts(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Query: httpx.Query(c), Active: httpx.BoolParam(c, "activo")}
	items, total, err := h.svc.ListCosts(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*CostSummary{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}
