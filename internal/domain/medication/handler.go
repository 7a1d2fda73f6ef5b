package medication

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
	api.GET("/medications", h.List)
	api.GET("/medications/:id", h.Get)

	w := api.Group("/medications", auth.RequireRole(auth.RoleStaff))
	w.POST("", h.Create)
	w.PUT("/:id", h.Update)
	w.DELETE("/:id", h.Delete)
}

type medicationRequest struct {
	Name          string     `json:"nombre"`
	TypeID        *uuid.UUID `json:"tipo_id"`
	BrandID       *uuid.UUID `json:"marca_id"`
	Concentration string     `json:"concentracion"`
	Description   string     `json:"descripcion"`
	Price         float64    `json:"precio"`
	Stock         int        `json:"cantidad"`
	Commercial    *bool      `json:"comercial"`
	Active        *bool      `json:"activo"`
}

func (r medicationRequest) medication() *Medication {
	m := &Medication{
		Name: r.Name, TypeID: r.TypeID, BrandID: r.BrandID, Concentration: r.Concentration,
		Description: r.Description, Price: r.Price, Stock: r.Stock, Commercial: true, Active: true,
	}
	if r.Commercial != nil {
		m.Commercial = *r.Commercial
	}
	if r.Active != nil {
		m.Active = *r.Active
	}
	return m
}

func (h *Handler) Create(c echo.Context) error {
	var req medicationRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	m := req.medication()
	ctx := c.Request().Context()
	if err := h.svc.Create(ctx, m, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Created(c, "Éxito al crear el medicamento "+m.Name+".", m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Query: httpx.Query(c), Active: httpx.BoolParam(c, "activo")}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Medication{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	var req medicationRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	m := req.medication()
	m.ID = id
	ctx := c.Request().Context()
	if err := h.svc.Update(ctx, m, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Updated(c, "Éxito al modificar el medicamento "+m.Name+".", m)
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
	return httpx.Deleted(c, "Éxito al eliminar el medicamento.")
}
