package catalog

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
	g := api.Group("/catalog/:kind")
	g.GET("", h.List)
	g.GET("/:id", h.Get)

	w := api.Group("/catalog/:kind", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor))
	w.POST("", h.Create)
	w.PUT("/:id", h.Update)
	w.DELETE("/:id", h.Delete)
}

type itemRequest struct {
	Code        string `json:"codigo"`
	Name        string `json:"nombre"`
	Description string `json:"descripcion"`
	Active      *bool  `json:"activo"`
}

func (r itemRequest) item(kind Kind) *Item {
	it := &Item{Kind: kind, Code: r.Code, Name: r.Name, Description: r.Description, Active: true}
	if r.Active != nil {
		it.Active = *r.Active
	}
	return it
}

func kindParam(c echo.Context) (Kind, error) {
	k, ok := ParseKind(c.Param("kind"))
	if !ok {
		return "", echo.NewHTTPError(http.StatusNotFound, "catálogo desconocido")
	}
	return k, nil
}

func (h *Handler) Create(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	var req itemRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	it := req.item(kind)
	ctx := c.Request().Context()
	if err := h.svc.Create(ctx, it, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Created(c, "Éxito al crear "+kind.Label()+" "+it.Name+".", it)
}

func (h *Handler) Get(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	it, err := h.svc.Get(c.Request().Context(), kind, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) List(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := Filter{Kind: kind, Query: httpx.Query(c), Active: httpx.BoolParam(c, "activo")}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Item{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) Update(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	var req itemRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	it := req.item(kind)
	it.ID = id
	ctx := c.Request().Context()
	if err := h.svc.Update(ctx, it, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Updated(c, "Éxito al modificar "+kind.Label()+" "+it.Name+".", it)
}

func (h *Handler) Delete(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, kind, id, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Deleted(c, "Éxito al eliminar "+kind.Label()+".")
}
