package exams

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
	api.GET("/exams", h.List)
	api.GET("/exams/:id", h.Get)
	api.GET("/exams/:id/result", h.GetResult)

	w := api.Group("/exams", auth.RequireRole(auth.RoleDoctor, auth.RoleStaff))
	w.POST("", h.Create)
	w.PUT("/:id", h.Update)
	w.DELETE("/:id", h.Delete)
	w.POST("/:id/result", h.UploadResult)
}

func (h *Handler) Create(c echo.Context) error {
	var r Request
	if err := httpx.Bind(c, &r); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Create(ctx, &r, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Created(c, "Éxito al solicitar el examen "+r.Name+".", r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Query: httpx.Query(c), Status: c.QueryParam("estado")}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Summary{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	var r Request
	if err := httpx.Bind(c, &r); err != nil {
		return err
	}
	r.ID = id
	ctx := c.Request().Context()
	if err := h.svc.Update(ctx, &r, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Updated(c, "Éxito al modificar el examen "+r.Name+".", r)
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
	return httpx.Deleted(c, "Éxito al eliminar el examen.")
}

func (h *Handler) UploadResult(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	obj, f, err := httpx.Upload(c, "resultado")
	if err != nil {
		return err
	}
	defer f.Close()
	ctx := c.Request().Context()
	stored, err := h.svc.UploadResult(ctx, id, obj, f, auth.ActorFromContext(ctx))
	if err != nil {
		return httpx.BlobError(err)
	}
	return httpx.Updated(c, "Resultado del examen registrado.", stored)
}

func (h *Handler) GetResult(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	rc, obj, err := h.svc.Result(c.Request().Context(), id)
	if err != nil {
		return httpx.BlobError(err)
	}
	return httpx.Attachment(c, rc, obj)
}
