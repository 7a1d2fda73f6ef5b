package identity

import (
	"net/http"
	"strings"

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
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.GET("/patients/:id/photo", h.GetPatientPhoto)
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)

	clinical := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor))
	clinical.POST("/patients", h.CreatePatient)
	clinical.PUT("/patients/:id", h.UpdatePatient)
	clinical.POST("/patients/:id/photo", h.UploadPatientPhoto)
	clinical.DELETE("/patients/:id", h.DeletePatient)

	// Staff records are admin-only.
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/doctors", h.CreateDoctor)
	admin.PUT("/doctors/:id", h.UpdateDoctor)
	admin.DELETE("/doctors/:id", h.DeleteDoctor)
	admin.GET("/employees", h.ListEmployees)
	admin.GET("/employees/:id", h.GetEmployee)
	admin.POST("/employees", h.CreateEmployee)
	admin.PUT("/employees/:id", h.UpdateEmployee)
	admin.DELETE("/employees/:id", h.DeleteEmployee)
}

func listResponse(c echo.Context, items interface{}, total int, pg pagination.Params) error {
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

// -- Patient --

type patientRequest struct {
	Patient
	Active *bool `json:"activo"`
}

func (r *patientRequest) patient() *Patient {
	p := r.Patient
	p.Active = r.Active == nil || *r.Active
	p.PhotoKey = ""
	return &p
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req patientRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p := req.patient()
	ctx := c.Request().Context()
	if err := h.svc.CreatePatient(ctx, p, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Created(c, "Éxito al crear al paciente "+p.FullName()+".", p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.PatientDetail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := PatientFilter{Query: httpx.Query(c), Sex: strings.ToUpper(c.QueryParam("sex"))}
	items, total, err := h.svc.ListPatients(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Patient{}
	}
	return listResponse(c, items, total, pg)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	var req patientRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p := req.patient()
	p.ID = id
	ctx := c.Request().Context()
	if err := h.svc.UpdatePatient(ctx, p, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Updated(c, "Éxito al modificar el paciente "+p.FullName()+".", p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeletePatient(ctx, id, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Deleted(c, "Éxito al eliminar el paciente.")
}

func (h *Handler) UploadPatientPhoto(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	obj, f, err := httpx.Upload(c, "foto")
	if err != nil {
		return err
	}
	defer f.Close()
	ctx := c.Request().Context()
	stored, err := h.svc.UploadPatientPhoto(ctx, id, obj, f, auth.ActorFromContext(ctx))
	if err != nil {
		return httpx.BlobError(err)
	}
	return httpx.Updated(c, "Foto del paciente actualizada.", stored)
}

func (h *Handler) GetPatientPhoto(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	rc, obj, err := h.svc.PatientPhoto(c.Request().Context(), id)
	if err != nil {
		return httpx.BlobError(err)
	}
	return httpx.Attachment(c, rc, obj)
}

// -- Doctor --

type doctorRequest struct {
	Doctor
	Active *bool `json:"activo"`
}

func (r *doctorRequest) doctor() *Doctor {
	d := r.Doctor
	d.Active = r.Active == nil || *r.Active
	return &d
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req doctorRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	d := req.doctor()
	ctx := c.Request().Context()
	if err := h.svc.CreateDoctor(ctx, d, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Created(c, "Éxito al crear al doctor "+d.FirstNames+" "+d.LastNames+".", d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.DoctorDetail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Query: httpx.Query(c), Active: httpx.BoolParam(c, "activo")}
	items, total, err := h.svc.ListDoctors(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Doctor{}
	}
	return listResponse(c, items, total, pg)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	var req doctorRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	d := req.doctor()
	d.ID = id
	ctx := c.Request().Context()
	if err := h.svc.UpdateDoctor(ctx, d, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Updated(c, "Éxito al modificar el doctor "+d.FirstNames+" "+d.LastNames+".", d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteDoctor(ctx, id, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Deleted(c, "Éxito al eliminar el doctor.")
}

// -- Employee --

type employeeRequest struct {
	Employee
	Active *bool `json:"activo"`
}

func (r *employeeRequest) employee() *Employee {
	e := r.Employee
	e.Active = r.Active == nil || *r.Active
	return &e
}

func (h *Handler) CreateEmployee(c echo.Context) error {
	var req employeeRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	e := req.employee()
	ctx := c.Request().Context()
	if err := h.svc.CreateEmployee(ctx, e, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Created(c, "Éxito al crear al empleado "+e.FirstNames+" "+e.LastNames+".", e)
}

func (h *Handler) GetEmployee(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.EmployeeDetail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEmployees(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Query: httpx.Query(c), Active: httpx.BoolParam(c, "activo")}
	items, total, err := h.svc.ListEmployees(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Employee{}
	}
	return listResponse(c, items, total, pg)
}

func (h *Handler) UpdateEmployee(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	var req employeeRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	e := req.employee()
	e.ID = id
	ctx := c.Request().Context()
	if err := h.svc.UpdateEmployee(ctx, e, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Updated(c, "Éxito al modificar el empleado "+e.FirstNames+" "+e.LastNames+".", e)
}

func (h *Handler) DeleteEmployee(c echo.Context) error {
	id, err := httpx.ParamID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteEmployee(ctx, id, auth.ActorFromContext(ctx)); err != nil {
		return err
	}
	return httpx.Deleted(c, "Éxito al eliminar el empleado.")
}
