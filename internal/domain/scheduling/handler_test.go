package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/auth"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	return e
}

func TestHandler_CreateAndGet(t *testing.T) {
	svc, _, _, _, p := newTestService()
	h := NewHandler(svc)
	e := newTestEcho()

	body := fmt.Sprintf(`{"paciente_id":%q,"fecha":"2024-11-05","hora_cita":"09:00","estado":"P"}`, p.ID)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("create: %v", err)
	}
	var created struct {
		Message string  `json:"message"`
		Data    Summary `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)
	if rec.Code != http.StatusCreated || created.Message != "Éxito al crear la cita médica Luis Mora - Programada." {
		t.Fatalf("unexpected response %d %q", rec.Code, created.Message)
	}

	rec = httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(created.Data.ID.String())
	if err := h.Get(c); err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["estado"] != "Programada" || got["hora_cita"] != "09:00" {
		t.Errorf("unexpected detail %v", got)
	}
}

func TestHandler_SundayRejected(t *testing.T) {
	svc, _, _, _, p := newTestService()
	h := NewHandler(svc)
	e := newTestEcho()

	body := fmt.Sprintf(`{"paciente_id":%q,"fecha":"2024-11-03","hora_cita":"09:00","estado":"P"}`, p.ID)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	e.HTTPErrorHandler(h.Create(c), c)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body422 apperr.ValidationError
	json.Unmarshal(rec.Body.Bytes(), &body422)
	if body422.Fields["fecha"][0] != msgSunday {
		t.Errorf("unexpected errors %v", body422.Fields)
	}
}

func TestHandler_CountTodayRoute(t *testing.T) {
	svc, repo, _, _, p := newTestService()
	repo.appts[uuid.New()] = &Appointment{PatientID: p.ID, Date: svc.today(), Time: "09:00", Status: StatusProgrammed}
	e := newTestEcho()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments/today/count", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"citas_hoy":1}` {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_WritesNeedRole(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	e := newTestEcho()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/appointments/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without roles, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/appointments/"+uuid.NewString(), nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.UserRolesKey, []string{auth.RoleStaff}))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for staff on a missing appointment, got %d", rec.Code)
	}
}

func TestHandler_ListStatusFilter(t *testing.T) {
	svc, repo, _, _, p := newTestService()
	repo.appts[uuid.New()] = &Appointment{PatientID: p.ID, Date: "2024-11-05", Time: "09:00", Status: StatusProgrammed}
	repo.appts[uuid.New()] = &Appointment{PatientID: p.ID, Date: "2024-11-05", Time: "10:00", Status: StatusCancelled}
	h := NewHandler(svc)
	e := newTestEcho()

	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/appointments?estado=C", nil), rec)); err != nil {
		t.Fatal(err)
	}
	var page struct {
		Total int       `json:"total"`
		Data  []Summary `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 1 || page.Data[0].StatusLabel != "Cancelada" {
		t.Errorf("unexpected page %+v", page)
	}
}
