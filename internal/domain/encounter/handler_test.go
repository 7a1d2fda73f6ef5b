package encounter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(auth.WithActor(req.Context(), actor))
}

func TestHandler_CreateAndGet(t *testing.T) {
	env := newEnv()
	h := NewHandler(env.svc)
	e := newTestEcho()

	body := fmt.Sprintf(`{"paciente_id":%q,"motivo_consulta":"Fiebre","tratamiento":"Reposo",
		"diagnostico_ids":[%q],"detalles":[{"medicamento_id":%q,"cantidad":2,"prescripcion":"cada 8h"},{}]}`,
		env.patient.ID, env.dx[0].ID, env.amox.ID)
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(jsonRequest(http.MethodPost, body), rec)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created struct {
		Message string `json:"message"`
		Data    Detail `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.Message != "Éxito al crear la atención para el paciente Ana Vera." {
		t.Errorf("unexpected message %q", created.Message)
	}
	if len(created.Data.Lines) != 1 || created.Data.Lines[0].Quantity != 2 {
		t.Errorf("unexpected lines %+v", created.Data.Lines)
	}

	rec = httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(created.Data.ID.String())
	if err := h.Get(c); err != nil {
		t.Fatalf("get: %v", err)
	}
	var got map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &got)
	for _, k := range []string{"fecha_atencion", "motivo_consulta", "diagnostico", "paciente", "detalles"} {
		if _, ok := got[k]; !ok {
			t.Errorf("missing key %s in %v", k, got)
		}
	}
}

func TestHandler_CreateRejected(t *testing.T) {
	env := newEnv()
	h := NewHandler(env.svc)
	e := newTestEcho()

	body := fmt.Sprintf(`{"paciente_id":%q,"motivo_consulta":"Fiebre","tratamiento":"Reposo",
		"diagnostico_ids":[%q],"detalles":[{"medicamento_id":%q,"cantidad":11}]}`,
		env.patient.ID, env.dx[0].ID, env.amox.ID)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)
	e.HTTPErrorHandler(h.Create(c), c)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Stock insuficiente") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	env := newEnv()
	h := NewHandler(env.svc)
	e := newTestEcho()
	enc, err := env.svc.Save(context.Background(), env.input(), []LineChange{{MedicationID: env.amox.ID, Quantity: 4}}, actor)
	if err != nil {
		t.Fatal(err)
	}
	lineID := env.repo.lines[0].ID

	body := fmt.Sprintf(`{"paciente_id":%q,"motivo_consulta":"Control","tratamiento":"Seguir",
		"diagnostico_ids":[%q],"detalles":[{"id":%q,"eliminar":true},{"medicamento_id":%q,"cantidad":1}]}`,
		env.patient.ID, env.dx[1].ID, lineID, env.para.ID)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, body), rec)
	c.SetParamNames("id")
	c.SetParamValues(enc.ID.String())
	if err := h.Update(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Éxito al modificar la atención") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if env.amox.Stock != 10 || env.para.Stock != 49 {
		t.Errorf("unexpected stock amox=%d para=%d", env.amox.Stock, env.para.Stock)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodDelete, ""), rec)
	c.SetParamNames("id")
	c.SetParamValues(enc.ID.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Atención eliminada exitosamente.") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if env.para.Stock != 50 {
		t.Errorf("expected stock restored, got %d", env.para.Stock)
	}
}

func TestHandler_WriteRequiresDoctor(t *testing.T) {
	env := newEnv()
	e := newTestEcho()
	NewHandler(env.svc).RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/encounters", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(context.WithValue(req.Context(), auth.UserRolesKey, []string{auth.RoleStaff}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	env := newEnv()
	h := NewHandler(env.svc)
	e := newTestEcho()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("8a7c0f4e-52a4-4cb8-9b8e-2f1c7a3d9e10")
	e.HTTPErrorHandler(h.Get(c), c)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
