package billing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/saludsync/clinic/internal/platform/apperr"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	return e
}

func postJSON(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_CreateServiceDefaultsActive(t *testing.T) {
	env := newEnv()
	h := NewHandler(env.svc)
	e := newTestEcho()

	rec := httptest.NewRecorder()
	if err := h.CreateService(e.NewContext(postJSON(`{"nombre_servicio":"Curación","costo_servicio":4.5}`), rec)); err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Message string            `json:"message"`
		Data    AdditionalService `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusCreated || resp.Message != "Éxito al crear el servicio Curación." || !resp.Data.Active {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_CreateServiceInvalid(t *testing.T) {
	env := newEnv()
	h := NewHandler(env.svc)
	e := newTestEcho()

	rec := httptest.NewRecorder()
	c := e.NewContext(postJSON(`{"nombre_servicio":"Curación","costo_servicio":0,"activo":false}`), rec)
	e.HTTPErrorHandler(h.CreateService(c), c)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "mayor a cero") {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_CostLifecycle(t *testing.T) {
	env := newEnv()
	h := NewHandler(env.svc)
	e := newTestEcho()

	body := fmt.Sprintf(`{"atencion_id":%q,"servicio_ids":[%q],"total":999}`, env.enc.ID, env.lab.ID)
	rec := httptest.NewRecorder()
	if err := h.CreateCost(e.NewContext(postJSON(body), rec)); err != nil {
		t.Fatal(err)
	}
	var created struct {
		Data Cost `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)
	if rec.Code != http.StatusCreated || created.Data.Total != 7.55 {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(created.Data.ID.String())
	if err := h.GetCost(c); err != nil {
		t.Fatal(err)
	}
	var detail map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &detail)
	desglose, _ := detail["desglose"].(map[string]interface{})
	if detail["paciente"] != "Ana Vera" || desglose["total_medicamentos"] != 2.05 {
		t.Errorf("unexpected detail %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(created.Data.ID.String())
	if err := h.DeleteCost(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), "Éxito al eliminar los costos de la atención.") {
		t.Errorf("unexpected delete response %s", rec.Body.String())
	}
	if len(env.costs.items) != 0 {
		t.Error("cost not deleted")
	}
}

func TestHandler_CostNotFound(t *testing.T) {
	env := newEnv()
	h := NewHandler(env.svc)
	e := newTestEcho()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("8b0f5c3e-2f7a-4c55-9d1e-0b7a5f1d2c33")
	e.HTTPErrorHandler(h.GetCost(c), c)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
