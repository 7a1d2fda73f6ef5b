package exams

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
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

func TestHandler_CreateAndList(t *testing.T) {
	env := newEnv()
	h := NewHandler(env.svc)
	e := newTestEcho()

	body := fmt.Sprintf(`{"nombre_examen":"Glucosa","paciente_id":%q}`, env.patient.ID)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), "Éxito al solicitar el examen Glucosa.") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/exams?estado=S", nil), rec)); err != nil {
		t.Fatal(err)
	}
	var page struct {
		Total int `json:"total"`
		Data  []map[string]interface{}
	}
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 1 || page.Data[0]["estado_nombre"] != "Solicitado" || page.Data[0]["tiene_resultado"] != false {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestHandler_ResultRoundTrip(t *testing.T) {
	env := newEnv()
	h := NewHandler(env.svc)
	e := newTestEcho()
	r := env.create(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	e.HTTPErrorHandler(h.GetResult(c), c)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before upload, got %d", rec.Code)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="resultado"; filename="glucosa.pdf"`)
	hdr.Set("Content-Type", "application/pdf")
	part, _ := w.CreatePart(hdr)
	part.Write([]byte("%PDF-1.4"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	if err := h.UploadResult(c); err != nil {
		t.Fatalf("upload: %v", err)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	if err := h.GetResult(c); err != nil {
		t.Fatal(err)
	}
	if rec.Body.String() != "%PDF-1.4" || rec.Header().Get(echo.HeaderContentType) != "application/pdf" {
		t.Errorf("unexpected download %q %s", rec.Body.String(), rec.Header().Get(echo.HeaderContentType))
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "glucosa.pdf") {
		t.Errorf("unexpected disposition %s", rec.Header().Get(echo.HeaderContentDisposition))
	}
}
