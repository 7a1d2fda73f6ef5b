package exams

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/platform/apperr"
)

// Table is the audit table name of exam requests.
const Table = "exam_request"

const (
	StatusRequested = "S"
	StatusDone      = "R"
)

var statusLabels = map[string]string{
	StatusRequested: "Solicitado",
	StatusDone:      "Realizado",
}

func StatusLabel(code string) string {
	return statusLabels[code]
}

// Request is one exam ordered for a patient. RequestedOn is set on create and
// never changes.
type Request struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"nombre_examen"`
	PatientID   uuid.UUID `json:"paciente_id"`
	RequestedOn string    `json:"fecha_solicitud"`
	ResultKey   string    `json:"resultado,omitempty"`
	Comment     string    `json:"comentario"`
	Status      string    `json:"estado"`
	CreatedAt   time.Time `json:"-"`
}

func (r *Request) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Comment = strings.TrimSpace(r.Comment)
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
	if r.Status == "" {
		r.Status = StatusRequested
	}
}

func (r *Request) Validate() *apperr.ValidationError {
	v := &apperr.ValidationError{}
	switch {
	case r.Name == "":
		v.AddField("nombre_examen", "Ingrese el nombre del examen.")
	case utf8.RuneCountInString(r.Name) > 255:
		v.AddField("nombre_examen", "El nombre del examen no puede superar 255 caracteres.")
	}
	if r.PatientID == uuid.Nil {
		v.AddField("paciente_id", "Seleccione un paciente para el examen.")
	}
	if StatusLabel(r.Status) == "" {
		v.AddField("estado", "Seleccione el estado del examen.")
	}
	return v
}

// Summary is the list row of an exam request.
type Summary struct {
	Request
	Patient     string `json:"paciente"`
	Cedula      string `json:"cedula"`
	StatusLabel string `json:"estado_nombre"`
	HasResult   bool   `json:"tiene_resultado"`
}

type Filter struct {
	Query  string
	Status string
}
