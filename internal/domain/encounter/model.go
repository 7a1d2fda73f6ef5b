package encounter

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/platform/apperr"
)

// Table is the audit table name of encounters.
const Table = "encounter"

// Encounter is the header of one clinical visit.
type Encounter struct {
	ID           uuid.UUID   `json:"id"`
	PatientID    uuid.UUID   `json:"paciente_id"`
	CreatedAt    time.Time   `json:"fecha_atencion"`
	Reason       string      `json:"motivo_consulta"`
	Treatment    string      `json:"tratamiento"`
	Comment      string      `json:"comentario"`
	DiagnosisIDs []uuid.UUID `json:"diagnostico_ids"`
}

// Line is one prescribed medication of an encounter. A medication appears at
// most once per encounter.
type Line struct {
	ID           uuid.UUID `json:"id"`
	EncounterID  uuid.UUID `json:"atencion_id"`
	MedicationID uuid.UUID `json:"medicamento_id"`
	Quantity     int       `json:"cantidad"`
	Prescription string    `json:"prescripcion"`
	DurationDays *int      `json:"duracion_tratamiento,omitempty"`
}

// Input is the header part of a save. ID is nil on create.
type Input struct {
	ID           *uuid.UUID  `json:"-"`
	PatientID    uuid.UUID   `json:"paciente_id"`
	Reason       string      `json:"motivo_consulta"`
	Treatment    string      `json:"tratamiento"`
	Comment      string      `json:"comentario"`
	DiagnosisIDs []uuid.UUID `json:"diagnostico_ids"`
}

func (in *Input) normalize() {
	in.Reason = strings.TrimSpace(in.Reason)
	in.Treatment = strings.TrimSpace(in.Treatment)
	in.Comment = strings.TrimSpace(in.Comment)
	seen := make(map[uuid.UUID]bool, len(in.DiagnosisIDs))
	ids := in.DiagnosisIDs[:0]
	for _, id := range in.DiagnosisIDs {
		if id != uuid.Nil && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	in.DiagnosisIDs = ids
}

func (in *Input) validate(v *apperr.ValidationError) {
	if in.PatientID == uuid.Nil {
		v.AddField("paciente_id", "El paciente es obligatorio.")
	}
	if in.Reason == "" {
		v.AddField("motivo_consulta", "El motivo de consulta es obligatorio.")
	}
	if in.Treatment == "" {
		v.AddField("tratamiento", "El tratamiento es obligatorio.")
	}
	if len(in.DiagnosisIDs) == 0 {
		v.AddField("diagnostico_ids", "Seleccione al menos un diagnóstico.")
	}
}

// LineChange is one row of the detail grid. ID references a stored line;
// without it the row is new. Delete drops the referenced line.
type LineChange struct {
	ID           *uuid.UUID `json:"id,omitempty"`
	MedicationID uuid.UUID  `json:"medicamento_id"`
	Quantity     int        `json:"cantidad"`
	Prescription string     `json:"prescripcion"`
	DurationDays *int       `json:"duracion_tratamiento,omitempty"`
	Delete       bool       `json:"eliminar,omitempty"`
}

// blank reports an untouched extra row, which is ignored.
func (c LineChange) blank() bool {
	return c.ID == nil && c.MedicationID == uuid.Nil && c.Quantity == 0 && strings.TrimSpace(c.Prescription) == ""
}

// Summary is one row of the encounter list.
type Summary struct {
	ID                uuid.UUID `json:"id"`
	CreatedAt         time.Time `json:"fecha_atencion"`
	PatientID         uuid.UUID `json:"paciente_id"`
	PatientFirstNames string    `json:"nombres"`
	PatientLastNames  string    `json:"apellidos"`
	PatientCedula     string    `json:"cedula"`
	Reason            string    `json:"motivo_consulta"`
}

type Filter struct {
	Query string
}

// Detail is the read model of GET /encounters/:id.
type Detail struct {
	ID        uuid.UUID      `json:"id"`
	Date      string         `json:"fecha_atencion"`
	Reason    string         `json:"motivo_consulta"`
	Treatment string         `json:"tratamiento"`
	Comment   string         `json:"comentario"`
	Diagnoses []string       `json:"diagnostico"`
	Patient   PatientSummary `json:"paciente"`
	Lines     []LineDetail   `json:"detalles"`
}

type PatientSummary struct {
	ID         uuid.UUID `json:"id"`
	FirstNames string    `json:"nombres"`
	LastNames  string    `json:"apellidos"`
	Cedula     string    `json:"cedula"`
	Email      string    `json:"email"`
	Sex        string    `json:"sexo"`
	BirthDate  *string   `json:"fecha_nacimiento"`
	Age        *int      `json:"edad"`
	Photo      string    `json:"foto"`
}

type LineDetail struct {
	Medication   MedicationSummary `json:"medicamento"`
	Quantity     int               `json:"cantidad"`
	Prescription string            `json:"prescripcion"`
	DurationDays *int              `json:"duracion_tratamiento"`
}

type MedicationSummary struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"nombre"`
	Concentration string    `json:"concentracion"`
	Description   string    `json:"descripcion"`
	Price         float64   `json:"precio"`
}
