package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/platform/apperr"
)

// Table is the audit table name of appointments.
const Table = "appointment"

const (
	StatusProgrammed = "P"
	StatusCancelled  = "C"
	StatusCompleted  = "R"
)

var statusLabels = map[string]string{
	StatusProgrammed: "Programada",
	StatusCancelled:  "Cancelada",
	StatusCompleted:  "Realizada",
}

// StatusLabel returns the display name of a status code.
func StatusLabel(code string) string {
	return statusLabels[code]
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Appointment is one booked slot. Date is YYYY-MM-DD and Time HH:MM, both in
// clinic local time.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"paciente_id"`
	Date      string    `json:"fecha"`
	Time      string    `json:"hora_cita"`
	Status    string    `json:"estado"`
	CreatedAt time.Time `json:"-"`
}

// Normalize trims input and drops a zero seconds field from the time.
// Non-zero seconds are kept so Validate rejects them.
func (a *Appointment) Normalize() {
	a.Date = strings.TrimSpace(a.Date)
	a.Time = strings.TrimSpace(a.Time)
	a.Status = strings.ToUpper(strings.TrimSpace(a.Status))
	if t, err := time.Parse("15:04:05", a.Time); err == nil && t.Second() == 0 {
		a.Time = t.Format(timeLayout)
	}
}

// Validate checks required fields and formats. It reports the parsed date
// and time when both are usable.
func (a *Appointment) Validate(v *apperr.ValidationError) (day time.Time, at time.Time, ok bool) {
	if a.PatientID == uuid.Nil {
		v.AddField("paciente_id", "Seleccione un paciente para la cita médica.")
	}
	if StatusLabel(a.Status) == "" {
		v.AddField("estado", "Selecione el estado de la cita médica.")
	}
	dateOK, timeOK := false, false
	if a.Date == "" {
		v.AddField("fecha", "Ingresar Fecha para la cita médica.")
	} else if d, err := time.Parse(dateLayout, a.Date); err != nil {
		v.AddField("fecha", "Fecha inválida, use el formato AAAA-MM-DD.")
	} else {
		day, dateOK = d, true
	}
	if a.Time == "" {
		v.AddField("hora_cita", "Ingresar hora de la cita médica.")
	} else if t, err := time.Parse(timeLayout, a.Time); err != nil {
		if _, serr := time.Parse("15:04:05", a.Time); serr == nil {
			v.AddField("hora_cita", "La hora de la cita debe ser en minutos exactos, sin segundos.")
		} else {
			v.AddField("hora_cita", "Hora inválida, use el formato HH:MM.")
		}
	} else {
		at, timeOK = t, true
	}
	return day, at, dateOK && timeOK
}

// Summary is the list and detail view of an appointment.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"paciente_id"`
	Patient     string    `json:"paciente"`
	Cedula      string    `json:"cedula"`
	Date        string    `json:"fecha"`
	Time        string    `json:"hora_cita"`
	Status      string    `json:"estado_codigo"`
	StatusLabel string    `json:"estado"`
}

// Filter narrows the list. ByCedula matches Query against the patient's
// cedula only.
type Filter struct {
	Query    string
	ByCedula bool
	Status   string
}
