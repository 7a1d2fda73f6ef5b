package billing

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/platform/apperr"
)

// Audit table names.
const (
	ServiceTable = "additional_service"
	CostTable    = "encounter_cost"
)

// AdditionalService is a billable extra such as an X-ray or a minor procedure.
type AdditionalService struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"nombre_servicio"`
	Cost        float64   `json:"costo_servicio"`
	Description string    `json:"descripcion"`
	Active      bool      `json:"activo"`
	CreatedAt   time.Time `json:"-"`
}

func (s *AdditionalService) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Description = strings.TrimSpace(s.Description)
}

func (s *AdditionalService) Validate() *apperr.ValidationError {
	v := &apperr.ValidationError{}
	switch {
	case s.Name == "":
		v.AddField("nombre_servicio", "Ingrese el nombre del servicio.")
	case utf8.RuneCountInString(s.Name) > 255:
		v.AddField("nombre_servicio", "El nombre del servicio no puede superar 255 caracteres.")
	}
	if s.Cost <= 0 {
		v.AddField("costo_servicio", "El costo del servicio debe ser mayor a cero.")
	}
	return v
}

// Cost is the bill of one encounter: the selected additional services plus
// the medication dispensed. Total is always computed, never taken from input.
type Cost struct {
	ID           uuid.UUID   `json:"id"`
	EncounterID  uuid.UUID   `json:"atencion_id"`
	ServiceIDs   []uuid.UUID `json:"servicio_ids"`
	Total        float64     `json:"total"`
	RegisteredAt time.Time   `json:"fecha_registro"`
	Active       bool        `json:"activo"`
}

func (c *Cost) normalize() {
	seen := make(map[uuid.UUID]bool, len(c.ServiceIDs))
	ids := make([]uuid.UUID, 0, len(c.ServiceIDs))
	for _, id := range c.ServiceIDs {
		if id != uuid.Nil && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	c.ServiceIDs = ids
}

// Breakdown is the computed bill of a cost.
type Breakdown struct {
	Services        []*AdditionalService `json:"servicios"`
	ServicesTotal   float64              `json:"total_servicios"`
	MedicationTotal float64              `json:"total_medicamentos"`
	Total           float64              `json:"total"`
}

// roundCents rounds half away from zero to two decimals.
func roundCents(x float64) float64 {
	return math.Round(x*100) / 100
}

// CostDetail is the read model of GET /costs/:id.
type CostDetail struct {
	*Cost
	Patient   string    `json:"paciente"`
	Breakdown Breakdown `json:"desglose"`
}

// CostSummary is one row of the cost list.
type CostSummary struct {
	Cost
	Patient string `json:"paciente"`
	Cedula  string `json:"cedula"`
}

type Filter struct {
	Query  string
	Active *bool
}
