package medication

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/platform/apperr"
)

// Table is the audit table name of medications.
const Table = "medication"

type Medication struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"nombre"`
	TypeID        *uuid.UUID `json:"tipo_id,omitempty"`
	BrandID       *uuid.UUID `json:"marca_id,omitempty"`
	Concentration string     `json:"concentracion"`
	Description   string     `json:"descripcion"`
	Price         float64    `json:"precio"`
	Stock         int        `json:"cantidad"`
	Commercial    bool       `json:"comercial"`
	Active        bool       `json:"activo"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (m *Medication) Normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Concentration = strings.TrimSpace(m.Concentration)
	m.Description = strings.TrimSpace(m.Description)
}

func (m *Medication) Validate() *apperr.ValidationError {
	v := &apperr.ValidationError{}
	if m.Name == "" {
		v.AddField("nombre", "El nombre es obligatorio.")
	}
	if m.Price <= 0 {
		v.AddField("precio", "El precio debe ser mayor que cero.")
	}
	if m.Stock < 0 {
		v.AddField("cantidad", "La cantidad en stock no puede ser negativa.")
	}
	return v
}

type Filter struct {
	Query  string
	Active *bool
}
