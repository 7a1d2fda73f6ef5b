package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/platform/apperr"
)

// Kind names one reference list. It doubles as the audit table name.
type Kind string

const (
	BloodType     Kind = "blood_type"
	Specialty     Kind = "specialty"
	Cargo         Kind = "cargo"
	MedicineType  Kind = "medicine_type"
	MedicineBrand Kind = "medicine_brand"
	ExamCategory  Kind = "exam_category"
	Diagnosis     Kind = "diagnosis"
)

var kindLabels = map[Kind]string{
	BloodType:     "tipo de sangre",
	Specialty:     "especialidad",
	Cargo:         "cargo",
	MedicineType:  "tipo de medicamento",
	MedicineBrand: "marca de medicamento",
	ExamCategory:  "categoría de examen",
	Diagnosis:     "diagnóstico",
}

// ParseKind accepts the kind as used in URLs, with dashes or underscores.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	_, ok := kindLabels[k]
	return k, ok
}

func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

type Item struct {
	ID          uuid.UUID `json:"id"`
	Kind        Kind      `json:"tipo"`
	Code        string    `json:"codigo,omitempty"`
	Name        string    `json:"nombre"`
	Description string    `json:"descripcion"`
	Active      bool      `json:"activo"`
	CreatedAt   time.Time `json:"-"`
}

func (it *Item) Normalize() {
	it.Code = strings.ToUpper(strings.TrimSpace(it.Code))
	it.Name = strings.TrimSpace(it.Name)
	it.Description = strings.TrimSpace(it.Description)
}

func (it *Item) Validate() error {
	v := &apperr.ValidationError{}
	if it.Name == "" {
		v.AddField("nombre", "El nombre es obligatorio.")
	} else if len(it.Name) > 100 {
		v.AddField("nombre", "El nombre no puede superar 100 caracteres.")
	}
	if it.Kind == Diagnosis && it.Code == "" {
		v.AddField("codigo", "El código del diagnóstico es obligatorio.")
	}
	if len(it.Code) > 20 {
		v.AddField("codigo", "El código no puede superar 20 caracteres.")
	}
	return v.Err()
}

type Filter struct {
	Kind   Kind
	Query  string
	Active *bool
}
