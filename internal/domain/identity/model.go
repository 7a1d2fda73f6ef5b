package identity

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/platform/apperr"
)

const (
	PatientTable  = "patient"
	DoctorTable   = "doctor"
	EmployeeTable = "employee"
)

const dateLayout = "2006-01-02"

var sexLabels = map[string]string{"M": "Masculino", "F": "Femenino"}

var maritalLabels = map[string]string{
	"S": "Soltero",
	"C": "Casado",
	"D": "Divorciado",
	"V": "Viudo",
	"U": "Unión libre",
}

// Patient maps to the patient table. Dates are YYYY-MM-DD strings.
type Patient struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	FirstNames        string     `db:"first_names" json:"nombres"`
	LastNames         string     `db:"last_names" json:"apellidos"`
	Cedula            string     `db:"cedula" json:"cedula"`
	BirthDate         string     `db:"birth_date" json:"fecha_nacimiento"`
	Sex               string     `db:"sex" json:"sexo"`
	MaritalStatus     string     `db:"marital_status" json:"estado_civil"`
	BloodTypeID       *uuid.UUID `db:"blood_type_id" json:"tipo_sangre_id,omitempty"`
	Phone             string     `db:"phone" json:"telefono"`
	Email             string     `db:"email" json:"email"`
	Address           string     `db:"address" json:"direccion"`
	Latitude          *float64   `db:"latitude" json:"latitud,omitempty"`
	Longitude         *float64   `db:"longitude" json:"longitud,omitempty"`
	PhotoKey          string     `db:"photo_key" json:"foto,omitempty"`
	Allergies         string     `db:"allergies" json:"alergias"`
	ChronicDiseases   string     `db:"chronic_diseases" json:"enfermedades_cronicas"`
	CurrentMedication string     `db:"current_medication" json:"medicacion_actual"`
	PreviousSurgeries string     `db:"previous_surgeries" json:"cirugias_previas"`
	PersonalHistory   string     `db:"personal_history" json:"antecedentes_personales"`
	FamilyHistory     string     `db:"family_history" json:"antecedentes_familiares"`
	Active            bool       `db:"active" json:"activo"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstNames + " " + p.LastNames)
}

func (p *Patient) Normalize() {
	p.FirstNames = strings.TrimSpace(p.FirstNames)
	p.LastNames = strings.TrimSpace(p.LastNames)
	p.Cedula = strings.TrimSpace(p.Cedula)
	p.Sex = strings.ToUpper(strings.TrimSpace(p.Sex))
	p.MaritalStatus = strings.ToUpper(strings.TrimSpace(p.MaritalStatus))
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
}

func (p *Patient) Validate(today time.Time) *apperr.ValidationError {
	v := &apperr.ValidationError{}
	validatePerson(v, p.FirstNames, p.LastNames, p.Cedula, p.Email)
	validateBirthDate(v, p.BirthDate, today, true)
	if _, ok := sexLabels[p.Sex]; !ok {
		v.AddField("sexo", "El sexo debe ser M o F.")
	}
	if p.MaritalStatus != "" {
		if _, ok := maritalLabels[p.MaritalStatus]; !ok {
			v.AddField("estado_civil", "Estado civil inválido.")
		}
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		v.AddField("latitud", "La latitud debe estar entre -90 y 90.")
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		v.AddField("longitud", "La longitud debe estar entre -180 y 180.")
	}
	return v
}

// PatientDetail is the read model of GET /patients/:id.
type PatientDetail struct {
	*Patient
	FullName           string  `json:"paciente"`
	Age                *int    `json:"edad"`
	SexLabel           string  `json:"sexo_display,omitempty"`
	MaritalStatusLabel string  `json:"estado_civil_display,omitempty"`
	BloodType          *string `json:"tipo_sangre"`
}

type PatientFilter struct {
	Query string
	Sex   string
}

type Doctor struct {
	ID                 uuid.UUID   `db:"id" json:"id"`
	FirstNames         string      `db:"first_names" json:"nombres"`
	LastNames          string      `db:"last_names" json:"apellidos"`
	Cedula             string      `db:"cedula" json:"cedula"`
	Code               string      `db:"code" json:"codigo_unico"`
	SpecialtyIDs       []uuid.UUID `db:"-" json:"especialidad_ids"`
	Phone              string      `db:"phone" json:"telefonos"`
	Email              string      `db:"email" json:"email"`
	BirthDate          string      `db:"birth_date" json:"fecha_nacimiento,omitempty"`
	Address            string      `db:"address" json:"direccion"`
	YearsExperience    int         `db:"years_experience" json:"experiencia"`
	WorkingHours       string      `db:"working_hours" json:"horario_atencion"`
	AppointmentMinutes int         `db:"appointment_minutes" json:"duracion_cita"`
	SignatureKey       string      `db:"signature_key" json:"firma_digital,omitempty"`
	Active             bool        `db:"active" json:"activo"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
}

func (d *Doctor) Normalize() {
	d.FirstNames = strings.TrimSpace(d.FirstNames)
	d.LastNames = strings.TrimSpace(d.LastNames)
	d.Cedula = strings.TrimSpace(d.Cedula)
	d.Code = strings.ToUpper(strings.TrimSpace(d.Code))
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	if d.AppointmentMinutes == 0 {
		d.AppointmentMinutes = 30
	}
}

func (d *Doctor) Validate(today time.Time) *apperr.ValidationError {
	v := &apperr.ValidationError{}
	validatePerson(v, d.FirstNames, d.LastNames, d.Cedula, d.Email)
	validateBirthDate(v, d.BirthDate, today, false)
	if d.Code == "" {
		v.AddField("codigo_unico", "El código único del doctor es obligatorio.")
	}
	if len(d.SpecialtyIDs) == 0 {
		v.AddField("especialidad_ids", "Seleccione al menos una especialidad.")
	}
	if d.YearsExperience < 0 {
		v.AddField("experiencia", "Los años de experiencia no pueden ser negativos.")
	}
	if d.AppointmentMinutes < 0 {
		v.AddField("duracion_cita", "La duración de la cita debe ser positiva.")
	}
	return v
}

type DoctorDetail struct {
	*Doctor
	Age         *int     `json:"edad"`
	Specialties []string `json:"especialidad"`
}

type Employee struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	FirstNames string     `db:"first_names" json:"nombres"`
	LastNames  string     `db:"last_names" json:"apellidos"`
	Cedula     string     `db:"cedula" json:"cedula"`
	CargoID    *uuid.UUID `db:"cargo_id" json:"cargo_id,omitempty"`
	Salary     float64    `db:"salary" json:"sueldo"`
	HireDate   string     `db:"hire_date" json:"fecha_ingreso"`
	BirthDate  string     `db:"birth_date" json:"fecha_nacimiento,omitempty"`
	Phone      string     `db:"phone" json:"telefono"`
	Email      string     `db:"email" json:"email"`
	Address    string     `db:"address" json:"direccion"`
	Active     bool       `db:"active" json:"activo"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

func (e *Employee) Normalize() {
	e.FirstNames = strings.TrimSpace(e.FirstNames)
	e.LastNames = strings.TrimSpace(e.LastNames)
	e.Cedula = strings.TrimSpace(e.Cedula)
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
}

func (e *Employee) Validate(today time.Time) *apperr.ValidationError {
	v := &apperr.ValidationError{}
	validatePerson(v, e.FirstNames, e.LastNames, e.Cedula, e.Email)
	validateBirthDate(v, e.BirthDate, today, false)
	if e.CargoID == nil {
		v.AddField("cargo_id", "El cargo es obligatorio.")
	}
	if e.Salary <= 0 {
		v.AddField("sueldo", "El sueldo debe ser mayor que cero.")
	}
	if e.HireDate == "" {
		v.AddField("fecha_ingreso", "La fecha de ingreso es obligatoria.")
	} else if _, err := time.Parse(dateLayout, e.HireDate); err != nil {
		v.AddField("fecha_ingreso", "Fecha inválida, use el formato AAAA-MM-DD.")
	}
	return v
}

type EmployeeDetail struct {
	*Employee
	Age   *int    `json:"edad"`
	Cargo *string `json:"cargo"`
}

// Filter is shared by the doctor and employee lists.
type Filter struct {
	Query  string
	Active *bool
}

func validatePerson(v *apperr.ValidationError, first, last, cedula, email string) {
	if first == "" {
		v.AddField("nombres", "Los nombres son obligatorios.")
	}
	if last == "" {
		v.AddField("apellidos", "Los apellidos son obligatorios.")
	}
	if !ValidCedula(cedula) {
		v.AddField("cedula", "Cédula inválida.")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			v.AddField("email", "Correo electrónico inválido.")
		}
	}
}

func validateBirthDate(v *apperr.ValidationError, date string, today time.Time, required bool) {
	if date == "" {
		if required {
			v.AddField("fecha_nacimiento", "La fecha de nacimiento es obligatoria.")
		}
		return
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		v.AddField("fecha_nacimiento", "Fecha inválida, use el formato AAAA-MM-DD.")
		return
	}
	if d.After(today) {
		v.AddField("fecha_nacimiento", "La fecha de nacimiento no puede ser futura.")
	}
}

// ValidCedula checks an Ecuadorian national id: ten digits, a valid province
// prefix, a third digit below 6 and the modulo 10 check digit.
func ValidCedula(c string) bool {
	if len(c) != 10 {
		return false
	}
	d := make([]int, 10)
	for i, r := range c {
		if r < '0' || r > '9' {
			return false
		}
		d[i] = int(r - '0')
	}
	province := d[0]*10 + d[1]
	if (province < 1 || province > 24) && province != 30 {
		return false
	}
	if d[2] >= 6 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		n := d[i]
		if i%2 == 0 {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
	}
	check := (10 - sum%10) % 10
	return check == d[9]
}

// Age returns completed years between birthDate and today, or nil when the
// date is empty or malformed.
func Age(birthDate string, today time.Time) *int {
	b, err := time.Parse(dateLayout, birthDate)
	if err != nil {
		return nil
	}
	years := today.Year() - b.Year()
	if today.Month() < b.Month() || (today.Month() == b.Month() && today.Day() < b.Day()) {
		years--
	}
	return &years
}
