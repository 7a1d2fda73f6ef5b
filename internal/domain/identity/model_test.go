package identity

import (
	"testing"
	"time"
)

func TestValidCedula(t *testing.T) {
	tests := []struct {
		cedula string
		want   bool
	}{
		{"1710034065", true},
		{"0926687856", true},
		{"1104680135", true},
		{"1710034064", false}, // check digit
		{"2510034065", false}, // province
		{"1770034065", false}, // third digit
		{"171003406", false},
		{"17100340A5", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidCedula(tt.cedula); got != tt.want {
			t.Errorf("ValidCedula(%q) = %v, want %v", tt.cedula, got, tt.want)
		}
	}
}

func TestAge(t *testing.T) {
	today := time.Date(2024, 11, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		birth string
		want  int
	}{
		{"1990-11-04", 34},
		{"1990-11-05", 33},
		{"2000-02-29", 24},
		{"2024-01-01", 0},
	}
	for _, tt := range tests {
		got := Age(tt.birth, today)
		if got == nil || *got != tt.want {
			t.Errorf("Age(%s) = %v, want %d", tt.birth, got, tt.want)
		}
	}
	if Age("", today) != nil || Age("04/11/1990", today) != nil {
		t.Error("malformed dates must yield nil")
	}
}

func TestPatientValidate(t *testing.T) {
	today := time.Date(2024, 11, 4, 0, 0, 0, 0, time.UTC)
	lat := 120.0
	p := &Patient{Cedula: "123", BirthDate: "2030-01-01", Sex: "X", MaritalStatus: "Z", Email: "nope", Latitude: &lat}
	v := p.Validate(today)
	for _, f := range []string{"nombres", "apellidos", "cedula", "fecha_nacimiento", "sexo", "estado_civil", "email", "latitud"} {
		if len(v.Fields[f]) == 0 {
			t.Errorf("expected error on %s", f)
		}
	}

	ok := &Patient{FirstNames: "Ana", LastNames: "Mora", Cedula: "1710034065", BirthDate: "1990-05-01", Sex: "F", Email: "ana@example.com"}
	if v := ok.Validate(today); !v.Empty() {
		t.Errorf("unexpected errors %+v", v)
	}
}

func TestDoctorNormalizeDefaults(t *testing.T) {
	d := &Doctor{Code: " md-001 "}
	d.Normalize()
	if d.Code != "MD-001" || d.AppointmentMinutes != 30 {
		t.Errorf("unexpected normalization %+v", d)
	}
}
