package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/db"
)

// -- Patient --

type patientRepoPG struct{ pool db.Pool }

func NewPatientRepoPG(pool db.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, first_names, last_names, cedula, to_char(birth_date, 'YYYY-MM-DD'), sex, marital_status,
	blood_type_id, phone, email, address, latitude, longitude, photo_key, allergies, chronic_diseases,
	current_medication, previous_surgeries, personal_history, family_history, active, created_at`

const dupCedula = "Ya existe un registro con esa cédula."

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstNames, &p.LastNames, &p.Cedula, &p.BirthDate, &p.Sex, &p.MaritalStatus,
		&p.BloodTypeID, &p.Phone, &p.Email, &p.Address, &p.Latitude, &p.Longitude, &p.PhotoKey,
		&p.Allergies, &p.ChronicDiseases, &p.CurrentMedication, &p.PreviousSurgeries,
		&p.PersonalHistory, &p.FamilyHistory, &p.Active, &p.CreatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient (id, first_names, last_names, cedula, birth_date, sex, marital_status,
			blood_type_id, phone, email, address, latitude, longitude, photo_key, allergies, chronic_diseases,
			current_medication, previous_surgeries, personal_history, family_history, active, created_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		p.ID, p.FirstNames, p.LastNames, p.Cedula, p.BirthDate, p.Sex, p.MaritalStatus,
		p.BloodTypeID, p.Phone, p.Email, p.Address, p.Latitude, p.Longitude, p.PhotoKey,
		p.Allergies, p.ChronicDiseases, p.CurrentMedication, p.PreviousSurgeries,
		p.PersonalHistory, p.FamilyHistory, p.Active, p.CreatedAt)
	return apperr.FromPG(err, "paciente", dupCedula, "Tipo de sangre inexistente.")
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err, "paciente", "", "")
	}
	return p, nil
}

// Update leaves photo_key alone; SetPhoto owns it.
func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patient SET first_names = $2, last_names = $3, cedula = $4, birth_date = $5::date, sex = $6,
			marital_status = $7, blood_type_id = $8, phone = $9, email = $10, address = $11, latitude = $12,
			longitude = $13, allergies = $14, chronic_diseases = $15, current_medication = $16,
			previous_surgeries = $17, personal_history = $18, family_history = $19, active = $20
		WHERE id = $1`,
		p.ID, p.FirstNames, p.LastNames, p.Cedula, p.BirthDate, p.Sex, p.MaritalStatus,
		p.BloodTypeID, p.Phone, p.Email, p.Address, p.Latitude, p.Longitude,
		p.Allergies, p.ChronicDiseases, p.CurrentMedication, p.PreviousSurgeries,
		p.PersonalHistory, p.FamilyHistory, p.Active)
	if err != nil {
		return apperr.FromPG(err, "paciente", dupCedula, "Tipo de sangre inexistente.")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("paciente")
	}
	return nil
}

func (r *patientRepoPG) SetPhoto(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE patient SET photo_key = $2 WHERE id = $1`, id, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("paciente")
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG(err, "paciente", "", ErrPatientHasRecords.Error())
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("paciente")
	}
	return nil
}

func (r *patientRepoPG) HasClinicalRecords(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM encounter WHERE patient_id = $1)
			OR EXISTS (SELECT 1 FROM exam_request WHERE patient_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *patientRepoPG) List(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	q := db.NewSearchQuery("patient", patientCols).
		AddAnyILike(f.Query, "first_names", "last_names", "cedula").
		OrderBy("last_names, first_names, id")
	if f.Sex == "M" || f.Sex == "F" {
		q.AddEq("sex", f.Sex)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectRows(rows, scanPatient)
	return items, total, err
}

func (r *patientRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&n)
	return n, err
}

// Last returns the most recently registered patient, or nil when there is none.
func (r *patientRepoPG) Last(ctx context.Context) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY created_at DESC, id DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// -- Doctor --

type doctorRepoPG struct{ pool db.Pool }

func NewDoctorRepoPG(pool db.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `d.id, d.first_names, d.last_names, d.cedula, d.code,
	COALESCE((SELECT array_agg(ds.specialty_id ORDER BY ds.specialty_id) FROM doctor_specialty ds WHERE ds.doctor_id = d.id), '{}'),
	d.phone, d.email, COALESCE(to_char(d.birth_date, 'YYYY-MM-DD'), ''), d.address, d.years_experience,
	d.working_hours, d.appointment_minutes, d.signature_key, d.active, d.created_at`

const dupDoctor = "Ya existe un doctor con esa cédula o código único."

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstNames, &d.LastNames, &d.Cedula, &d.Code, &d.SpecialtyIDs,
		&d.Phone, &d.Email, &d.BirthDate, &d.Address, &d.YearsExperience,
		&d.WorkingHours, &d.AppointmentMinutes, &d.SignatureKey, &d.Active, &d.CreatedAt)
	return &d, err
}

// Create and Update write the specialty links too; callers run them inside a
// transaction.
func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now().UTC()
	conn := db.Conn(ctx, r.pool)
	_, err := conn.Exec(ctx, `
		INSERT INTO doctor (id, first_names, last_names, cedula, code, phone, email, birth_date, address,
			years_experience, working_hours, appointment_minutes, signature_key, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::date, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, d.FirstNames, d.LastNames, d.Cedula, d.Code, d.Phone, d.Email, d.BirthDate, d.Address,
		d.YearsExperience, d.WorkingHours, d.AppointmentMinutes, d.SignatureKey, d.Active, d.CreatedAt)
	if err != nil {
		return apperr.FromPG(err, "doctor", dupDoctor, "")
	}
	return r.linkSpecialties(ctx, conn, d)
}

func (r *doctorRepoPG) linkSpecialties(ctx context.Context, conn db.Querier, d *Doctor) error {
	if _, err := conn.Exec(ctx, `DELETE FROM doctor_specialty WHERE doctor_id = $1`, d.ID); err != nil {
		return err
	}
	_, err := conn.Exec(ctx, `
		INSERT INTO doctor_specialty (doctor_id, specialty_id)
		SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`, d.ID, d.SpecialtyIDs)
	return apperr.FromPG(err, "doctor", "", "Especialidad inexistente.")
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor d WHERE d.id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err, "doctor", "", "")
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	conn := db.Conn(ctx, r.pool)
	tag, err := conn.Exec(ctx, `
		UPDATE doctor SET first_names = $2, last_names = $3, cedula = $4, code = $5, phone = $6, email = $7,
			birth_date = NULLIF($8, '')::date, address = $9, years_experience = $10, working_hours = $11,
			appointment_minutes = $12, signature_key = $13, active = $14
		WHERE id = $1`,
		d.ID, d.FirstNames, d.LastNames, d.Cedula, d.Code, d.Phone, d.Email, d.BirthDate, d.Address,
		d.YearsExperience, d.WorkingHours, d.AppointmentMinutes, d.SignatureKey, d.Active)
	if err != nil {
		return apperr.FromPG(err, "doctor", dupDoctor, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor")
	}
	return r.linkSpecialties(ctx, conn, d)
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG(err, "doctor", "", "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor")
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Doctor, int, error) {
	q := db.NewSearchQuery("doctor d", doctorCols).
		AddAnyILike(f.Query, "d.first_names", "d.last_names", "d.cedula", "d.code", "d.email").
		OrderBy("d.last_names, d.first_names, d.id")
	if f.Active != nil {
		q.AddEq("d.active", *f.Active)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectRows(rows, scanDoctor)
	return items, total, err
}

// -- Employee --

type employeeRepoPG struct{ pool db.Pool }

func NewEmployeeRepoPG(pool db.Pool) EmployeeRepository {
	return &employeeRepoPG{pool: pool}
}

const employeeCols = `id, first_names, last_names, cedula, cargo_id, salary::float8, to_char(hire_date, 'YYYY-MM-DD'),
	COALESCE(to_char(birth_date, 'YYYY-MM-DD'), ''), phone, email, address, active, created_at`

func scanEmployee(row pgx.Row) (*Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.FirstNames, &e.LastNames, &e.Cedula, &e.CargoID, &e.Salary, &e.HireDate,
		&e.BirthDate, &e.Phone, &e.Email, &e.Address, &e.Active, &e.CreatedAt)
	return &e, err
}

func (r *employeeRepoPG) Create(ctx context.Context, e *Employee) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO employee (id, first_names, last_names, cedula, cargo_id, salary, hire_date, birth_date,
			phone, email, address, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, NULLIF($8, '')::date, $9, $10, $11, $12, $13)`,
		e.ID, e.FirstNames, e.LastNames, e.Cedula, e.CargoID, e.Salary, e.HireDate, e.BirthDate,
		e.Phone, e.Email, e.Address, e.Active, e.CreatedAt)
	return apperr.FromPG(err, "empleado", dupCedula, "Cargo inexistente.")
}

func (r *employeeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Employee, error) {
	e, err := scanEmployee(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+employeeCols+` FROM employee WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err, "empleado", "", "")
	}
	return e, nil
}

func (r *employeeRepoPG) Update(ctx context.Context, e *Employee) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE employee SET first_names = $2, last_names = $3, cedula = $4, cargo_id = $5, salary = $6,
			hire_date = $7::date, birth_date = NULLIF($8, '')::date, phone = $9, email = $10, address = $11, active = $12
		WHERE id = $1`,
		e.ID, e.FirstNames, e.LastNames, e.Cedula, e.CargoID, e.Salary, e.HireDate, e.BirthDate,
		e.Phone, e.Email, e.Address, e.Active)
	if err != nil {
		return apperr.FromPG(err, "empleado", dupCedula, "Cargo inexistente.")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("empleado")
	}
	return nil
}

func (r *employeeRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM employee WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG(err, "empleado", "", "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("empleado")
	}
	return nil
}

func (r *employeeRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Employee, int, error) {
	q := db.NewSearchQuery("employee", employeeCols).
		AddAnyILike(f.Query, "first_names", "last_names", "cedula", "email").
		OrderBy("last_names, first_names, id")
	if f.Active != nil {
		q.AddEq("active", *f.Active)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectRows(rows, scanEmployee)
	return items, total, err
}

func collectRows[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var items []*T
	for rows.Next() {
		it, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
