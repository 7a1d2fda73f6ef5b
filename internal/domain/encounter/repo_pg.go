package encounter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/db"
)

type repoPG struct{ pool db.Pool }

func NewRepoPG(pool db.Pool) Repository {
	return &repoPG{pool: pool}
}

const entity = "atención"

const encounterCols = `e.id, e.patient_id, e.created_at, e.reason, e.treatment, e.comment,
	COALESCE((SELECT array_agg(ed.diagnosis_id ORDER BY ed.diagnosis_id) FROM encounter_diagnosis ed WHERE ed.encounter_id = e.id), '{}')`

const lineCols = `id, encounter_id, medication_id, quantity, prescription, duration_days`

const fkEncounter = "Paciente o diagnóstico inexistente."

func scanEncounter(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(&e.ID, &e.PatientID, &e.CreatedAt, &e.Reason, &e.Treatment, &e.Comment, &e.DiagnosisIDs)
	return &e, err
}

func scanLine(row pgx.Row) (*Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.EncounterID, &l.MedicationID, &l.Quantity, &l.Prescription, &l.DurationDays)
	return &l, err
}

func (r *repoPG) Create(ctx context.Context, e *Encounter) error {
	e.ID = uuid.New()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	conn := db.Conn(ctx, r.pool)
	_, err := conn.Exec(ctx, `
		INSERT INTO encounter (id, patient_id, created_at, reason, treatment, comment)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.PatientID, e.CreatedAt, e.Reason, e.Treatment, e.Comment)
	if err != nil {
		return apperr.FromPG(err, entity, "", fkEncounter)
	}
	return r.linkDiagnoses(ctx, e)
}

func (r *repoPG) Update(ctx context.Context, e *Encounter) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE encounter SET patient_id = $2, reason = $3, treatment = $4, comment = $5
		WHERE id = $1`,
		e.ID, e.PatientID, e.Reason, e.Treatment, e.Comment)
	if err != nil {
		return apperr.FromPG(err, entity, "", fkEncounter)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity)
	}
	return r.linkDiagnoses(ctx, e)
}

func (r *repoPG) linkDiagnoses(ctx context.Context, e *Encounter) error {
	conn := db.Conn(ctx, r.pool)
	if _, err := conn.Exec(ctx, `DELETE FROM encounter_diagnosis WHERE encounter_id = $1`, e.ID); err != nil {
		return err
	}
	if len(e.DiagnosisIDs) == 0 {
		return nil
	}
	_, err := conn.Exec(ctx, `
		INSERT INTO encounter_diagnosis (encounter_id, diagnosis_id)
		SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`, e.ID, e.DiagnosisIDs)
	return apperr.FromPG(err, entity, "", fkEncounter)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return r.get(ctx, `SELECT `+encounterCols+` FROM encounter e WHERE e.id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return r.get(ctx, `SELECT `+encounterCols+` FROM encounter e WHERE e.id = $1 FOR UPDATE OF e`, id)
}

func (r *repoPG) get(ctx context.Context, sql string, id uuid.UUID) (*Encounter, error) {
	e, err := scanEncounter(db.Conn(ctx, r.pool).QueryRow(ctx, sql, id))
	if err != nil {
		return nil, apperr.FromPG(err, entity, "", "")
	}
	return e, nil
}

// Delete removes the header; diagnoses and lines cascade.
func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM encounter WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG(err, entity, "", "No se puede eliminar la atención porque tiene costos registrados.")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

func (r *repoPG) HasCosts(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM encounter_cost WHERE encounter_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Summary, int, error) {
	q := db.NewSearchQuery(`encounter e
		JOIN patient p ON p.id = e.patient_id
		LEFT JOIN encounter_diagnosis ed ON ed.encounter_id = e.id
		LEFT JOIN catalog_item dx ON dx.id = ed.diagnosis_id`,
		`e.id, e.created_at, p.id, p.first_names, p.last_names, p.cedula, e.reason`).
		Distinct().
		AddAnyILike(f.Query, "p.first_names", "p.last_names", "p.cedula", "dx.code", "dx.name").
		OrderBy("p.last_names, e.created_at DESC, e.id")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.PatientID, &s.PatientFirstNames, &s.PatientLastNames,
			&s.PatientCedula, &s.Reason); err != nil {
			return nil, 0, err
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM encounter`).Scan(&n)
	return n, err
}

func (r *repoPG) Lines(ctx context.Context, encounterID uuid.UUID) ([]*Line, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+lineCols+` FROM encounter_line WHERE encounter_id = $1 ORDER BY seq`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func (r *repoPG) InsertLine(ctx context.Context, l *Line) error {
	l.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO encounter_line (id, encounter_id, medication_id, quantity, prescription, duration_days)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.EncounterID, l.MedicationID, l.Quantity, l.Prescription, l.DurationDays)
	return apperr.FromPG(err, "detalle de atención", "El medicamento ya está registrado en esta atención.", "Medicamento inexistente.")
}

func (r *repoPG) UpdateLine(ctx context.Context, l *Line) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE encounter_line SET medication_id = $2, quantity = $3, prescription = $4, duration_days = $5
		WHERE id = $1`,
		l.ID, l.MedicationID, l.Quantity, l.Prescription, l.DurationDays)
	if err != nil {
		return apperr.FromPG(err, "detalle de atención", "El medicamento ya está registrado en esta atención.", "Medicamento inexistente.")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("detalle de atención")
	}
	return nil
}

func (r *repoPG) DeleteLine(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM encounter_line WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("detalle de atención")
	}
	return nil
}
