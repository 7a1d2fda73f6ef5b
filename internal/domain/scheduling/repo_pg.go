package scheduling

import (
	"context"
	"errors"
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

const entity = "cita médica"

const apptCols = `id, patient_id, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'), status, created_at`

const summaryCols = `a.id, p.id, p.first_names || ' ' || p.last_names, p.cedula,
	to_char(a.date, 'YYYY-MM-DD'), to_char(a.time, 'HH24:MI'), a.status`

const summaryFrom = `appointment a JOIN patient p ON p.id = a.patient_id`

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.Date, &a.Time, &a.Status, &a.CreatedAt)
	return &a, err
}

func scanSummary(row pgx.Row) (*Summary, error) {
	var s Summary
	err := row.Scan(&s.ID, &s.PatientID, &s.Patient, &s.Cedula, &s.Date, &s.Time, &s.Status)
	s.StatusLabel = StatusLabel(s.Status)
	return &s, err
}

func writeErr(err error) error {
	if apperr.IsUniqueViolation(err) {
		return ErrSlotTaken
	}
	return apperr.FromPG(err, entity, "", "Paciente inexistente.")
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment (id, patient_id, date, time, status, created_at)
		VALUES ($1, $2, $3::date, $4::time, $5, $6)`,
		a.ID, a.PatientID, a.Date, a.Time, a.Status, a.CreatedAt)
	if err != nil {
		return writeErr(err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppt(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err, entity, "", "")
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointment SET patient_id = $2, date = $3::date, time = $4::time, status = $5
		WHERE id = $1`,
		a.ID, a.PatientID, a.Date, a.Time, a.Status)
	if err != nil {
		return writeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG(err, entity, "", "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

func (r *repoPG) Taken(ctx context.Context, date, tm string, exclude *uuid.UUID) (bool, error) {
	var taken bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointment
			WHERE date = $1::date AND time = $2::time AND ($3::uuid IS NULL OR id <> $3))`,
		date, tm, exclude).Scan(&taken)
	return taken, err
}

func (r *repoPG) Summary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	s, err := scanSummary(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+summaryCols+` FROM `+summaryFrom+` WHERE a.id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err, entity, "", "")
	}
	return s, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Summary, int, error) {
	q := db.NewSearchQuery(summaryFrom, summaryCols).
		OrderBy("p.first_names, p.last_names, a.date, a.time, a.id")
	if f.ByCedula {
		q.AddAnyILike(f.Query, "p.cedula")
	} else {
		q.AddAnyILike(f.Query, "p.first_names", "p.last_names")
	}
	if StatusLabel(f.Status) != "" {
		q.AddEq("a.status", f.Status)
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
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) CountOn(ctx context.Context, date string) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM appointment WHERE date = $1::date`, date).Scan(&n)
	return n, err
}

func (r *repoPG) Upcoming(ctx context.Context, date string, n int) ([]*Summary, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+summaryCols+` FROM `+summaryFrom+`
		WHERE a.status = $1 AND a.date >= $2::date
		ORDER BY a.date, a.time LIMIT $3`, StatusProgrammed, date, n)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) LastCompleted(ctx context.Context) (*Summary, error) {
	s, err := scanSummary(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+summaryCols+` FROM `+summaryFrom+`
		WHERE a.status = $1 ORDER BY a.date DESC, a.time DESC LIMIT 1`, StatusCompleted))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func collect(rows pgx.Rows) ([]*Summary, error) {
	defer rows.Close()
	var items []*Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
