package exams

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

const entity = "examen"

const examCols = `x.id, x.name, x.patient_id, to_char(x.requested_on, 'YYYY-MM-DD'), x.result_key, x.comment, x.status, x.created_at`

func scanExam(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.Name, &r.PatientID, &r.RequestedOn, &r.ResultKey, &r.Comment, &r.Status, &r.CreatedAt)
	return &r, err
}

func (r *repoPG) Create(ctx context.Context, x *Request) error {
	x.ID = uuid.New()
	x.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO exam_request (id, name, patient_id, requested_on, result_key, comment, status, created_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8)`,
		x.ID, x.Name, x.PatientID, x.RequestedOn, x.ResultKey, x.Comment, x.Status, x.CreatedAt)
	return apperr.FromPG(err, entity, "", "Paciente inexistente.")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	x, err := scanExam(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+examCols+` FROM exam_request x WHERE x.id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err, entity, "", "")
	}
	return x, nil
}

func (r *repoPG) Update(ctx context.Context, x *Request) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE exam_request SET name = $2, patient_id = $3, comment = $4, status = $5 WHERE id = $1`,
		x.ID, x.Name, x.PatientID, x.Comment, x.Status)
	if err != nil {
		return apperr.FromPG(err, entity, "", "Paciente inexistente.")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

func (r *repoPG) SetResult(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE exam_request SET result_key = $2, status = $3 WHERE id = $1`, id, key, StatusDone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM exam_request WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG(err, entity, "", "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Summary, int, error) {
	q := db.NewSearchQuery(`exam_request x JOIN patient p ON p.id = x.patient_id`,
		examCols+`, p.first_names || ' ' || p.last_names, p.cedula`).
		AddAnyILike(f.Query, "x.name", "p.first_names", "p.last_names", "p.cedula").
		OrderBy("x.requested_on DESC, x.created_at DESC, x.id")
	if StatusLabel(f.Status) != "" {
		q.AddEq("x.status", f.Status)
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
	defer rows.Close()
	var items []*Summary
	for rows.Next() {
		var s Summary
		x := &s.Request
		if err := rows.Scan(&x.ID, &x.Name, &x.PatientID, &x.RequestedOn, &x.ResultKey, &x.Comment, &x.Status,
			&x.CreatedAt, &s.Patient, &s.Cedula); err != nil {
			return nil, 0, err
		}
		s.StatusLabel = StatusLabel(x.Status)
		s.HasResult = x.ResultKey != ""
		items = append(items, &s)
	}
	return items, total, rows.Err()
}
