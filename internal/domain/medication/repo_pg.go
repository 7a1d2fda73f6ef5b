package medication

import (
	"context"
	"sort"
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

const medCols = `id, name, type_id, brand_id, concentration, description, price::float8, stock, commercial, active, created_at`

const entity = "medicamento"

func scanMed(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.Name, &m.TypeID, &m.BrandID, &m.Concentration, &m.Description,
		&m.Price, &m.Stock, &m.Commercial, &m.Active, &m.CreatedAt)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medication (id, name, type_id, brand_id, concentration, description, price, stock, commercial, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.Name, m.TypeID, m.BrandID, m.Concentration, m.Description, m.Price, m.Stock, m.Commercial, m.Active, m.CreatedAt)
	return apperr.FromPG(err, entity, "Ya existe un medicamento con ese nombre y concentración.", "Tipo o marca de medicamento inexistente.")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := scanMed(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+medCols+` FROM medication WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err, entity, "", "")
	}
	return m, nil
}

func (r *repoPG) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Medication, error) {
	return r.many(ctx, `SELECT `+medCols+` FROM medication WHERE id = ANY($1) ORDER BY id`, ids)
}

func (r *repoPG) LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Medication, error) {
	return r.many(ctx, `SELECT `+medCols+` FROM medication WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
}

func (r *repoPG) many(ctx context.Context, sql string, ids []uuid.UUID) (map[uuid.UUID]*Medication, error) {
	out := make(map[uuid.UUID]*Medication, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, sorted)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows)
	if err != nil {
		return nil, err
	}
	for _, m := range items {
		out[m.ID] = m
	}
	return out, nil
}

func (r *repoPG) Update(ctx context.Context, m *Medication) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE medication SET name = $2, type_id = $3, brand_id = $4, concentration = $5, description = $6,
			price = $7, stock = $8, commercial = $9, active = $10
		WHERE id = $1`,
		m.ID, m.Name, m.TypeID, m.BrandID, m.Concentration, m.Description, m.Price, m.Stock, m.Commercial, m.Active)
	if err != nil {
		return apperr.FromPG(err, entity, "Ya existe un medicamento con ese nombre y concentración.", "Tipo o marca de medicamento inexistente.")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM medication WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG(err, entity, "", "No se puede eliminar el medicamento porque figura en atenciones médicas.")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

func (r *repoPG) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE medication SET stock = stock + $2 WHERE id = $1 AND stock + $2 >= 0`, id, delta)
	if err != nil {
		return apperr.FromPG(err, entity, "", "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("Stock insuficiente del medicamento.")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Medication, int, error) {
	q := db.NewSearchQuery("medication", medCols).
		AddAnyILike(f.Query, "name", "concentration", "description").
		OrderBy("name, id")
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
	items, err := collect(rows)
	return items, total, err
}

func collect(rows pgx.Rows) ([]*Medication, error) {
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := scanMed(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
