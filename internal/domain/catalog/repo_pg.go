package catalog

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

const itemCols = `id, kind, code, name, description, active, created_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Kind, &it.Code, &it.Name, &it.Description, &it.Active, &it.CreatedAt)
	return &it, err
}

func (r *repoPG) Create(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	it.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO catalog_item (id, kind, code, name, description, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		it.ID, string(it.Kind), it.Code, it.Name, it.Description, it.Active, it.CreatedAt)
	return apperr.FromPG(err, it.Kind.Label(), "Ya existe un registro de "+it.Kind.Label()+" con ese nombre o código.", "")
}

func (r *repoPG) GetByID(ctx context.Context, kind Kind, id uuid.UUID) (*Item, error) {
	it, err := scanItem(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+itemCols+` FROM catalog_item WHERE kind = $1 AND id = $2`, string(kind), id))
	if err != nil {
		return nil, apperr.FromPG(err, kind.Label(), "", "")
	}
	return it, nil
}

func (r *repoPG) GetMany(ctx context.Context, kind Kind, ids []uuid.UUID) ([]*Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+itemCols+` FROM catalog_item WHERE kind = $1 AND id = ANY($2) ORDER BY code, name`, string(kind), ids)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) Update(ctx context.Context, it *Item) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE catalog_item SET code = $3, name = $4, description = $5, active = $6
		WHERE kind = $1 AND id = $2`,
		string(it.Kind), it.ID, it.Code, it.Name, it.Description, it.Active)
	if err != nil {
		return apperr.FromPG(err, it.Kind.Label(), "Ya existe un registro de "+it.Kind.Label()+" con ese nombre o código.", "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(it.Kind.Label())
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, kind Kind, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM catalog_item WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return apperr.FromPG(err, kind.Label(), "",
			"No se puede eliminar: el registro de "+kind.Label()+" está en uso.")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(kind.Label())
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Item, int, error) {
	q := db.NewSearchQuery("catalog_item", itemCols).
		AddEq("kind", string(f.Kind)).
		AddAnyILike(f.Query, "name", "code").
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

func collect(rows pgx.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
