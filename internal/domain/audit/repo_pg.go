package audit

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

const entryCols = `id, username, table_name, record_id, action,
	to_char(entry_date, 'YYYY-MM-DD'), to_char(entry_time, 'HH24:MI:SS'), station, created_at, published_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Username, &e.Table, &e.RecordID, &e.Action,
		&e.Date, &e.Time, &e.Station, &e.CreatedAt, &e.Published)
	return &e, err
}

// Append inserts through the transaction on ctx when there is one, so the
// record commits or rolls back with the change it describes.
func (r *repoPG) Append(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO audit_user (id, username, table_name, record_id, action, entry_date, entry_time, station, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::time, $8, $9)`,
		e.ID, e.Username, e.Table, e.RecordID, string(e.Action), e.Date, e.Time, e.Station, e.CreatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := scanEntry(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+entryCols+` FROM audit_user WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err, "registro de auditoría", "", "")
	}
	return e, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	q := db.NewSearchQuery("audit_user", entryCols).
		AddAnyILike(f.Query, "username", "table_name", "record_id").
		OrderBy("entry_date, entry_time, id")
	if f.Action != "" {
		q.AddEq("action", string(f.Action))
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

func (r *repoPG) Unpublished(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+entryCols+` FROM audit_user
		WHERE published_at IS NULL ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE audit_user SET published_at = $2 WHERE id = ANY($1) AND published_at IS NULL`, ids, at)
	return err
}

func collect(rows pgx.Rows) ([]*Entry, error) {
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
