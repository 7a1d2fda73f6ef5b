package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/db"
)

// -- Additional service --

type serviceRepoPG struct{ pool db.Pool }

func NewServiceRepoPG(pool db.Pool) ServiceRepository {
	return &serviceRepoPG{pool: pool}
}

const serviceCols = `id, name, cost::float8, description, active, created_at`

const serviceEntity = "servicio adicional"

func scanService(row pgx.Row) (*AdditionalService, error) {
	var s AdditionalService
	err := row.Scan(&s.ID, &s.Name, &s.Cost, &s.Description, &s.Active, &s.CreatedAt)
	return &s, err
}

func (r *serviceRepoPG) Create(ctx context.Context, s *AdditionalService) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO additional_service (id, name, cost, description, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, s.Cost, s.Description, s.Active, s.CreatedAt)
	return apperr.FromPG(err, serviceEntity, "Ya existe un servicio con ese nombre.", "")
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AdditionalService, error) {
	s, err := scanService(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+serviceCols+` FROM additional_service WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err, serviceEntity, "", "")
	}
	return s, nil
}

func (r *serviceRepoPG) GetMany(ctx context.Context, ids []uuid.UUID) ([]*AdditionalService, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+serviceCols+` FROM additional_service WHERE id = ANY($1) ORDER BY name, id`, ids)
	if err != nil {
		return nil, err
	}
	return collectServices(rows)
}

func (r *serviceRepoPG) Update(ctx context.Context, s *AdditionalService) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE additional_service SET name = $2, cost = $3, description = $4, active = $5 WHERE id = $1`,
		s.ID, s.Name, s.Cost, s.Description, s.Active)
	if err != nil {
		return apperr.FromPG(err, serviceEntity, "Ya existe un servicio con ese nombre.", "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(serviceEntity)
	}
	return nil
}

func (r *serviceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM additional_service WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG(err, serviceEntity, "", "No se puede eliminar el servicio porque figura en costos de atención.")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(serviceEntity)
	}
	return nil
}

func (r *serviceRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*AdditionalService, int, error) {
	q := db.NewSearchQuery("additional_service", serviceCols).
		AddAnyILike(f.Query, "name", "description").
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
	items, err := collectServices(rows)
	return items, total, err
}

func collectServices(rows pgx.Rows) ([]*AdditionalService, error) {
	defer rows.Close()
	var items []*AdditionalService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// -- Encounter cost --

type costRepoPG struct{ pool db.Pool }

func NewCostRepoPG(pool db.Pool) CostRepository {
	return &costRepoPG{pool: pool}
}

const costEntity = "costo de atención"

const costCols = `c.id, c.encounter_id,
	COALESCE((SELECT array_agg(cs.service_id ORDER BY cs.service_id) FROM encounter_cost_service cs WHERE cs.cost_id = c.id), '{}'),
	c.total::float8, c.registered_at, c.active`

func scanCost(row pgx.Row, extra ...interface{}) (*Cost, error) {
	var c Cost
	dest := append([]interface{}{&c.ID, &c.EncounterID, &c.ServiceIDs, &c.Total, &c.RegisteredAt, &c.Active}, extra...)
	err := row.Scan(dest...)
	return &c, err
}

func (r *costRepoPG) Create(ctx context.Context, c *Cost) error {
	c.ID = uuid.New()
	c.RegisteredAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO encounter_cost (id, encounter_id, total, registered_at, active)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.EncounterID, c.Total, c.RegisteredAt, c.Active)
	if err != nil {
		return apperr.FromPG(err, costEntity, "", "Atención inexistente.")
	}
	return r.linkServices(ctx, c)
}

func (r *costRepoPG) linkServices(ctx context.Context, c *Cost) error {
	conn := db.Conn(ctx, r.pool)
	if _, err := conn.Exec(ctx, `DELETE FROM encounter_cost_service WHERE cost_id = $1`, c.ID); err != nil {
		return err
	}
	if len(c.ServiceIDs) == 0 {
		return nil
	}
	_, err := conn.Exec(ctx, `
		INSERT INTO encounter_cost_service (cost_id, service_id)
		SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`, c.ID, c.ServiceIDs)
	return apperr.FromPG(err, costEntity, "", "Servicio inexistente.")
}

func (r *costRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Cost, error) {
	c, err := scanCost(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+costCols+` FROM encounter_cost c WHERE c.id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err, costEntity, "", "")
	}
	return c, nil
}

func (r *costRepoPG) Update(ctx context.Context, c *Cost) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE encounter_cost SET encounter_id = $2, total = $3, active = $4 WHERE id = $1`,
		c.ID, c.EncounterID, c.Total, c.Active)
	if err != nil {
		return apperr.FromPG(err, costEntity, "", "Atención inexistente.")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(costEntity)
	}
	return r.linkServices(ctx, c)
}

// Delete removes the cost; its service links cascade.
func (r *costRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM encounter_cost WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG(err, costEntity, "", "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(costEntity)
	}
	return nil
}

func (r *costRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*CostSummary, int, error) {
	q := db.NewSearchQuery(`encounter_cost c
		JOIN encounter e ON e.id = c.encounter_id
		JOIN patient p ON p.id = e.patient_id`,
		costCols+`, p.first_names || ' ' || p.last_names, p.cedula`).
		AddAnyILike(f.Query, "p.first_names", "p.last_names", "p.cedula").
		OrderBy("c.registered_at DESC, c.id")
	if f.Active != nil {
		q.AddEq("c.active", *f.Active)
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
	var items []*CostSummary
	for rows.Next() {
		var s CostSummary
		c, err := scanCost(rows, &s.Patient, &s.Cedula)
		if err != nil {
			return nil, 0, err
		}
		s.Cost = *c
		items = append(items, &s)
	}
	return items, total, rows.Err()
}
