package apperr

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// FromPG translates driver errors: no rows becomes a not-found for entity,
// a unique violation becomes a conflict with dupMsg, a foreign key violation
// becomes a conflict with fkMsg. Anything else is returned unchanged.
func FromPG(err error, entity, dupMsg, fkMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound(entity)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if dupMsg == "" {
				dupMsg = entity + " ya existe"
			}
			return Conflict(dupMsg)
		case pgForeignKeyViolation:
			if fkMsg == "" {
				fkMsg = entity + " tiene registros relacionados"
			}
			return Conflict(fkMsg)
		case pgCheckViolation:
			return Conflict(entity + " viola una restricción de datos")
		}
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
