package medication

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saludsync/clinic/internal/platform/apperr"
)

var medColumns = []string{"id", "name", "type_id", "brand_id", "concentration", "description",
	"price", "stock", "commercial", "active", "created_at"}

func TestRepoPG_LockForUpdateSortsIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lo := uuid.MustParse("10000000-0000-0000-0000-000000000000")
	hi := uuid.MustParse("f0000000-0000-0000-0000-000000000000")

	mock.ExpectQuery(`FROM medication WHERE id = ANY\(\$1\) ORDER BY id FOR UPDATE`).
		WithArgs([]uuid.UUID{lo, hi}).
		WillReturnRows(pgxmock.NewRows(medColumns).
			AddRow(lo, "Amoxicilina", nil, nil, "500mg", "", 0.35, 10, true, true, time.Now()).
			AddRow(hi, "Paracetamol", nil, nil, "1g", "", 0.10, 3, true, true, time.Now()))

	got, err := NewRepoPG(mock).LockForUpdate(context.Background(), []uuid.UUID{hi, lo})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 10, got[lo].Stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_LockForUpdateEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	got, err := NewRepoPG(mock).LockForUpdate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoPG_AdjustStockNeverNegative(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE medication SET stock = stock \+ \$2 WHERE id = \$1 AND stock \+ \$2 >= 0`).
		WithArgs(id, -6).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`UPDATE medication SET stock`).
		WithArgs(id, -5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewRepoPG(mock)
	assert.ErrorIs(t, repo.AdjustStock(context.Background(), id, -6), apperr.ErrConflict)
	assert.NoError(t, repo.AdjustStock(context.Background(), id, -5))
	assert.NoError(t, mock.ExpectationsWereMet())
}
