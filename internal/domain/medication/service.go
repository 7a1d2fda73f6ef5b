package medication

import (
	"context"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/domain/audit"
	"github.com/saludsync/clinic/internal/domain/catalog"
	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/db"
)

// CatalogLookup resolves reference data ids. *catalog.Service implements it.
type CatalogLookup interface {
	Lookup(ctx context.Context, kind catalog.Kind, ids []uuid.UUID) (map[uuid.UUID]*catalog.Item, error)
}

type Service struct {
	repo    Repository
	catalog CatalogLookup
	tx      db.Transactor
	auditor audit.Auditor
}

func NewService(repo Repository, cat CatalogLookup, tx db.Transactor, auditor audit.Auditor) *Service {
	return &Service{repo: repo, catalog: cat, tx: tx, auditor: auditor}
}

func (s *Service) validate(ctx context.Context, m *Medication) error {
	m.Normalize()
	v := m.Validate()
	refs := []struct {
		kind  catalog.Kind
		id    *uuid.UUID
		field string
		msg   string
	}{
		{catalog.MedicineType, m.TypeID, "tipo_id", "Tipo de medicamento inexistente."},
		{catalog.MedicineBrand, m.BrandID, "marca_id", "Marca de medicamento inexistente."},
	}
	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		found, err := s.catalog.Lookup(ctx, ref.kind, []uuid.UUID{*ref.id})
		if err != nil {
			return err
		}
		if found[*ref.id] == nil {
			v.AddField(ref.field, ref.msg)
		}
	}
	return v.Err()
}

func (s *Service) Create(ctx context.Context, m *Medication, actor auth.Actor) error {
	if err := s.validate(ctx, m); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, m); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, Table, m.ID, audit.Added)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, m *Medication, actor auth.Actor) error {
	if err := s.validate(ctx, m); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, Table, m.ID, audit.Modified)
	})
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor auth.Actor) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, Table, id, audit.Erased)
	})
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Medication, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}
