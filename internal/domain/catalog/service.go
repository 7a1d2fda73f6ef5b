package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/domain/audit"
	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/db"
)

type Service struct {
	repo    Repository
	tx      db.Transactor
	auditor audit.Auditor
}

func NewService(repo Repository, tx db.Transactor, auditor audit.Auditor) *Service {
	return &Service{repo: repo, tx: tx, auditor: auditor}
}

func (s *Service) Create(ctx context.Context, it *Item, actor auth.Actor) error {
	it.Normalize()
	if err := it.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, it); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, string(it.Kind), it.ID, audit.Added)
	})
}

func (s *Service) Get(ctx context.Context, kind Kind, id uuid.UUID) (*Item, error) {
	return s.repo.GetByID(ctx, kind, id)
}

// Lookup returns the items of kind among ids keyed by id.
func (s *Service) Lookup(ctx context.Context, kind Kind, ids []uuid.UUID) (map[uuid.UUID]*Item, error) {
	items, err := s.repo.GetMany(ctx, kind, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*Item, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, it *Item, actor auth.Actor) error {
	it.Normalize()
	if err := it.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, it); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, string(it.Kind), it.ID, audit.Modified)
	})
}

func (s *Service) Delete(ctx context.Context, kind Kind, id uuid.UUID, actor auth.Actor) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, kind, id); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, string(kind), id, audit.Erased)
	})
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Item, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}
