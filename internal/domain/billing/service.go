package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saludsync/clinic/internal/domain/audit"
	"github.com/saludsync/clinic/internal/domain/encounter"
	"github.com/saludsync/clinic/internal/domain/identity"
	"github.com/saludsync/clinic/internal/domain/medication"
	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/db"
)

// Encounters reads the encounter a cost bills.
type Encounters interface {
	Get(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error)
	Lines(ctx context.Context, id uuid.UUID) ([]*encounter.Line, error)
}

type Prices interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*medication.Medication, error)
}

type Patients interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type Service struct {
	services   ServiceRepository
	costs      CostRepository
	encounters Encounters
	prices     Prices
	patients   Patients
	tx         db.Transactor
	auditor    audit.Auditor
	logger     zerolog.Logger
}

func NewService(services ServiceRepository, costs CostRepository, encounters Encounters, prices Prices,
	patients Patients, tx db.Transactor, auditor audit.Auditor, logger zerolog.Logger) *Service {
	return &Service{
		services: services, costs: costs, encounters: encounters, prices: prices,
		patients: patients, tx: tx, auditor: auditor, logger: logger,
	}
}

// write runs op and its audit record in one transaction.
func (s *Service) write(ctx context.Context, actor auth.Actor, table string, action audit.Action, id func() uuid.UUID, op func(ctx context.Context) error) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := op(ctx); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, table, id(), action)
	})
}

// -- Additional services --

func (s *Service) CreateService(ctx context.Context, svc *AdditionalService, actor auth.Actor) error {
	svc.Normalize()
	if err := svc.Validate().Err(); err != nil {
		return err
	}
	return s.write(ctx, actor, ServiceTable, audit.Added, func() uuid.UUID { return svc.ID }, func(ctx context.Context) error {
		return s.services.Create(ctx, svc)
	})
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*AdditionalService, error) {
	return s.services.GetByID(ctx, id)
}

func (s *Service) UpdateService(ctx context.Context, svc *AdditionalService, actor auth.Actor) error {
	svc.Normalize()
	if err := svc.Validate().Err(); err != nil {
		return err
	}
	return s.write(ctx, actor, ServiceTable, audit.Modified, func() uuid.UUID { return svc.ID }, func(ctx context.Context) error {
		return s.services.Update(ctx, svc)
	})
}

func (s *Service) DeleteService(ctx context.Context, id uuid.UUID, actor auth.Actor) error {
	return s.write(ctx, actor, ServiceTable, audit.Erased, func() uuid.UUID { return id }, func(ctx context.Context) error {
		return s.services.Delete(ctx, id)
	})
}

func (s *Service) ListServices(ctx context.Context, f Filter, limit, offset int) ([]*AdditionalService, int, error) {
	return s.services.List(ctx, f, limit, offset)
}

// -- Encounter costs --

// Compute prices a cost: the selected services plus quantity times unit
// price of every medication line of the encounter.
func (s *Service) Compute(ctx context.Context, encounterID uuid.UUID, serviceIDs []uuid.UUID) (*Breakdown, error) {
	b := &Breakdown{Services: []*AdditionalService{}}
	svcs, err := s.services.GetMany(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}
	for _, svc := range svcs {
		b.Services = append(b.Services, svc)
		b.ServicesTotal += svc.Cost
	}

	lines, err := s.encounters.Lines(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.MedicationID)
	}
	meds, err := s.prices.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		m := meds[l.MedicationID]
		if m == nil {
			return nil, fmt.Errorf("price of medication %s: %w", l.MedicationID, apperr.NotFound("medicamento"))
		}
		b.MedicationTotal += float64(l.Quantity) * m.Price
	}

	b.ServicesTotal = roundCents(b.ServicesTotal)
	b.MedicationTotal = roundCents(b.MedicationTotal)
	b.Total = roundCents(b.ServicesTotal + b.MedicationTotal)
	return b, nil
}

// validateCost checks references. Services already on the stored cost may
// be inactive; new selections may not.
func (s *Service) validateCost(ctx context.Context, c *Cost, stored *Cost) error {
	c.normalize()
	v := &apperr.ValidationError{}
	if c.EncounterID == uuid.Nil {
		v.AddField("atencion_id", "Seleccione una atención.")
	} else if _, err := s.encounters.Get(ctx, c.EncounterID); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		v.AddField("atencion_id", "Atención inexistente.")
	}

	kept := map[uuid.UUID]bool{}
	if stored != nil {
		for _, id := range stored.ServiceIDs {
			kept[id] = true
		}
	}
	svcs, err := s.services.GetMany(ctx, c.ServiceIDs)
	if err != nil {
		return err
	}
	found := make(map[uuid.UUID]*AdditionalService, len(svcs))
	for _, svc := range svcs {
		found[svc.ID] = svc
	}
	for _, id := range c.ServiceIDs {
		svc := found[id]
		switch {
		case svc == nil:
			v.AddField("servicio_ids", "Servicio inexistente.")
		case !svc.Active && !kept[id]:
			v.AddField("servicio_ids", fmt.Sprintf("El servicio %s no está activo.", svc.Name))
		}
	}
	return v.Err()
}

func (s *Service) CreateCost(ctx context.Context, c *Cost, actor auth.Actor) error {
	if err := s.validateCost(ctx, c, nil); err != nil {
		return err
	}
	return s.write(ctx, actor, CostTable, audit.Added, func() uuid.UUID { return c.ID }, func(ctx context.Context) error {
		b, err := s.Compute(ctx, c.EncounterID, c.ServiceIDs)
		if err != nil {
			return err
		}
		c.Total = b.Total
		return s.costs.Create(ctx, c)
	})
}

func (s *Service) UpdateCost(ctx context.Context, c *Cost, actor auth.Actor) error {
	stored, err := s.costs.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := s.validateCost(ctx, c, stored); err != nil {
		return err
	}
	return s.write(ctx, actor, CostTable, audit.Modified, func() uuid.UUID { return c.ID }, func(ctx context.Context) error {
		b, err := s.Compute(ctx, c.EncounterID, c.ServiceIDs)
		if err != nil {
			return err
		}
		c.Total = b.Total
		c.RegisteredAt = stored.RegisteredAt
		return s.costs.Update(ctx, c)
	})
}

func (s *Service) DeleteCost(ctx context.Context, id uuid.UUID, actor auth.Actor) error {
	return s.write(ctx, actor, CostTable, audit.Erased, func() uuid.UUID { return id }, func(ctx context.Context) error {
		return s.costs.Delete(ctx, id)
	})
}

func (s *Service) GetCost(ctx context.Context, id uuid.UUID) (*Cost, error) {
	return s.costs.GetByID(ctx, id)
}

// CostDetail returns the stored cost with a fresh breakdown and the patient
// name.
func (s *Service) CostDetail(ctx context.Context, id uuid.UUID) (*CostDetail, error) {
	c, err := s.costs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err := s.encounters.Get(ctx, c.EncounterID)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.GetPatient(ctx, e.PatientID)
	if err != nil {
		return nil, err
	}
	b, err := s.Compute(ctx, c.EncounterID, c.ServiceIDs)
	if err != nil {
		return nil, err
	}
	if b.Total != c.Total {
		s.logger.Warn().Str("cost_id", id.String()).Float64("stored", c.Total).Float64("computed", b.Total).
			Msg("stored cost total differs from current prices")
	}
	return &CostDetail{Cost: c, Patient: p.FullName(), Breakdown: *b}, nil
}

func (s *Service) ListCosts(ctx context.Context, f Filter, limit, offset int) ([]*CostSummary, int, error) {
	return s.costs.List(ctx, f, limit, offset)
}
