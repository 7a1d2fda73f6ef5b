package encounter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saludsync/clinic/internal/domain/audit"
	"github.com/saludsync/clinic/internal/domain/catalog"
	"github.com/saludsync/clinic/internal/domain/identity"
	"github.com/saludsync/clinic/internal/domain/medication"
	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/db"
)

// ErrHasCosts blocks deleting an encounter that was billed.
var ErrHasCosts = apperr.Conflict("No se puede eliminar la atención porque tiene costos registrados.")

// Inventory is the stock side of medications. The medication repository
// implements it.
type Inventory interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*medication.Medication, error)
	LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*medication.Medication, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
}

type Patients interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type CatalogLookup interface {
	Lookup(ctx context.Context, kind catalog.Kind, ids []uuid.UUID) (map[uuid.UUID]*catalog.Item, error)
}

type Metrics interface {
	ObserveStock(delta int)
	ObserveRejection(operation, reason string)
}

type Service struct {
	repo      Repository
	inventory Inventory
	patients  Patients
	catalog   CatalogLookup
	tx        db.Transactor
	auditor   audit.Auditor
	metrics   Metrics
	logger    zerolog.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewService(
	repo Repository,
	inventory Inventory,
	patients Patients,
	cat CatalogLookup,
	tx db.Transactor,
	auditor audit.Auditor,
	metrics Metrics,
	logger zerolog.Logger,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:      repo,
		inventory: inventory,
		patients:  patients,
		catalog:   cat,
		tx:        tx,
		auditor:   auditor,
		metrics:   metrics,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// Save validates and applies one encounter submission: the header in in and
// the detail grid in changes. in.ID is nil on create.
//
// Validation runs first against current data and reports every problem.
// The write then runs in one transaction that locks the encounter and the
// involved medications, re-checks stock against the locked rows, writes the
// header and lines, moves stock by the net delta per medication and appends
// the audit record. Any failure leaves nothing behind.
func (s *Service) Save(ctx context.Context, in Input, changes []LineChange, actor auth.Actor) (*Encounter, error) {
	create := in.ID == nil
	in.normalize()

	var stored []*Line
	if !create {
		if _, err := s.repo.GetByID(ctx, *in.ID); err != nil {
			return nil, err
		}
		var err error
		if stored, err = s.repo.Lines(ctx, *in.ID); err != nil {
			return nil, err
		}
	}

	v := &apperr.ValidationError{}
	in.validate(v)
	if err := s.checkReferences(ctx, in, v); err != nil {
		return nil, err
	}
	meds, err := s.inventory.GetMany(ctx, medicationIDs(changes, stored))
	if err != nil {
		return nil, err
	}
	_, lv := planLines(create, changes, stored, meds)
	v.Merge(lv)
	if !v.Empty() {
		s.reject(in, "validation", v)
		return nil, v
	}

	e := &Encounter{
		PatientID:    in.PatientID,
		Reason:       in.Reason,
		Treatment:    in.Treatment,
		Comment:      in.Comment,
		DiagnosisIDs: in.DiagnosisIDs,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		action := audit.Added
		if !create {
			cur, err := s.repo.GetForUpdate(ctx, *in.ID)
			if err != nil {
				return err
			}
			e.ID, e.CreatedAt = cur.ID, cur.CreatedAt
			if stored, err = s.repo.Lines(ctx, e.ID); err != nil {
				return err
			}
			action = audit.Modified
		}

		locked, err := s.inventory.LockForUpdate(ctx, medicationIDs(changes, stored))
		if err != nil {
			return err
		}
		plan, lv := planLines(create, changes, stored, locked)
		if !lv.Empty() {
			return lv
		}

		if create {
			e.CreatedAt = s.now().UTC()
			err = s.repo.Create(ctx, e)
		} else {
			err = s.repo.Update(ctx, e)
		}
		if err != nil {
			return err
		}
		if err := s.applyLines(ctx, e.ID, plan); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, Table, e.ID, action)
	})
	if err != nil {
		if lv, ok := apperr.AsValidation(err); ok {
			s.reject(in, "stock_changed", lv)
		} else if errors.Is(err, apperr.ErrConflict) {
			s.metrics.ObserveRejection("encounter_save", "conflict")
		}
		return nil, err
	}

	s.logger.Info().Str("encounter_id", e.ID.String()).Str("user", actor.Username).
		Bool("created", create).Msg("encounter saved")
	return e, nil
}

func (s *Service) checkReferences(ctx context.Context, in Input, v *apperr.ValidationError) error {
	if in.PatientID != uuid.Nil {
		if _, err := s.patients.GetPatient(ctx, in.PatientID); err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			v.AddField("paciente_id", "Paciente inexistente.")
		}
	}
	if len(in.DiagnosisIDs) > 0 {
		found, err := s.catalog.Lookup(ctx, catalog.Diagnosis, in.DiagnosisIDs)
		if err != nil {
			return err
		}
		for _, id := range in.DiagnosisIDs {
			if found[id] == nil {
				v.AddField("diagnostico_ids", "Diagnóstico inexistente.")
				break
			}
		}
	}
	return nil
}

// applyLines writes the planned line changes and moves stock. Deletes go
// first so a medication can move from a dropped line to a new one.
func (s *Service) applyLines(ctx context.Context, encounterID uuid.UUID, p *linePlan) error {
	for _, l := range p.deletes {
		if err := s.repo.DeleteLine(ctx, l.ID); err != nil {
			return err
		}
	}
	for _, l := range p.updates {
		if err := s.repo.UpdateLine(ctx, l); err != nil {
			return err
		}
	}
	for _, l := range p.inserts {
		l.EncounterID = encounterID
		if err := s.repo.InsertLine(ctx, l); err != nil {
			return err
		}
	}
	for _, id := range sortedDeltas(p.deltas) {
		delta := p.deltas[id]
		if err := s.inventory.AdjustStock(ctx, id, delta); err != nil {
			return s.stockError(err, id, delta)
		}
		s.metrics.ObserveStock(delta)
	}
	return nil
}

// stockError keeps medication ids out of conflicts shown to the client.
func (s *Service) stockError(err error, medicationID uuid.UUID, delta int) error {
	if errors.Is(err, apperr.ErrConflict) {
		s.logger.Warn().Err(err).Str("medication_id", medicationID.String()).Int("delta", delta).
			Msg("stock adjustment refused")
		return err
	}
	return fmt.Errorf("adjust stock of medication %s by %d: %w", medicationID, delta, err)
}

func (s *Service) reject(in Input, reason string, v *apperr.ValidationError) {
	s.metrics.ObserveRejection("encounter_save", reason)
	ev := s.logger.Info().Str("reason", reason).Int("problems", len(v.Messages)+len(v.Fields))
	if in.ID != nil {
		ev = ev.Str("encounter_id", in.ID.String())
	}
	ev.Msg("encounter save rejected")
}

// Delete removes an encounter, gives its medication back to stock and
// records the erase. Billed encounters are kept.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor auth.Actor) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		billed, err := s.repo.HasCosts(ctx, id)
		if err != nil {
			return err
		}
		if billed {
			return ErrHasCosts
		}
		lines, err := s.repo.Lines(ctx, id)
		if err != nil {
			return err
		}
		restores := map[uuid.UUID]int{}
		for _, l := range lines {
			restores[l.MedicationID] += l.Quantity
		}
		if _, err := s.inventory.LockForUpdate(ctx, sortedDeltas(restores)); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		for _, mid := range sortedDeltas(restores) {
			if err := s.inventory.AdjustStock(ctx, mid, restores[mid]); err != nil {
				return s.stockError(err, mid, restores[mid])
			}
			s.metrics.ObserveStock(restores[mid])
		}
		return s.auditor.Record(ctx, actor, Table, id, audit.Erased)
	})
	if errors.Is(err, ErrHasCosts) {
		s.metrics.ObserveRejection("encounter_delete", "has_costs")
		s.logger.Info().Str("encounter_id", id.String()).Msg("encounter delete refused: billed")
	}
	return err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

// Detail builds the read model. Diagnoses are ordered by code and lines by
// insertion, so repeated reads without writes are identical.
func (s *Service) Detail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.GetPatient(ctx, e.PatientID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.Lines(ctx, id)
	if err != nil {
		return nil, err
	}
	diagnoses, err := s.catalog.Lookup(ctx, catalog.Diagnosis, e.DiagnosisIDs)
	if err != nil {
		return nil, err
	}
	meds, err := s.inventory.GetMany(ctx, medicationIDs(nil, lines))
	if err != nil {
		return nil, err
	}

	d := &Detail{
		ID:        e.ID,
		Date:      e.CreatedAt.In(s.loc).Format("2006-01-02"),
		Reason:    e.Reason,
		Treatment: e.Treatment,
		Comment:   e.Comment,
		Diagnoses: []string{},
		Patient:   patientSummary(p, s.now().In(s.loc)),
		Lines:     []LineDetail{},
	}
	for _, it := range diagnoses {
		d.Diagnoses = append(d.Diagnoses, it.Code)
	}
	sort.Strings(d.Diagnoses)
	for _, l := range lines {
		ld := LineDetail{Quantity: l.Quantity, Prescription: l.Prescription, DurationDays: l.DurationDays}
		if m := meds[l.MedicationID]; m != nil {
			ld.Medication = MedicationSummary{ID: m.ID, Name: m.Name, Concentration: m.Concentration,
				Description: m.Description, Price: m.Price}
		} else {
			ld.Medication = MedicationSummary{ID: l.MedicationID}
		}
		d.Lines = append(d.Lines, ld)
	}
	return d, nil
}

func patientSummary(p *identity.Patient, now time.Time) PatientSummary {
	ps := PatientSummary{
		ID:         p.ID,
		FirstNames: p.FirstNames,
		LastNames:  p.LastNames,
		Cedula:     p.Cedula,
		Email:      p.Email,
		Sex:        p.Sex,
		Age:        identity.Age(p.BirthDate, now),
	}
	if p.BirthDate != "" {
		bd := p.BirthDate
		ps.BirthDate = &bd
	}
	if p.PhotoKey != "" {
		ps.Photo = "/api/v1/patients/" + p.ID.String() + "/photo"
	}
	return ps
}

func (s *Service) Lines(ctx context.Context, id uuid.UUID) ([]*Line, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Lines(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Summary, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
