package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saludsync/clinic/internal/domain/audit"
	"github.com/saludsync/clinic/internal/domain/identity"
	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/db"
)

type Patients interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type Rejections interface {
	ObserveRejection(operation, reason string)
}

type Service struct {
	repo     Repository
	patients Patients
	tx       db.Transactor
	auditor  audit.Auditor
	metrics  Rejections
	logger   zerolog.Logger
	loc      *time.Location
	hours    Hours
	now      func() time.Time
}

func NewService(repo Repository, patients Patients, tx db.Transactor, auditor audit.Auditor,
	metrics Rejections, logger zerolog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo: repo, patients: patients, tx: tx, auditor: auditor,
		metrics: metrics, logger: logger, loc: loc, hours: DefaultHours, now: time.Now,
	}
}

// WithHours replaces the default opening window.
func (s *Service) WithHours(h Hours) *Service {
	s.hours = h
	return s
}

// Validate applies the required-field checks and the clinic scheduling
// rules. All rules run and their messages are collected per field.
func (s *Service) Validate(ctx context.Context, a *Appointment) error {
	v := &apperr.ValidationError{}
	day, at, ok := a.Validate(v)
	if a.PatientID != uuid.Nil {
		if _, err := s.patients.GetPatient(ctx, a.PatientID); err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			v.AddField("paciente_id", "Paciente inexistente.")
		}
	}
	if ok {
		var exclude *uuid.UUID
		if a.ID != uuid.Nil {
			exclude = &a.ID
		}
		taken, err := s.repo.Taken(ctx, a.Date, a.Time, exclude)
		if err != nil {
			return err
		}
		checkPolicy(day, at, taken, s.hours, v)
	}
	return v.Err()
}

func (s *Service) Create(ctx context.Context, a *Appointment, actor auth.Actor) error {
	return s.save(ctx, a, actor, true)
}

func (s *Service) Update(ctx context.Context, a *Appointment, actor auth.Actor) error {
	return s.save(ctx, a, actor, false)
}

func (s *Service) save(ctx context.Context, a *Appointment, actor auth.Actor, create bool) error {
	if create {
		a.ID = uuid.Nil
	}
	a.Normalize()
	if err := s.Validate(ctx, a); err != nil {
		s.rejected(a, err)
		return err
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if create {
			if err := s.repo.Create(ctx, a); err != nil {
				return err
			}
			return s.auditor.Record(ctx, actor, Table, a.ID, audit.Added)
		}
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, Table, a.ID, audit.Modified)
	})
	if errors.Is(err, ErrSlotTaken) {
		// lost a race for the slot after validation passed
		v := &apperr.ValidationError{}
		day, at, _ := a.Validate(&apperr.ValidationError{})
		v.AddField("hora_cita", doubleBooked(day, at))
		s.rejected(a, v)
		return v
	}
	return err
}

func (s *Service) rejected(a *Appointment, err error) {
	if _, ok := apperr.AsValidation(err); !ok {
		return
	}
	s.metrics.ObserveRejection("appointment_save", "policy")
	s.logger.Info().Str("date", a.Date).Str("time", a.Time).Msg("appointment rejected")
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Detail(ctx context.Context, id uuid.UUID) (*Summary, error) {
	return s.repo.Summary(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor auth.Actor) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, Table, id, audit.Erased)
	})
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Summary, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(dateLayout)
}

// CountToday counts appointments of the current clinic day in any status.
func (s *Service) CountToday(ctx context.Context) (int, error) {
	return s.repo.CountOn(ctx, s.today())
}

func (s *Service) Upcoming(ctx context.Context, n int) ([]*Summary, error) {
	return s.repo.Upcoming(ctx, s.today(), n)
}

func (s *Service) LastCompleted(ctx context.Context) (*Summary, error) {
	return s.repo.LastCompleted(ctx)
}
