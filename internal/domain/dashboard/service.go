package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saludsync/clinic/internal/domain/identity"
	"github.com/saludsync/clinic/internal/domain/scheduling"
)

const (
	cacheKey      = "dashboard:summary"
	upcomingLimit = 3
)

type Patients interface {
	CountPatients(ctx context.Context) (int, error)
	LastPatient(ctx context.Context) (*identity.Patient, error)
}

type Appointments interface {
	CountToday(ctx context.Context) (int, error)
	Upcoming(ctx context.Context, n int) ([]*scheduling.Summary, error)
	LastCompleted(ctx context.Context) (*scheduling.Summary, error)
}

type Encounters interface {
	Count(ctx context.Context) (int, error)
}

// Cache is satisfied by *cache.JSON, including a nil one.
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// LastCompleted is the most recent appointment marked as done.
type LastCompleted struct {
	*scheduling.Summary
	At      time.Time `json:"fecha_hora"`
	Elapsed string    `json:"hace"`
}

type LastPatient struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"paciente"`
	Cedula       string    `json:"cedula"`
	RegisteredAt time.Time `json:"fecha_registro"`
	Elapsed      string    `json:"hace"`
}

// Summary is the landing page payload.
type Summary struct {
	Patients          int                   `json:"patients"`
	AppointmentsToday int                   `json:"appointments_today"`
	Encounters        int                   `json:"encounters"`
	Upcoming          []*scheduling.Summary `json:"upcoming"`
	LastCompleted     *LastCompleted        `json:"last_completed"`
	LastPatient       *LastPatient          `json:"last_patient"`
}

type Service struct {
	patients     Patients
	appointments Appointments
	encounters   Encounters
	cache        Cache
	ttl          time.Duration
	logger       zerolog.Logger
	loc          *time.Location
	now          func() time.Time
}

func NewService(patients Patients, appointments Appointments, encounters Encounters,
	cache Cache, ttl time.Duration, logger zerolog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		patients: patients, appointments: appointments, encounters: encounters,
		cache: cache, ttl: ttl, logger: logger, loc: loc, now: time.Now,
	}
}

// Summary returns the cached counters when present. Elapsed times are
// always recomputed so a cached entry never reports a stale "hace".
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	hit, err := s.cache.Get(ctx, cacheKey, &sum)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dashboard cache read failed")
	}
	if !hit {
		fresh, err := s.compute(ctx)
		if err != nil {
			return nil, err
		}
		sum = *fresh
		if s.ttl > 0 {
			if err := s.cache.Set(ctx, cacheKey, sum, s.ttl); err != nil {
				s.logger.Warn().Err(err).Msg("dashboard cache write failed")
			}
		}
	}

	now := s.now()
	if sum.LastCompleted != nil {
		sum.LastCompleted.Elapsed = elapsed(sum.LastCompleted.At, now)
	}
	if sum.LastPatient != nil {
		sum.LastPatient.Elapsed = elapsed(sum.LastPatient.RegisteredAt, now)
	}
	return &sum, nil
}

// Invalidate drops the cached summary.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, cacheKey)
}

func (s *Service) compute(ctx context.Context) (*Summary, error) {
	var (
		sum Summary
		err error
	)
	if sum.Patients, err = s.patients.CountPatients(ctx); err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	if sum.AppointmentsToday, err = s.appointments.CountToday(ctx); err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	if sum.Encounters, err = s.encounters.Count(ctx); err != nil {
		return nil, fmt.Errorf("count encounters: %w", err)
	}
	if sum.Upcoming, err = s.appointments.Upcoming(ctx, upcomingLimit); err != nil {
		return nil, fmt.Errorf("upcoming appointments: %w", err)
	}
	if sum.Upcoming == nil {
		sum.Upcoming = []*scheduling.Summary{}
	}

	last, err := s.appointments.LastCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("last completed appointment: %w", err)
	}
	if last != nil {
		at, err := time.ParseInLocation("2006-01-02 15:04", last.Date+" "+last.Time, s.loc)
		if err != nil {
			return nil, fmt.Errorf("appointment %s: %w", last.ID, err)
		}
		sum.LastCompleted = &LastCompleted{Summary: last, At: at}
	}

	p, err := s.patients.LastPatient(ctx)
	if err != nil {
		return nil, fmt.Errorf("last patient: %w", err)
	}
	if p != nil {
		sum.LastPatient = &LastPatient{ID: p.ID, Name: p.FullName(), Cedula: p.Cedula, RegisteredAt: p.CreatedAt}
	}
	return &sum, nil
}

type unit struct {
	size             time.Duration
	singular, plural string
}

var units = []unit{
	{365 * 24 * time.Hour, "año", "años"},
	{30 * 24 * time.Hour, "mes", "meses"},
	{7 * 24 * time.Hour, "semana", "semanas"},
	{24 * time.Hour, "día", "días"},
	{time.Hour, "hora", "horas"},
	{time.Minute, "minuto", "minutos"},
}

// elapsed renders the time between from and to with at most two adjacent
// units, e.g. "2 días, 3 horas". Future or sub-minute gaps are "0 minutos".
func elapsed(from, to time.Time) string {
	d := to.Sub(from)
	if d < time.Minute {
		return "0 minutos"
	}
	for i, u := range units {
		n := int(d / u.size)
		if n == 0 {
			continue
		}
		parts := []string{plural(n, u)}
		if i+1 < len(units) {
			next := units[i+1]
			if m := int((d - time.Duration(n)*u.size) / next.size); m > 0 {
				parts = append(parts, plural(m, next))
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func plural(n int, u unit) string {
	if n == 1 {
		return "1 " + u.singular
	}
	return fmt.Sprintf("%d %s", n, u.plural)
}
