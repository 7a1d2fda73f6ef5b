package identity

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saludsync/clinic/internal/domain/audit"
	"github.com/saludsync/clinic/internal/domain/catalog"
	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/blobstore"
	"github.com/saludsync/clinic/internal/platform/db"
)

// ErrPatientHasRecords blocks deleting a patient with clinical history.
var ErrPatientHasRecords = apperr.Conflict("No se puede eliminar el paciente porque tiene atención médica o exámenes solicitados.")

// CatalogLookup resolves reference data ids. *catalog.Service implements it.
type CatalogLookup interface {
	Lookup(ctx context.Context, kind catalog.Kind, ids []uuid.UUID) (map[uuid.UUID]*catalog.Item, error)
}

type Service struct {
	patients  PatientRepository
	doctors   DoctorRepository
	employees EmployeeRepository
	catalog   CatalogLookup
	tx        db.Transactor
	auditor   audit.Auditor
	blobs     blobstore.Store
	logger    zerolog.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewService(
	patients PatientRepository,
	doctors DoctorRepository,
	employees EmployeeRepository,
	cat CatalogLookup,
	tx db.Transactor,
	auditor audit.Auditor,
	blobs blobstore.Store,
	logger zerolog.Logger,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		patients:  patients,
		doctors:   doctors,
		employees: employees,
		catalog:   cat,
		tx:        tx,
		auditor:   auditor,
		blobs:     blobs,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

func (s *Service) today() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// checkRefs adds a field error for every id that is not an item of its kind.
func (s *Service) checkRefs(ctx context.Context, v *apperr.ValidationError, kind catalog.Kind, field, msg string, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.catalog.Lookup(ctx, kind, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if found[id] == nil {
			v.AddField(field, msg)
			return nil
		}
	}
	return nil
}

func (s *Service) write(ctx context.Context, actor auth.Actor, table string, action audit.Action, id func() uuid.UUID, fn func(ctx context.Context) error) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, table, id(), action)
	})
}

// -- Patient --

func (s *Service) validatePatient(ctx context.Context, p *Patient) error {
	p.Normalize()
	v := p.Validate(s.today())
	if p.BloodTypeID != nil {
		if err := s.checkRefs(ctx, v, catalog.BloodType, "tipo_sangre_id", "Tipo de sangre inexistente.", *p.BloodTypeID); err != nil {
			return err
		}
	}
	return v.Err()
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient, actor auth.Actor) error {
	if err := s.validatePatient(ctx, p); err != nil {
		return err
	}
	return s.write(ctx, actor, PatientTable, audit.Added, func() uuid.UUID { return p.ID }, func(ctx context.Context) error {
		return s.patients.Create(ctx, p)
	})
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) PatientDetail(ctx context.Context, id uuid.UUID) (*PatientDetail, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &PatientDetail{
		Patient:            p,
		FullName:           p.FullName(),
		Age:                Age(p.BirthDate, s.today()),
		SexLabel:           sexLabels[p.Sex],
		MaritalStatusLabel: maritalLabels[p.MaritalStatus],
	}
	if p.BloodTypeID != nil {
		found, err := s.catalog.Lookup(ctx, catalog.BloodType, []uuid.UUID{*p.BloodTypeID})
		if err != nil {
			return nil, err
		}
		if it := found[*p.BloodTypeID]; it != nil {
			d.BloodType = &it.Name
		}
	}
	return d, nil
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient, actor auth.Actor) error {
	if err := s.validatePatient(ctx, p); err != nil {
		return err
	}
	return s.write(ctx, actor, PatientTable, audit.Modified, func() uuid.UUID { return p.ID }, func(ctx context.Context) error {
		return s.patients.Update(ctx, p)
	})
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID, actor auth.Actor) error {
	var photo string
	err := s.write(ctx, actor, PatientTable, audit.Erased, func() uuid.UUID { return id }, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, id)
		if err != nil {
			return err
		}
		related, err := s.patients.HasClinicalRecords(ctx, id)
		if err != nil {
			return err
		}
		if related {
			return ErrPatientHasRecords
		}
		photo = p.PhotoKey
		return s.patients.Delete(ctx, id)
	})
	if err == nil && photo != "" {
		s.removeBlob(ctx, photo)
	}
	return err
}

func (s *Service) ListPatients(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, f, limit, offset)
}

func (s *Service) CountPatients(ctx context.Context) (int, error) {
	return s.patients.Count(ctx)
}

func (s *Service) LastPatient(ctx context.Context) (*Patient, error) {
	return s.patients.Last(ctx)
}

// UploadPatientPhoto stores the file and points the patient at it. The
// previous photo is removed once the new key is committed.
func (s *Service) UploadPatientPhoto(ctx context.Context, id uuid.UUID, obj blobstore.Object, content io.Reader, actor auth.Actor) (*blobstore.Object, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, err := s.blobs.Put(ctx, "patients/"+id.String(), obj, content)
	if err != nil {
		return nil, err
	}
	err = s.write(ctx, actor, PatientTable, audit.Modified, func() uuid.UUID { return id }, func(ctx context.Context) error {
		return s.patients.SetPhoto(ctx, id, stored.Key)
	})
	if err != nil {
		s.removeBlob(ctx, stored.Key)
		return nil, err
	}
	if p.PhotoKey != "" {
		s.removeBlob(ctx, p.PhotoKey)
	}
	return stored, nil
}

func (s *Service) PatientPhoto(ctx context.Context, id uuid.UUID) (io.ReadCloser, *blobstore.Object, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if p.PhotoKey == "" {
		return nil, nil, blobstore.ErrBlobNotFound
	}
	return s.blobs.Get(ctx, p.PhotoKey)
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to remove stored file")
	}
}

// -- Doctor --

func (s *Service) validateDoctor(ctx context.Context, d *Doctor) error {
	d.Normalize()
	v := d.Validate(s.today())
	if err := s.checkRefs(ctx, v, catalog.Specialty, "especialidad_ids", "Especialidad inexistente.", d.SpecialtyIDs...); err != nil {
		return err
	}
	return v.Err()
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor, actor auth.Actor) error {
	if err := s.validateDoctor(ctx, d); err != nil {
		return err
	}
	return s.write(ctx, actor, DoctorTable, audit.Added, func() uuid.UUID { return d.ID }, func(ctx context.Context) error {
		return s.doctors.Create(ctx, d)
	})
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) DoctorDetail(ctx context.Context, id uuid.UUID) (*DoctorDetail, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	found, err := s.catalog.Lookup(ctx, catalog.Specialty, d.SpecialtyIDs)
	if err != nil {
		return nil, err
	}
	out := &DoctorDetail{Doctor: d, Age: Age(d.BirthDate, s.today()), Specialties: []string{}}
	for _, sid := range d.SpecialtyIDs {
		if it := found[sid]; it != nil {
			out.Specialties = append(out.Specialties, it.Name)
		}
	}
	return out, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor, actor auth.Actor) error {
	if err := s.validateDoctor(ctx, d); err != nil {
		return err
	}
	return s.write(ctx, actor, DoctorTable, audit.Modified, func() uuid.UUID { return d.ID }, func(ctx context.Context) error {
		return s.doctors.Update(ctx, d)
	})
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID, actor auth.Actor) error {
	return s.write(ctx, actor, DoctorTable, audit.Erased, func() uuid.UUID { return id }, func(ctx context.Context) error {
		return s.doctors.Delete(ctx, id)
	})
}

func (s *Service) ListDoctors(ctx context.Context, f Filter, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, f, limit, offset)
}

// -- Employee --

func (s *Service) validateEmployee(ctx context.Context, e *Employee) error {
	e.Normalize()
	v := e.Validate(s.today())
	if e.CargoID != nil {
		if err := s.checkRefs(ctx, v, catalog.Cargo, "cargo_id", "Cargo inexistente.", *e.CargoID); err != nil {
			return err
		}
	}
	return v.Err()
}

func (s *Service) CreateEmployee(ctx context.Context, e *Employee, actor auth.Actor) error {
	if err := s.validateEmployee(ctx, e); err != nil {
		return err
	}
	return s.write(ctx, actor, EmployeeTable, audit.Added, func() uuid.UUID { return e.ID }, func(ctx context.Context) error {
		return s.employees.Create(ctx, e)
	})
}

func (s *Service) GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error) {
	return s.employees.GetByID(ctx, id)
}

func (s *Service) EmployeeDetail(ctx context.Context, id uuid.UUID) (*EmployeeDetail, error) {
	e, err := s.employees.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &EmployeeDetail{Employee: e, Age: Age(e.BirthDate, s.today())}
	if e.CargoID != nil {
		found, err := s.catalog.Lookup(ctx, catalog.Cargo, []uuid.UUID{*e.CargoID})
		if err != nil {
			return nil, err
		}
		if it := found[*e.CargoID]; it != nil {
			out.Cargo = &it.Name
		}
	}
	return out, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, e *Employee, actor auth.Actor) error {
	if err := s.validateEmployee(ctx, e); err != nil {
		return err
	}
	return s.write(ctx, actor, EmployeeTable, audit.Modified, func() uuid.UUID { return e.ID }, func(ctx context.Context) error {
		return s.employees.Update(ctx, e)
	})
}

func (s *Service) DeleteEmployee(ctx context.Context, id uuid.UUID, actor auth.Actor) error {
	return s.write(ctx, actor, EmployeeTable, audit.Erased, func() uuid.UUID { return id }, func(ctx context.Context) error {
		return s.employees.Delete(ctx, id)
	})
}

func (s *Service) ListEmployees(ctx context.Context, f Filter, limit, offset int) ([]*Employee, int, error) {
	return s.employees.List(ctx, f, limit, offset)
}
