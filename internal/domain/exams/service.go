package exams

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saludsync/clinic/internal/domain/audit"
	"github.com/saludsync/clinic/internal/domain/identity"
	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/blobstore"
	"github.com/saludsync/clinic/internal/platform/db"
)

type Patients interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type Service struct {
	repo     Repository
	patients Patients
	tx       db.Transactor
	auditor  audit.Auditor
	blobs    blobstore.Store
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, patients Patients, tx db.Transactor, auditor audit.Auditor,
	blobs blobstore.Store, logger zerolog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo: repo, patients: patients, tx: tx, auditor: auditor,
		blobs: blobs, logger: logger, loc: loc, now: time.Now,
	}
}

func (s *Service) validate(ctx context.Context, r *Request) error {
	r.Normalize()
	v := r.Validate()
	if r.PatientID != uuid.Nil {
		if _, err := s.patients.GetPatient(ctx, r.PatientID); err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			v.AddField("paciente_id", "Paciente inexistente.")
		}
	}
	return v.Err()
}

func (s *Service) Create(ctx context.Context, r *Request, actor auth.Actor) error {
	r.ResultKey = ""
	if err := s.validate(ctx, r); err != nil {
		return err
	}
	r.RequestedOn = s.now().In(s.loc).Format("2006-01-02")
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, r); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, Table, r.ID, audit.Added)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, r *Request, actor auth.Actor) error {
	if err := s.validate(ctx, r); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetByID(ctx, r.ID)
		if err != nil {
			return err
		}
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		r.RequestedOn, r.ResultKey, r.CreatedAt = cur.RequestedOn, cur.ResultKey, cur.CreatedAt
		return s.auditor.Record(ctx, actor, Table, r.ID, audit.Modified)
	})
}

// Delete removes the request and then its result file.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor auth.Actor) error {
	var key string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		key = cur.ResultKey
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, Table, id, audit.Erased)
	})
	if err == nil && key != "" {
		s.removeBlob(ctx, key)
	}
	return err
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Summary, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// UploadResult stores the result file and marks the exam done. A previous
// result is replaced.
func (s *Service) UploadResult(ctx context.Context, id uuid.UUID, obj blobstore.Object, content io.Reader, actor auth.Actor) (*blobstore.Object, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, err := s.blobs.Put(ctx, "exams/"+id.String(), obj, content)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SetResult(ctx, id, stored.Key); err != nil {
			return err
		}
		return s.auditor.Record(ctx, actor, Table, id, audit.Modified)
	})
	if err != nil {
		s.removeBlob(ctx, stored.Key)
		return nil, err
	}
	if cur.ResultKey != "" {
		s.removeBlob(ctx, cur.ResultKey)
	}
	s.logger.Info().Str("exam_id", id.String()).Int64("size", stored.Size).Msg("exam result stored")
	return stored, nil
}

func (s *Service) Result(ctx context.Context, id uuid.UUID) (io.ReadCloser, *blobstore.Object, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if cur.ResultKey == "" {
		return nil, nil, blobstore.ErrBlobNotFound
	}
	return s.blobs.Get(ctx, cur.ResultKey)
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to remove stored file")
	}
}
