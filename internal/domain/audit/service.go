package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/platform/auditstream"
	"github.com/saludsync/clinic/internal/platform/auth"
)

// Auditor is what write services depend on.
type Auditor interface {
	Record(ctx context.Context, actor auth.Actor, table string, recordID uuid.UUID, action Action) error
}

type Metrics interface {
	ObserveAudit(action string)
}

// Recorder appends audit entries. Callers invoke it inside their write
// transaction; a failing append fails the write.
type Recorder struct {
	repo    Repository
	metrics Metrics
	loc     *time.Location
	now     func() time.Time
}

func NewRecorder(repo Repository, metrics Metrics, loc *time.Location) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	return &Recorder{repo: repo, metrics: metrics, loc: loc, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, actor auth.Actor, table string, recordID uuid.UUID, action Action) error {
	if !action.Valid() {
		return fmt.Errorf("invalid audit action %q", action)
	}
	now := r.now().In(r.loc)
	e := &Entry{
		Username:  actor.Username,
		Table:     table,
		RecordID:  recordID.String(),
		Action:    action,
		Date:      now.Format("2006-01-02"),
		Time:      now.Format("15:04:05"),
		Station:   actor.Station,
		CreatedAt: now.UTC(),
	}
	if err := r.repo.Append(ctx, e); err != nil {
		return fmt.Errorf("append audit record for %s %s: %w", table, recordID, err)
	}
	if r.metrics != nil {
		r.metrics.ObserveAudit(string(action))
	}
	return nil
}

// Service is the read side of the audit trail.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	if f.Action != "" && !f.Action.Valid() {
		f.Action = ""
	}
	return s.repo.List(ctx, f, limit, offset)
}

// StreamSource adapts the repository to the audit relay.
type StreamSource struct {
	repo Repository
}

func NewStreamSource(repo Repository) *StreamSource {
	return &StreamSource{repo: repo}
}

func (s *StreamSource) Pending(ctx context.Context, limit int) ([]auditstream.Event, error) {
	entries, err := s.repo.Unpublished(ctx, limit)
	if err != nil {
		return nil, err
	}
	events := make([]auditstream.Event, len(entries))
	for i, e := range entries {
		events[i] = auditstream.Event{ID: e.ID, Payload: e}
	}
	return events, nil
}

func (s *StreamSource) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	return s.repo.MarkPublished(ctx, ids, at)
}
