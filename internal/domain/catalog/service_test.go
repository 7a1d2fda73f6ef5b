package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/domain/audit"
	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/db"
)

type mockRepo struct {
	items map[uuid.UUID]*Item
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Item)}
}

func (m *mockRepo) Create(_ context.Context, it *Item) error {
	for _, other := range m.items {
		if other.Kind == it.Kind && strings.EqualFold(other.Name, it.Name) {
			return apperr.Conflict("duplicado")
		}
	}
	it.ID = uuid.New()
	m.items[it.ID] = it
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, kind Kind, id uuid.UUID) (*Item, error) {
	it, ok := m.items[id]
	if !ok || it.Kind != kind {
		return nil, apperr.NotFound(kind.Label())
	}
	return it, nil
}

func (m *mockRepo) GetMany(_ context.Context, kind Kind, ids []uuid.UUID) ([]*Item, error) {
	var out []*Item
	for _, id := range ids {
		if it, ok := m.items[id]; ok && it.Kind == kind {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, it *Item) error {
	if cur, ok := m.items[it.ID]; !ok || cur.Kind != it.Kind {
		return apperr.NotFound(it.Kind.Label())
	}
	m.items[it.ID] = it
	return nil
}

func (m *mockRepo) Delete(_ context.Context, kind Kind, id uuid.UUID) error {
	if it, ok := m.items[id]; !ok || it.Kind != kind {
		return apperr.NotFound(kind.Label())
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Item, int, error) {
	var out []*Item
	for _, it := range m.items {
		if it.Kind != f.Kind {
			continue
		}
		if f.Active != nil && it.Active != *f.Active {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(it.Name+it.Code), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, it)
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

type auditCall struct {
	table  string
	id     uuid.UUID
	action audit.Action
}

type fakeAuditor struct {
	calls []auditCall
	err   error
}

func (f *fakeAuditor) Record(_ context.Context, _ auth.Actor, table string, id uuid.UUID, action audit.Action) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, auditCall{table, id, action})
	return nil
}

func newTestService() (*Service, *mockRepo, *fakeAuditor) {
	repo := newMockRepo()
	aud := &fakeAuditor{}
	return NewService(repo, db.NoTx, aud), repo, aud
}

var actor = auth.Actor{Username: "admin", Station: "REC-1"}

func TestService_CreateAudits(t *testing.T) {
	svc, _, aud := newTestService()
	it := &Item{Kind: Diagnosis, Code: " j00 ", Name: "Rinofaringitis aguda", Active: true}

	if err := svc.Create(context.Background(), it, actor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.Code != "J00" {
		t.Errorf("expected normalized code J00, got %q", it.Code)
	}
	if len(aud.calls) != 1 || aud.calls[0].action != audit.Added || aud.calls[0].table != "diagnosis" {
		t.Errorf("unexpected audit calls %+v", aud.calls)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc, repo, aud := newTestService()

	err := svc.Create(context.Background(), &Item{Kind: Diagnosis}, actor)
	v, ok := apperr.AsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(v.Fields["nombre"]) != 1 || len(v.Fields["codigo"]) != 1 {
		t.Errorf("expected nombre and codigo errors, got %+v", v.Fields)
	}
	if len(repo.items) != 0 || len(aud.calls) != 0 {
		t.Error("nothing should be written on validation failure")
	}
}

func TestService_CodeOptionalOutsideDiagnosis(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.Create(context.Background(), &Item{Kind: BloodType, Name: "O+"}, actor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestService_AuditFailureFailsWrite(t *testing.T) {
	svc, _, aud := newTestService()
	aud.err = errors.New("audit down")

	err := svc.Create(context.Background(), &Item{Kind: Cargo, Name: "Enfermera"}, actor)
	if err == nil {
		t.Fatal("expected audit failure to surface")
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	svc, repo, aud := newTestService()
	ctx := context.Background()
	it := &Item{Kind: Specialty, Name: "Pediatría", Active: true}
	svc.Create(ctx, it, actor)

	upd := &Item{ID: it.ID, Kind: Specialty, Name: "Pediatría general", Active: false}
	if err := svc.Update(ctx, upd, actor); err != nil {
		t.Fatalf("update: %v", err)
	}
	if repo.items[it.ID].Name != "Pediatría general" {
		t.Error("update not persisted")
	}

	if err := svc.Update(ctx, &Item{ID: it.ID, Kind: Cargo, Name: "x"}, actor); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for wrong kind, got %v", err)
	}

	if err := svc.Delete(ctx, Specialty, it.ID, actor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	actions := []audit.Action{}
	for _, c := range aud.calls {
		actions = append(actions, c.action)
	}
	if len(actions) != 3 || actions[1] != audit.Modified || actions[2] != audit.Erased {
		t.Errorf("unexpected audit trail %v", actions)
	}
}

func TestService_Lookup(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	a := &Item{Kind: Diagnosis, Code: "A09", Name: "Gastroenteritis"}
	b := &Item{Kind: Specialty, Name: "Cardiología"}
	svc.Create(ctx, a, actor)
	svc.Create(ctx, b, actor)

	got, err := svc.Lookup(ctx, Diagnosis, []uuid.UUID{a.ID, b.ID, uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[a.ID] == nil {
		t.Errorf("expected only the diagnosis, got %v", got)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"blood-type", BloodType, true},
		{"DIAGNOSIS", Diagnosis, true},
		{"medicine_brand", MedicineBrand, true},
		{"horario", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseKind(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseKind(%q) = %q, %v", tt.in, got, ok)
		}
	}
}
