package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/domain/scheduling"
	"github.com/saludsync/clinic/internal/platform/apperr"
)

func TestScheduling_ConcurrentBookingsOfOneSlot(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	p1 := createPatient(t, "Ana", "Vera")
	p2 := createPatient(t, "Luis", "Mora")

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, id := range []uuid.UUID{p1.ID, p2.ID} {
		wg.Add(1)
		go func(i int, patientID uuid.UUID) {
			defer wg.Done()
			// 2030-01-07 is a Monday.
			errs[i] = a.scheduling.Create(ctx, &scheduling.Appointment{
				PatientID: patientID, Date: "2030-01-07", Time: "10:00", Status: scheduling.StatusProgrammed,
			}, actor)
		}(i, id)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		failed++
		v, ok := apperr.AsValidation(err)
		if !ok || len(v.Fields["hora_cita"]) != 1 {
			t.Errorf("expected a hora_cita validation error, got %v", err)
			continue
		}
		want := "Ya existe una consulta a esta hora. La siguiente cita debe ser después de 2030-01-07 10:30."
		if v.Fields["hora_cita"][0] != want {
			t.Errorf("unexpected message %q", v.Fields["hora_cita"][0])
		}
	}
	if failed != 1 {
		t.Errorf("expected exactly one rejected booking, got %d", failed)
	}
	if n := countRows(t, `SELECT COUNT(*) FROM appointment`); n != 1 {
		t.Errorf("expected one appointment, got %d", n)
	}
}

func TestScheduling_PatientDeleteCascades(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	p := createPatient(t, "Rosa", "Paz")

	appt := &scheduling.Appointment{PatientID: p.ID, Date: "2030-01-08", Time: "08:00", Status: scheduling.StatusProgrammed}
	if err := a.scheduling.Create(ctx, appt, actor); err != nil {
		t.Fatal(err)
	}
	if err := a.identity.DeletePatient(ctx, p.ID, actor); err != nil {
		t.Fatalf("delete patient: %v", err)
	}
	if n := countRows(t, `SELECT COUNT(*) FROM appointment`); n != 0 {
		t.Errorf("appointments survived the patient: %d", n)
	}
}
