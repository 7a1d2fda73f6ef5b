package integration

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/saludsync/clinic/internal/domain/audit"
	"github.com/saludsync/clinic/internal/domain/billing"
	"github.com/saludsync/clinic/internal/domain/catalog"
	"github.com/saludsync/clinic/internal/domain/encounter"
	"github.com/saludsync/clinic/internal/domain/identity"
	"github.com/saludsync/clinic/internal/domain/medication"
	"github.com/saludsync/clinic/internal/domain/scheduling"
	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/blobstore"
	"github.com/saludsync/clinic/internal/platform/db"
	"github.com/saludsync/clinic/internal/platform/metrics"
)

// testPool is shared by every test in the package and migrated once.
var testPool *pgxpool.Pool

var actor = auth.Actor{Username: "integration", Station: "CI"}

// TestMain uses INTEGRATION_DATABASE_URL when set, otherwise a Docker
// container. Without either the package is skipped.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("INTEGRATION_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		if _, err := exec.LookPath("docker"); err != nil {
			fmt.Fprintln(os.Stderr, "skipping integration tests: docker not found and INTEGRATION_DATABASE_URL not set")
			os.Exit(0)
		}
		var err error
		if connStr, cleanup, err = startPostgres(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
			os.Exit(1)
		}
	}

	pool, err := db.NewPool(ctx, connStr, 20, 1)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.NewMigrator(pool, findMigrationsDir()).Up(ctx); err != nil {
		pool.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	testPool = pool
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// resetDB empties every table the tests write to.
func resetDB(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `TRUNCATE
		encounter_cost_service, encounter_cost, additional_service,
		encounter_line, encounter_diagnosis, encounter,
		appointment, exam_request, medication,
		doctor_specialty, doctor, employee, patient, catalog_item, audit_user
		CASCADE`)
	if err != nil {
		t.Fatalf("reset database: %v", err)
	}
}

type app struct {
	catalog    *catalog.Service
	identity   *identity.Service
	meds       medication.Repository
	encounters *encounter.Service
	scheduling *scheduling.Service
	billing    *billing.Service
	audit      *audit.Service
}

var guayaquil = time.FixedZone("ECT", -5*3600)

func newApp(t *testing.T) *app {
	t.Helper()
	resetDB(t)

	logger := zerolog.Nop()
	m := metrics.New(nil)
	tx := db.NewTxManager(testPool)
	auditRepo := audit.NewRepoPG(testPool)
	recorder := audit.NewRecorder(auditRepo, m, guayaquil)

	a := &app{meds: medication.NewRepoPG(testPool), audit: audit.NewService(auditRepo)}
	a.catalog = catalog.NewService(catalog.NewRepoPG(testPool), tx, recorder)
	a.identity = identity.NewService(
		identity.NewPatientRepoPG(testPool), identity.NewDoctorRepoPG(testPool), identity.NewEmployeeRepoPG(testPool),
		a.catalog, tx, recorder, blobstore.NewMemoryStore(1<<20), logger, guayaquil)
	a.encounters = encounter.NewService(encounter.NewRepoPG(testPool), a.meds, a.identity, a.catalog,
		tx, recorder, m, logger, guayaquil)
	a.scheduling = scheduling.NewService(scheduling.NewRepoPG(testPool), a.identity, tx, recorder, m, logger, guayaquil)
	a.billing = billing.NewService(billing.NewServiceRepoPG(testPool), billing.NewCostRepoPG(testPool),
		a.encounters, a.meds, a.identity, tx, recorder, logger)
	return a
}

// randomCedula returns ten digits; fixtures bypass the check digit rule by
// going through the repository.
func randomCedula() string {
	return fmt.Sprintf("%010d", rand.Int63n(1e10))
}

func createPatient(t *testing.T, first, last string) *identity.Patient {
	t.Helper()
	p := &identity.Patient{
		FirstNames: first, LastNames: last, Cedula: randomCedula(),
		BirthDate: "1990-05-20", Sex: "F", Active: true,
	}
	if err := identity.NewPatientRepoPG(testPool).Create(context.Background(), p); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func createDiagnosis(t *testing.T, code, name string) *catalog.Item {
	t.Helper()
	it := &catalog.Item{Kind: catalog.Diagnosis, Code: code, Name: name, Active: true}
	if err := catalog.NewRepoPG(testPool).Create(context.Background(), it); err != nil {
		t.Fatalf("create diagnosis: %v", err)
	}
	return it
}

func createMedication(t *testing.T, name string, price float64, stock int) *medication.Medication {
	t.Helper()
	m := &medication.Medication{Name: name, Concentration: "500 mg", Price: price, Stock: stock, Commercial: true, Active: true}
	if err := medication.NewRepoPG(testPool).Create(context.Background(), m); err != nil {
		t.Fatalf("create medication: %v", err)
	}
	return m
}

func stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var n int
	if err := testPool.QueryRow(context.Background(), `SELECT stock FROM medication WHERE id = $1`, id).Scan(&n); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return n
}

func countRows(t *testing.T, sql string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := testPool.QueryRow(context.Background(), sql, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func ptrUUID(u uuid.UUID) *uuid.UUID { return &u }
