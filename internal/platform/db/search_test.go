package db

import (
	"testing"
)

func TestSearchQuery_NoFilters(t *testing.T) {
	q := NewSearchQuery("patient", "id, names").OrderBy("last_names")

	if got := q.CountSQL(); got != "SELECT COUNT(*) FROM patient" {
		t.Errorf("unexpected count sql: %s", got)
	}
	want := "SELECT id, names FROM patient ORDER BY last_names LIMIT $1 OFFSET $2"
	if got := q.DataSQL(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	args := q.DataArgs(20, 40)
	if len(args) != 2 || args[0] != 20 || args[1] != 40 {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestSearchQuery_AnyILikeSharesPlaceholder(t *testing.T) {
	q := NewSearchQuery("patient", "id").
		AddAnyILike("ana", "names", "last_names", "cedula").
		AddEq("sex", "F")

	want := "SELECT COUNT(*) FROM patient WHERE (names ILIKE $1 OR last_names ILIKE $1 OR cedula ILIKE $1) AND sex = $2"
	if got := q.CountSQL(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	args := q.CountArgs()
	if len(args) != 2 || args[0] != "%ana%" || args[1] != "F" {
		t.Errorf("unexpected args: %v", args)
	}
	if got := q.DataSQL(); got[len(got)-18:] != "LIMIT $3 OFFSET $4" {
		t.Errorf("limit placeholders should follow filter args: %s", got)
	}
}

func TestSearchQuery_BlankILikeIgnored(t *testing.T) {
	q := NewSearchQuery("patient", "id").AddAnyILike("   ", "names")
	if len(q.CountArgs()) != 0 {
		t.Error("expected blank search term to add no predicate")
	}
}

func TestSearchQuery_EscapesWildcards(t *testing.T) {
	q := NewSearchQuery("patient", "id").AddAnyILike("50%_", "names")
	if q.CountArgs()[0] != `%50\%\_%` {
		t.Errorf("unexpected escaped term: %v", q.CountArgs()[0])
	}
}

func TestSearchQuery_RawClause(t *testing.T) {
	q := NewSearchQuery("appointment a", "a.id").
		AddEq("a.status", "P").
		Add("(a.date > ? OR (a.date = ? AND a.time >= ?))", "2024-11-04", "2024-11-04", "09:00")

	want := "SELECT COUNT(*) FROM appointment a WHERE a.status = $1 AND (a.date > $2 OR (a.date = $3 AND a.time >= $4))"
	if got := q.CountSQL(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSearchQuery_Distinct(t *testing.T) {
	q := NewSearchQuery("encounter e JOIN patient p ON p.id = e.patient_id", "e.id, p.last_names").Distinct()
	want := "SELECT COUNT(*) FROM (SELECT DISTINCT e.id, p.last_names FROM encounter e JOIN patient p ON p.id = e.patient_id) AS sub"
	if got := q.CountSQL(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
