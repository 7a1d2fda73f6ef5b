package encounter

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/saludsync/clinic/internal/domain/medication"
	"github.com/saludsync/clinic/internal/platform/apperr"
)

const (
	msgQuantity    = "La cantidad no puede ser CERO o negativa."
	msgNoLines     = "Debe registrar al menos un detalle de medicamento."
	msgNoMedicine  = "Seleccione un medicamento."
	msgUnknownMed  = "Medicamento inexistente."
	msgForeignLine = "El detalle no pertenece a esta atención."
	msgRepeatLine  = "El detalle figura más de una vez en la solicitud."
)

// linePlan is the net effect of one submission on the detail lines and on
// medication stock.
type linePlan struct {
	inserts []*Line
	updates []*Line
	deletes []*Line
	// deltas holds the stock change per medication; negative values draw.
	deltas map[uuid.UUID]int
	// active counts the lines the encounter keeps after the plan is applied.
	active int
}

func lineField(i int) string {
	return fmt.Sprintf("detalles.%d", i)
}

// medicationIDs lists every medication a submission touches, including the
// ones of stored lines that may be restored.
func medicationIDs(changes []LineChange, stored []*Line) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if id != uuid.Nil && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, c := range changes {
		add(c.MedicationID)
	}
	for _, l := range stored {
		add(l.MedicationID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// planLines validates changes against the stored lines of the encounter and
// the current stock in meds. Every problem is collected; a line stops at its
// first problem. The checks per line run in this order: medication present,
// quantity positive, medication known, not a duplicate, enough stock.
func planLines(create bool, changes []LineChange, stored []*Line, meds map[uuid.UUID]*medication.Medication) (*linePlan, *apperr.ValidationError) {
	v := &apperr.ValidationError{}
	p := &linePlan{deltas: map[uuid.UUID]int{}}

	byID := make(map[uuid.UUID]*Line, len(stored))
	for _, l := range stored {
		byID[l.ID] = l
	}

	// First pass: resolve references to stored lines and collect what they
	// give back to stock.
	touched := map[uuid.UUID]bool{}
	skip := map[int]bool{}
	restores := map[uuid.UUID]int{}
	for i, c := range changes {
		if c.ID == nil {
			continue
		}
		prev, ok := byID[*c.ID]
		if !ok {
			v.AddField(lineField(i), msgForeignLine)
			skip[i] = true
			continue
		}
		if touched[prev.ID] {
			v.AddField(lineField(i), msgRepeatLine)
			skip[i] = true
			continue
		}
		touched[prev.ID] = true
		if c.Delete || c.MedicationID != prev.MedicationID {
			restores[prev.MedicationID] += prev.Quantity
		}
	}

	inUse := map[uuid.UUID]bool{}
	for _, l := range stored {
		if !touched[l.ID] {
			inUse[l.MedicationID] = true
			p.active++
		}
	}

	verb := "actualizar"
	if create {
		verb = "crear"
	}
	drawn := map[uuid.UUID]int{}
	// filled counts kept rows naming a known medication with a positive
	// quantity, whether or not they later fail the duplicate or stock check.
	filled := 0
	for i, c := range changes {
		if skip[i] || c.blank() {
			continue
		}
		field := lineField(i)
		if c.Delete {
			if c.ID != nil {
				p.deletes = append(p.deletes, byID[*c.ID])
			}
			continue
		}
		if c.MedicationID == uuid.Nil {
			v.AddField(field, msgNoMedicine)
			continue
		}
		if c.Quantity <= 0 {
			v.AddField(field, msgQuantity)
			continue
		}
		m := meds[c.MedicationID]
		if m == nil {
			v.AddField(field, msgUnknownMed)
			continue
		}
		filled++
		if inUse[m.ID] {
			v.AddField(field, fmt.Sprintf("El medicamento %s ya está registrado en esta atención.", m.Name))
			continue
		}
		inUse[m.ID] = true

		need := c.Quantity
		var prev *Line
		if c.ID != nil {
			prev = byID[*c.ID]
			if prev.MedicationID == m.ID {
				need = c.Quantity - prev.Quantity
			}
		}
		available := m.Stock + restores[m.ID] - drawn[m.ID]
		if need > available {
			v.AddField(field, fmt.Sprintf(
				"Stock insuficiente: no se puede %s la atención porque la cantidad de %s almacenada (%d) es inferior a la cantidad solicitada (%d).",
				verb, m.Name, available, need))
			continue
		}
		drawn[m.ID] += need

		l := &Line{MedicationID: m.ID, Quantity: c.Quantity, Prescription: c.Prescription, DurationDays: c.DurationDays}
		if prev != nil {
			l.ID, l.EncounterID = prev.ID, prev.EncounterID
			p.updates = append(p.updates, l)
		} else {
			p.inserts = append(p.inserts, l)
		}
		p.active++
	}

	if create && filled == 0 {
		v.Add(msgNoLines)
	}

	for id, n := range restores {
		p.deltas[id] += n
	}
	for id, n := range drawn {
		p.deltas[id] -= n
	}
	for id, n := range p.deltas {
		if n == 0 {
			delete(p.deltas, id)
		}
	}
	return p, v
}

// sortedDeltas returns the medication ids of deltas in ascending order, the
// order rows are locked in.
func sortedDeltas(deltas map[uuid.UUID]int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
