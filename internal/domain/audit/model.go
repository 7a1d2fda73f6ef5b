package audit

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	Added    Action = "A"
	Modified Action = "M"
	Erased   Action = "E"
)

func (a Action) Valid() bool {
	return a == Added || a == Modified || a == Erased
}

// Entry is one append-only audit record. Date and Time are wall-clock values
// in the clinic's timezone.
type Entry struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"usuario"`
	Table     string     `json:"tabla"`
	RecordID  string     `json:"registroid"`
	Action    Action     `json:"accion"`
	Date      string     `json:"fecha"`
	Time      string     `json:"hora"`
	Station   string     `json:"estacion"`
	CreatedAt time.Time  `json:"-"`
	Published *time.Time `json:"-"`
}

// Filter narrows the audit list. Query matches username, table or record id.
type Filter struct {
	Query  string
	Action Action
}
