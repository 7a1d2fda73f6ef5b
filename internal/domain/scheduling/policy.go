package scheduling

import (
	"fmt"
	"time"

	"github.com/saludsync/clinic/internal/platform/apperr"
)

const (
	msgSunday = "Domingos no se trabaja. CLINICA CERRADA."

	slotLength = 30 * time.Minute
)

// Hours is the daily opening window as offsets from midnight. Both ends
// are bookable.
type Hours struct {
	Open, Close time.Duration
}

// DefaultHours is 08:00 to 17:00.
var DefaultHours = Hours{Open: clock(8, 0), Close: clock(17, 0)}

func (h Hours) contains(tod time.Duration) bool {
	return tod >= h.Open && tod <= h.Close
}

func (h Hours) message() string {
	return fmt.Sprintf("CLINICA CERRADA. Horario permitido es de %s a %s de Lunes a Sábado.",
		clockLabel(h.Open), clockLabel(h.Close))
}

// clockLabel renders 8h as 8AM and 17h30m as 5:30PM.
func clockLabel(d time.Duration) string {
	t := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(d)
	if t.Minute() == 0 {
		return t.Format("3PM")
	}
	return t.Format("3:04PM")
}

func clock(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

// checkPolicy applies the clinic rules to a parsed date and time. Every rule
// runs; taken reports another appointment at the same date and time.
func checkPolicy(day, at time.Time, taken bool, hours Hours, v *apperr.ValidationError) {
	if taken {
		v.AddField("hora_cita", doubleBooked(day, at))
	}
	if day.Weekday() == time.Sunday {
		v.AddField("fecha", msgSunday)
	}
	if !hours.contains(clock(at.Hour(), at.Minute())) {
		v.AddField("hora_cita", hours.message())
	}
}

func doubleBooked(day, at time.Time) string {
	next := time.Date(day.Year(), day.Month(), day.Day(), at.Hour(), at.Minute(), 0, 0, time.UTC).Add(slotLength)
	return fmt.Sprintf("Ya existe una consulta a esta hora. La siguiente cita debe ser después de %s.",
		next.Format(dateLayout+" "+timeLayout))
}
