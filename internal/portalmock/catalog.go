package portalmock

import (
	"encoding/json"
	"time"

	"github.com/wolfman30/careportal-chat/internal/widgets"
)

var doctors = []widgets.Doctor{
	{ID: "DR-101", Name: "Dr. Anjali Mehta", Specialty: "Cardiology", Qualification: "MBBS, MD, DM", ExperienceYears: 14, Fee: 800, Rating: 4.8},
	{ID: "DR-102", Name: "Dr. Vikram Rao", Specialty: "General Medicine", Qualification: "MBBS, MD", ExperienceYears: 9, Fee: 500, Rating: 4.6},
	{ID: "DR-103", Name: "Dr. Sana Qureshi", Specialty: "Pediatrics", Qualification: "MBBS, DCH", ExperienceYears: 11, Fee: 600, Rating: 4.7},
}

func findDoctor(id string) (widgets.Doctor, bool) {
	for _, d := range doctors {
		if d.ID == id {
			return d, true
		}
	}
	return widgets.Doctor{}, false
}

var clinicSlots = []string{"09:30", "10:00", "10:30", "11:30", "16:00", "16:30", "17:00"}

// bookableDates returns the next days the clinics open, starting tomorrow.
// Sundays are closed and each day has one slot already taken.
func bookableDates(now time.Time, days int) []widgets.DateOption {
	out := make([]widgets.DateOption, 0, days)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for len(out) < days {
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == time.Sunday {
			continue
		}
		taken := clinicSlots[len(out)%len(clinicSlots)]
		slots := make([]widgets.Slot, 0, len(clinicSlots))
		for _, s := range clinicSlots {
			slot := widgets.Slot{Time: s}
			if s == taken {
				closed := false
				slot.Available = &closed
			}
			slots = append(slots, slot)
		}
		out = append(out, widgets.DateOption{Date: day.Format("2006-01-02"), Slots: slots})
	}
	return out
}

// slotOpen reports whether date/clock is one of the offered open slots.
func slotOpen(now time.Time, date, clock string) bool {
	for _, d := range bookableDates(now, 6) {
		if d.Date != date {
			continue
		}
		for _, s := range d.Slots {
			if s.Time == clock {
				return s.Available == nil || *s.Available
			}
		}
	}
	return false
}

// field is one key of an ordered JSON object.
type field struct {
	key   string
	value any
}

// object marshals its fields in order. Booking summaries rely on it.
type object []field

func (o object) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, f := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
