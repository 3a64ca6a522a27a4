package widgets

import (
	"strings"
	"sync"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

// DateTimePicker picks a day and a slot. The selection is committed as soon
// as both halves are chosen, in either order. A date_picker is the same
// widget with dateOnly set.
type DateTimePicker struct {
	base
	title    string
	subtitle string
	warning  string
	dates    []DateOption
	slots    []Slot
	dateOnly bool

	pick  sync.Mutex
	date  string
	clock string
}

// NewDateTimePicker builds a date_time_picker. Missing dates and slots fall
// back to DefaultDates and DefaultSlots. A half pre-selected by the portal
// counts as known, so picking the other half commits the pair.
func NewDateTimePicker(p DateTimeProps, ctx Context) Widget {
	d := &DateTimePicker{
		title:   orDefault(p.Title, "Pick a date and time"),
		warning: p.Warning,
		dates:   p.Dates,
		slots:   p.Slots,
	}
	if p.DoctorName != "" {
		d.subtitle = "with " + p.DoctorName
	}
	if len(d.dates) == 0 {
		d.dates = DefaultDates(ctx.now())
	}
	if len(d.slots) == 0 {
		d.slots = DefaultSlots()
	}
	d.init(selection.TypeDateTime, ctx)
	if d.selected != nil {
		d.date = d.selected.String("date")
		d.clock = d.selected.String("time")
		return d
	}
	d.preselect(p.SelectedDate, p.SelectedTime)
	return d
}

// preselect seeds the halves named by the portal. A date that is not
// offered is ignored, as is a time that is not open on the chosen day.
// Nothing is emitted here; the pair commits on the next pick.
func (d *DateTimePicker) preselect(date, clock string) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date != "" && d.dateOffered(date) {
		d.date = date
	}
	if clock != "" && !d.dateOnly && d.slotOffered(d.date, clock) {
		d.clock = clock
	}
}

func (d *DateTimePicker) dateOffered(date string) bool {
	for _, day := range d.dates {
		if day.Date == date {
			return true
		}
	}
	return false
}

// NewDatePicker builds a date_picker.
func NewDatePicker(p DateProps, ctx Context) Widget {
	d := &DateTimePicker{
		title:    orDefault(p.Title, "Pick a date"),
		warning:  p.Warning,
		dates:    p.Dates,
		dateOnly: true,
	}
	if len(d.dates) == 0 {
		d.dates = DefaultDates(ctx.now())
	}
	d.init(selection.TypeDate, ctx)
	if d.selected != nil {
		d.date = d.selected.String("date")
		return d
	}
	d.preselect(p.SelectedDate, "")
	return d
}

// timesFor returns the slots offered for date.
func (d *DateTimePicker) timesFor(date string) []Slot {
	for _, day := range d.dates {
		if day.Date == date && len(day.Slots) > 0 {
			return day.Slots
		}
	}
	return d.slots
}

// View lists dates and, unless date-only, the slots for the chosen day.
func (d *DateTimePicker) View() View {
	v := d.view(d.title)
	v.Subtitle = d.subtitle
	v.Warning = d.warning

	d.pick.Lock()
	date, clock := d.date, d.clock
	d.pick.Unlock()

	for _, day := range d.dates {
		v.Dates = append(v.Dates, Option{
			ID:       day.Date,
			Label:    orDefault(day.Label, selection.HumanDate(day.Date)),
			Detail:   selection.HumanDate(day.Date),
			Selected: day.Date == date,
		})
	}
	if d.dateOnly {
		return v
	}
	for _, s := range d.timesFor(date) {
		v.Times = append(v.Times, Option{
			ID:       s.Time,
			Label:    orDefault(s.Label, selection.HumanTime(s.Time)),
			Selected: s.Time == clock,
			Disabled: !s.open(),
		})
	}
	return v
}

// ChooseDate sets the day and commits if a slot is already chosen.
func (d *DateTimePicker) ChooseDate(index int) error {
	if err := d.guard(); err != nil {
		return err
	}
	if index < 0 || index >= len(d.dates) {
		return ErrNoSuchOption
	}
	date := d.dates[index].Date

	d.pick.Lock()
	d.date = date
	if d.clock != "" && !d.slotOffered(date, d.clock) {
		d.clock = ""
	}
	clock := d.clock
	d.pick.Unlock()

	if d.dateOnly {
		return d.emit(selection.Selection{"date": date}.WithDisplay(selection.HumanDate(date)))
	}
	if clock == "" {
		return nil
	}
	return d.commit(date, clock)
}

// ChooseTime sets the slot and commits if a day is already chosen.
func (d *DateTimePicker) ChooseTime(index int) error {
	if d.dateOnly {
		return ErrNotSupported
	}
	if err := d.guard(); err != nil {
		return err
	}

	d.pick.Lock()
	times := d.timesFor(d.date)
	if index < 0 || index >= len(times) || !times[index].open() {
		d.pick.Unlock()
		return ErrNoSuchOption
	}
	d.clock = times[index].Time
	date, clock := d.date, d.clock
	d.pick.Unlock()

	if date == "" {
		return nil
	}
	return d.commit(date, clock)
}

func (d *DateTimePicker) slotOffered(date, clock string) bool {
	for _, s := range d.timesFor(date) {
		if s.Time == clock && s.open() {
			return true
		}
	}
	return false
}

func (d *DateTimePicker) commit(date, clock string) error {
	display := selection.HumanDate(date) + " at " + selection.HumanTime(clock)
	return d.emit(selection.Selection{"date": date, "time": clock}.WithDisplay(display))
}

// Choose picks a date on a date-only picker.
func (d *DateTimePicker) Choose(index int) error {
	if !d.dateOnly {
		return ErrNotSupported
	}
	return d.ChooseDate(index)
}
