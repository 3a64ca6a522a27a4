package widgets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

func fixedNow() time.Time {
	return time.Date(2026, time.October, 16, 18, 45, 0, 0, time.UTC)
}

func TestDefaultDates(t *testing.T) {
	dates := DefaultDates(fixedNow())
	require.Len(t, dates, DefaultDayCount)
	assert.Equal(t, DateOption{Date: "2026-10-16", Label: "Today"}, dates[0])
	assert.Equal(t, DateOption{Date: "2026-10-17", Label: "Tomorrow"}, dates[1])
	assert.Equal(t, "Sun", dates[2].Label)
	assert.Equal(t, "2026-10-20", dates[4].Date)
}

func TestDateTimeFallbacks(t *testing.T) {
	ctx := Context{Now: fixedNow}
	w := NewDateTimePicker(DateTimeProps{DoctorName: "Dr. Rao"}, ctx)
	v := w.View()
	assert.Len(t, v.Dates, DefaultDayCount)
	assert.Len(t, v.Times, len(DefaultSlotTimes))
	assert.Equal(t, "with Dr. Rao", v.Subtitle)
	assert.Equal(t, "9:00 AM", v.Times[0].Label)
}

func TestDateTimeCommitsWhenBothChosen(t *testing.T) {
	var got captured
	ctx := got.ctx()
	ctx.Now = fixedNow
	w := NewDateTimePicker(DateTimeProps{}, ctx).(DateTimeChooser)

	require.NoError(t, w.ChooseTime(4))
	assert.Empty(t, got.sels)
	require.NoError(t, w.ChooseDate(1))

	require.Len(t, got.sels, 1)
	sel := got.sels[0]
	assert.Equal(t, "2026-10-17", sel["date"])
	assert.Equal(t, "15:00", sel["time"])
	assert.Equal(t, "Sat, 17 Oct 2026 at 3:00 PM", sel[selection.DisplayKey])

	assert.ErrorIs(t, w.ChooseDate(2), selection.ErrDisabled)
}

func TestDateTimePreselectedDateCommitsOnTime(t *testing.T) {
	var got captured
	w := NewDateTimePicker(DateTimeProps{
		Dates:        []DateOption{{Date: "2026-10-19"}, {Date: "2026-10-20"}},
		Slots:        []Slot{{Time: "09:00"}, {Time: "10:00"}},
		SelectedDate: "2026-10-20",
	}, got.ctx())

	v := w.View()
	assert.True(t, v.Dates[1].Selected)
	assert.Nil(t, v.Selected)
	assert.Empty(t, got.sels)

	require.NoError(t, w.(DateTimeChooser).ChooseTime(0))
	require.Len(t, got.sels, 1)
	assert.Equal(t, "2026-10-20", got.sels[0]["date"])
	assert.Equal(t, "09:00", got.sels[0]["time"])
}

func TestDateTimePreselectedTimeCommitsOnDate(t *testing.T) {
	var got captured
	ctx := got.ctx()
	ctx.Now = fixedNow
	w := NewDateTimePicker(DateTimeProps{SelectedTime: "14:00"}, ctx)
	assert.True(t, w.View().Times[3].Selected)

	require.NoError(t, w.(DateTimeChooser).ChooseDate(2))
	require.Len(t, got.sels, 1)
	assert.Equal(t, selection.Selection{
		"date":               "2026-10-18",
		"time":               "14:00",
		selection.DisplayKey: "Sun, 18 Oct 2026 at 2:00 PM",
	}, got.sels[0])
}

func TestDateTimeIgnoresPreselectionNotOffered(t *testing.T) {
	var got captured
	closed := false
	w := NewDateTimePicker(DateTimeProps{
		Dates:        []DateOption{{Date: "2026-10-20", Slots: []Slot{{Time: "10:00", Available: &closed}, {Time: "11:00"}}}},
		SelectedDate: "2026-12-25",
		SelectedTime: "12:30",
	}, got.ctx())
	v := w.View()
	assert.False(t, v.Dates[0].Selected)
	for _, opt := range v.Times {
		assert.False(t, opt.Selected, opt.ID)
	}

	require.NoError(t, w.(DateTimeChooser).ChooseDate(0))
	assert.Empty(t, got.sels, "no time is known yet")
	require.NoError(t, w.(DateTimeChooser).ChooseTime(1))
	require.Len(t, got.sels, 1)
	assert.Equal(t, "11:00", got.sels[0]["time"])
}

func TestDateTimeFrozenSelectionWinsOverPreselection(t *testing.T) {
	ctx := Context{Disabled: true, Selection: selection.Selection{"date": "2026-10-19", "time": "09:00"}}
	w := NewDateTimePicker(DateTimeProps{
		Dates:        []DateOption{{Date: "2026-10-19"}, {Date: "2026-10-20"}},
		Slots:        []Slot{{Time: "09:00"}, {Time: "10:00"}},
		SelectedDate: "2026-10-20",
		SelectedTime: "10:00",
	}, ctx)
	v := w.View()
	assert.True(t, v.Dates[0].Selected)
	assert.True(t, v.Times[0].Selected)
}

func TestDateTimeRejectsUnavailableSlot(t *testing.T) {
	closed := false
	var got captured
	w := NewDateTimePicker(DateTimeProps{
		Dates: []DateOption{{Date: "2026-10-20", Slots: []Slot{{Time: "10:00", Available: &closed}, {Time: "11:00"}}}},
	}, got.ctx()).(DateTimeChooser)

	require.NoError(t, w.ChooseDate(0))
	assert.ErrorIs(t, w.ChooseTime(0), ErrNoSuchOption)
	require.NoError(t, w.ChooseTime(1))
	assert.Equal(t, "11:00", got.last(t)["time"])
}

func TestDateTimeFrozenView(t *testing.T) {
	ctx := Context{Disabled: true, Selection: selection.Selection{"date": "2026-10-20", "time": "10:00"}}
	w := NewDateTimePicker(DateTimeProps{
		Dates: []DateOption{{Date: "2026-10-19"}, {Date: "2026-10-20"}},
		Slots: []Slot{{Time: "09:00"}, {Time: "10:00"}},
	}, ctx)
	v := w.View()
	assert.True(t, v.Dates[1].Selected)
	assert.True(t, v.Times[1].Selected)
	assert.True(t, v.Disabled)
}

func TestDatePicker(t *testing.T) {
	var got captured
	ctx := got.ctx()
	ctx.Now = fixedNow
	w := NewDatePicker(DateProps{}, ctx)
	assert.Empty(t, w.View().Times)
	assert.ErrorIs(t, w.(DateTimeChooser).ChooseTime(0), ErrNotSupported)

	require.NoError(t, w.(Chooser).Choose(0))
	assert.Equal(t, selection.Selection{"date": "2026-10-16", selection.DisplayKey: "Fri, 16 Oct 2026"}, got.last(t))
}

func TestDatePickerPreselection(t *testing.T) {
	var got captured
	ctx := got.ctx()
	ctx.Now = fixedNow
	w := NewDatePicker(DateProps{SelectedDate: "2026-10-17"}, ctx)
	assert.True(t, w.View().Dates[1].Selected)
	assert.Empty(t, got.sels)
}
