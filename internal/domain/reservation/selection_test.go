package reservation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalendar struct {
	slots  map[string][]string
	opened []string
	err    error
}

func (f *fakeCalendar) OpenDay(_ context.Context, label string) error {
	if f.err != nil {
		return f.err
	}
	f.opened = append(f.opened, label)
	return nil
}

func (f *fakeCalendar) ListSlots(_ context.Context, day Day) ([]TimeSlot, error) {
	var out []TimeSlot
	for _, l := range f.slots[day.Label] {
		out = append(out, TimeSlot{Label: l, Day: day.Label})
	}
	return out, nil
}

func avail(labels ...string) []Day {
	out := make([]Day, 0, len(labels))
	for _, l := range labels {
		out = append(out, Day{Label: l, Available: true})
	}
	return out
}

func TestFindMatch_EmptyPreferencesTakesFirstSlotOfFirstDayWithSlots(t *testing.T) {
	cal := &fakeCalendar{slots: map[string][]string{
		"2024-05-01": nil,
		"2024-05-02": {"6:00 PM", "7:30 PM"},
		"2024-05-03": {"5:00 PM"},
	}}

	day, slot, err := FindMatch(context.Background(), cal, avail("2024-05-01", "2024-05-02", "2024-05-03"), nil)

	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", day.Label)
	assert.Equal(t, "6:00 PM", slot.Label)
	assert.Equal(t, []string{"2024-05-01", "2024-05-02"}, cal.opened, "must not open days past the match")
}

func TestFindMatch_PreferencesPickEarliestDayContainingAny(t *testing.T) {
	cal := &fakeCalendar{slots: map[string][]string{
		"2024-05-01": {"5:00 PM", "9:00 PM"},
		"2024-05-02": {"6:00 PM", "7:30 PM", "7:00 PM"},
		"2024-05-03": {"7:00 PM"},
	}}

	day, slot, err := FindMatch(context.Background(), cal, avail("2024-05-01", "2024-05-02", "2024-05-03"), []string{"7:00 PM", "7:30 PM"})

	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", day.Label)
	assert.Equal(t, "7:30 PM", slot.Label, "first matching slot in display order, not first preference")
	assert.Equal(t, "2024-05-02", slot.Day)
}

func TestFindMatch_LabelsCompareLoosely(t *testing.T) {
	cal := &fakeCalendar{slots: map[string][]string{"d1": {"7:00  pm"}}}

	_, slot, err := FindMatch(context.Background(), cal, avail("d1"), []string{" 7:00 PM"})

	require.NoError(t, err)
	assert.Equal(t, "7:00  pm", slot.Label)
}

func TestFindMatch_NoAvailability(t *testing.T) {
	tests := []struct {
		name  string
		days  []Day
		prefs []string
	}{
		{name: "no days", days: nil, prefs: []string{"7:00 PM"}},
		{name: "only unavailable days", days: []Day{{Label: "d1"}, {Label: "d2"}}, prefs: nil},
		{name: "no preferred slot anywhere", days: avail("d1", "d2"), prefs: []string{"11:00 PM"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := &fakeCalendar{slots: map[string][]string{"d1": {"6:00 PM"}, "d2": {"7:00 PM"}}}

			_, _, err := FindMatch(context.Background(), cal, tt.days, tt.prefs)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNoAvailability)
			assert.Equal(t, KindNoAvailability, KindOf(err))
		})
	}
}

func TestFindMatch_UnavailableDaysAreNeverOpened(t *testing.T) {
	cal := &fakeCalendar{slots: map[string][]string{"d1": {"7:00 PM"}, "d2": {"7:00 PM"}}}

	day, _, err := FindMatch(context.Background(), cal, []Day{{Label: "d1"}, {Label: "d2", Available: true}}, nil)

	require.NoError(t, err)
	assert.Equal(t, "d2", day.Label)
	assert.Equal(t, []string{"d2"}, cal.opened)
}

func TestFindMatch_AgentErrorAborts(t *testing.T) {
	cal := &fakeCalendar{err: ErrElementNotFound}

	_, _, err := FindMatch(context.Background(), cal, avail("d1"), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrElementNotFound)
	assert.False(t, errors.Is(err, ErrNoAvailability))
}

func TestSlotMatcher_ReportsInspectedDays(t *testing.T) {
	cal := &fakeCalendar{slots: map[string][]string{"d1": {"5:00 PM"}, "d2": {"7:00 PM", "8:00 PM"}}}
	seen := map[string]int{}
	m := SlotMatcher{Days: cal, Inspected: func(d Day, n int) { seen[d.Label] = n }}

	_, _, err := m.Find(context.Background(), avail("d1", "d2"), []string{"8:00 PM"})

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"d1": 1, "d2": 2}, seen)
}

func TestFindMatch_StopsOnCancelledContext(t *testing.T) {
	cal := &fakeCalendar{slots: map[string][]string{"d1": {"7:00 PM"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := FindMatch(ctx, cal, avail("d1"), nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cal.opened)
}
