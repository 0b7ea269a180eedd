package reservation

import (
	"context"
	"fmt"
	"strings"
)

// DayBrowser is the part of the Agent the matcher needs. Slots are only
// readable after their day has been opened.
type DayBrowser interface {
	OpenDay(ctx context.Context, label string) error
	ListSlots(ctx context.Context, day Day) ([]TimeSlot, error)
}

// SlotMatcher finds the first acceptable slot on the earliest day.
type SlotMatcher struct {
	Days DayBrowser

	// Inspected, if set, is called once per opened day with the number of slots seen.
	Inspected func(day Day, slots int)
}

// FindMatch is a convenience wrapper around SlotMatcher.Find.
func FindMatch(ctx context.Context, b DayBrowser, days []Day, preferences []string) (Day, TimeSlot, error) {
	return SlotMatcher{Days: b}.Find(ctx, days, preferences)
}

// Find walks days in the given order, skipping unavailable ones. Each day is opened before its slots are
// read; no further day is opened once a match is found. The first slot in
// display order whose label is in preferences wins (any slot if preferences is
// empty). Running out of days is ErrNoAvailability.
func (m SlotMatcher) Find(ctx context.Context, days []Day, preferences []string) (Day, TimeSlot, error) {
	want := make(map[string]struct{}, len(preferences))
	for _, p := range preferences {
		want[normalizeLabel(p)] = struct{}{}
	}

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return Day{}, TimeSlot{}, err
		}
		if !day.Available {
			continue
		}
		if err := m.Days.OpenDay(ctx, day.Label); err != nil {
			return Day{}, TimeSlot{}, fmt.Errorf("open day %s: %w", day.Label, err)
		}
		slots, err := m.Days.ListSlots(ctx, day)
		if err != nil {
			return Day{}, TimeSlot{}, fmt.Errorf("list slots for %s: %w", day.Label, err)
		}
		if m.Inspected != nil {
			m.Inspected(day, len(slots))
		}
		for _, s := range slots {
			if len(want) == 0 {
				return day, s, nil
			}
			if _, ok := want[normalizeLabel(s.Label)]; ok {
				return day, s, nil
			}
		}
	}
	return Day{}, TimeSlot{}, fmt.Errorf("%w: no slot matching %v across %d days", ErrNoAvailability, preferences, len(days))
}

// normalizeLabel makes "7:00 pm" and " 7:00  PM" compare equal.
func normalizeLabel(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
