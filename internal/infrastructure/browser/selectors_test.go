package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tock-booker/internal/domain/reservation"
)

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"4 guests", 4, true},
		{"Party of 12", 12, true},
		{"  1 guest ", 1, true},
		{"guests", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := parseCount(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestDayAvailable(t *testing.T) {
	assert.True(t, dayAvailable("false", "ConsumerCalendar-day is-available"))
	assert.False(t, dayAvailable("true", "ConsumerCalendar-day is-available"))
	assert.False(t, dayAvailable("false", "ConsumerCalendar-day is-sold-out"))
	assert.False(t, dayAvailable("", "is-available"))
	assert.False(t, dayAvailable("false", "is-available-soon"))
}

func TestAttrSelector(t *testing.T) {
	assert.Equal(t, `[data-testid=consumer-calendar-day][aria-label="March 1, 2025"]`,
		attrSelector(DefaultSelectors().CalendarDay, "aria-label", "March 1, 2025"))
	assert.Equal(t, `td[title="say \"hi\""]`, attrSelector("td", "title", `say "hi"`))
}

func TestExactText(t *testing.T) {
	re := exactText("2:00 PM")
	assert.True(t, re.MatchString("2:00 PM"))
	assert.True(t, re.MatchString("  2:00 PM\n"))
	assert.False(t, re.MatchString("12:00 PM"), "a longer time must not match")
	assert.False(t, re.MatchString("2:00 PM - waitlist"))

	menu := exactText("Tasting Menu")
	assert.True(t, menu.MatchString("Tasting Menu"))
	assert.False(t, menu.MatchString("Tasting Menu Wine Pairing"))

	assert.True(t, exactText("$45 (2.5h)").MatchString("$45 (2.5h)"), "label is quoted, not a pattern")
	assert.False(t, exactText("7.00 PM").MatchString("7:00 PM"))
}

func TestSameLabel(t *testing.T) {
	assert.True(t, sameLabel(" 7:00  PM\n", "7:00 PM"))
	assert.False(t, sameLabel("12:00 PM", "2:00 PM"))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("x", nil))
	assert.ErrorIs(t, classify("click", playwright.ErrTimeout), reservation.ErrTransientUI)

	other := classify("click", errors.New("target closed"))
	assert.Equal(t, reservation.KindTransientUI, reservation.KindOf(other))
	assert.NotErrorIs(t, other, reservation.ErrElementNotFound)
}

func TestTimeout(t *testing.T) {
	to, err := timeout(context.Background())
	require.NoError(t, err)
	assert.Nil(t, to)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	to, err = timeout(ctx)
	require.NoError(t, err)
	require.NotNil(t, to)
	assert.InDelta(t, 60000, *to, 1000)

	done, cancelDone := context.WithCancel(context.Background())
	cancelDone()
	_, err = timeout(done)
	assert.ErrorIs(t, err, context.Canceled)
}
