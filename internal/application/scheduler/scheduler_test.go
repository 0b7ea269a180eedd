package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tock-booker/internal/application/booking"
	"github.com/example/tock-booker/internal/domain/reservation"
)

type scriptedBooker struct {
	errs  []error
	calls int
}

func (b *scriptedBooker) Run(ctx context.Context, _ reservation.Target, _ reservation.Patron) (booking.Outcome, error) {
	b.calls++
	var err error
	if len(b.errs) > 0 {
		err, b.errs = b.errs[0], b.errs[1:]
	}
	if err == nil {
		return booking.Outcome{State: booking.StateConfirmed, Result: &reservation.Result{Day: "d", Time: "t"}}, nil
	}
	se := &booking.StepError{State: booking.StateSlotSelected, Kind: reservation.KindOf(err), Attempt: 1, Err: err}
	return booking.Outcome{State: booking.StateFailed, Failure: se}, se
}

func openWindow(d time.Duration) Window {
	now := time.Now()
	return Window{Start: now.Add(-time.Millisecond), End: now.Add(d)}
}

func TestWatch_StopsOnConfirmed(t *testing.T) {
	b := &scriptedBooker{errs: []error{reservation.ErrNoAvailability, reservation.ErrTransientUI, nil}}
	w := &Watcher{Booker: b, Interval: time.Millisecond, Window: openWindow(10 * time.Second)}

	res, err := w.Watch(context.Background(), reservation.Target{}, reservation.Patron{})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.True(t, res.Last.Confirmed())
	assert.Equal(t, 3, b.calls)
}

func TestWatch_StopsOnTerminalFailure(t *testing.T) {
	b := &scriptedBooker{errs: []error{
		reservation.ErrNoAvailability,
		fmt.Errorf("%w: bad password", reservation.ErrAuthentication),
	}}
	w := &Watcher{Booker: b, Interval: time.Millisecond, Window: openWindow(10 * time.Second)}

	res, err := w.Watch(context.Background(), reservation.Target{}, reservation.Patron{})

	require.Error(t, err)
	assert.ErrorIs(t, err, reservation.ErrAuthentication)
	assert.Equal(t, 2, res.Attempts)
}

func TestWatch_StopsWhenWindowCloses(t *testing.T) {
	errs := make([]error, 1000)
	for i := range errs {
		errs[i] = reservation.ErrNoAvailability
	}
	b := &scriptedBooker{errs: errs}
	w := &Watcher{Booker: b, Interval: 10 * time.Millisecond, Window: openWindow(50 * time.Millisecond)}

	res, err := w.Watch(context.Background(), reservation.Target{}, reservation.Patron{})

	require.ErrorIs(t, err, ErrWindowClosed)
	assert.GreaterOrEqual(t, res.Attempts, 1)
	assert.Less(t, res.Attempts, 1000)
	assert.Equal(t, booking.StateFailed, res.Last.State)
}

func TestWatch_WaitsForWindowStart(t *testing.T) {
	b := &scriptedBooker{}
	start := time.Now().Add(30 * time.Millisecond)
	w := &Watcher{Booker: b, Interval: time.Millisecond, Window: Window{Start: start, End: start.Add(time.Second)}}

	_, err := w.Watch(context.Background(), reservation.Target{}, reservation.Patron{})

	require.NoError(t, err)
	assert.False(t, time.Now().Before(start))
}

func TestWatch_ContextCancelledBeforeStart(t *testing.T) {
	b := &scriptedBooker{}
	start := time.Now().Add(time.Hour)
	w := &Watcher{Booker: b, Interval: time.Second, Window: Window{Start: start, End: start.Add(time.Hour)}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := w.Watch(ctx, reservation.Target{}, reservation.Patron{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, b.calls)
}

func TestWatch_RejectsBadSettings(t *testing.T) {
	w := &Watcher{Booker: &scriptedBooker{}, Interval: 0, Window: openWindow(time.Second)}
	_, err := w.Watch(context.Background(), reservation.Target{}, reservation.Patron{})
	assert.ErrorIs(t, err, reservation.ErrConfiguration)

	now := time.Now()
	w = &Watcher{Booker: &scriptedBooker{}, Interval: time.Second, Window: Window{Start: now, End: now}}
	_, err = w.Watch(context.Background(), reservation.Target{}, reservation.Patron{})
	assert.ErrorIs(t, err, reservation.ErrConfiguration)
}

func TestReleaseWindow(t *testing.T) {
	w, err := ReleaseWindow("2025-03-01", "10:00", "America/Chicago", 2*time.Minute, 15*time.Minute)
	require.NoError(t, err)

	loc, _ := time.LoadLocation("America/Chicago")
	release := time.Date(2025, 3, 1, 10, 0, 0, 0, loc)
	assert.True(t, w.Start.Equal(release.Add(-2*time.Minute)))
	assert.True(t, w.End.Equal(release.Add(15*time.Minute)))
	assert.True(t, w.Contains(release))
	assert.False(t, w.Contains(w.End))

	_, err = ReleaseWindow("2025-03-01", "10:00", "Mars/Olympus", 0, time.Minute)
	assert.ErrorIs(t, err, reservation.ErrConfiguration)
	_, err = ReleaseWindow("03/01/2025", "10:00", "UTC", 0, time.Minute)
	assert.ErrorIs(t, err, reservation.ErrConfiguration)
}

func TestNextAttemptAt(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	w := &Watcher{Interval: 30 * time.Second, Window: Window{Start: start, End: start.Add(time.Hour)}}

	assert.Equal(t, start, w.NextAttemptAt(nil))
	last := start.Add(time.Minute)
	assert.Equal(t, last.Add(30*time.Second), w.NextAttemptAt(&last))
}
