package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/tock-booker/internal/application/booking"
	"github.com/example/tock-booker/internal/domain/reservation"
	"github.com/example/tock-booker/internal/infrastructure/logging"
)

// ErrWindowClosed is returned when the attempt window ends without a booking.
var ErrWindowClosed = errors.New("attempt window ended without success")

// Booker runs one complete booking attempt.
type Booker interface {
	Run(ctx context.Context, target reservation.Target, patron reservation.Patron) (booking.Outcome, error)
}

// Window is the half-open interval [Start, End) in which attempts may start.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) Validate() error {
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: window end must be after window start", reservation.ErrConfiguration)
	}
	return nil
}

// ReleaseWindow builds the window around a table release: it opens lead before
// date+clock in the named zone and stays open for length.
// date is YYYY-MM-DD, clock is HH:MM (24h).
func ReleaseWindow(date, clock, zone string, lead, length time.Duration) (Window, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Window{}, fmt.Errorf("%w: timezone %q: %v", reservation.ErrConfiguration, zone, err)
	}
	release, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: release time %q %q: %v", reservation.ErrConfiguration, date, clock, err)
	}
	if length <= 0 {
		return Window{}, fmt.Errorf("%w: window length must be positive", reservation.ErrConfiguration)
	}
	start := release.Add(-lead)
	return Window{Start: start, End: start.Add(lead + length)}, nil
}

// Watcher re-runs the booking attempt on Interval inside Window. Attempts are
// strictly sequential.
type Watcher struct {
	Booker   Booker
	Interval time.Duration
	Window   Window
	Log      *logging.Logger

	now func() time.Time
}

// Result summarises a watch.
type Result struct {
	Attempts int
	Last     booking.Outcome
}

// NextAttemptAt is the window start before the first attempt and last+Interval after.
func (w *Watcher) NextAttemptAt(last *time.Time) time.Time {
	if last == nil {
		return w.Window.Start
	}
	return last.Add(w.Interval)
}

// Watch stops on the first Confirmed run, on a failure that another attempt
// cannot fix, or when the window closes (ErrWindowClosed).
func (w *Watcher) Watch(ctx context.Context, target reservation.Target, patron reservation.Patron) (Result, error) {
	log := w.Log
	if log == nil {
		log = logging.Nop()
	}
	if w.Booker == nil {
		return Result{}, fmt.Errorf("%w: no booker configured", reservation.ErrConfiguration)
	}
	if w.Interval <= 0 {
		return Result{}, fmt.Errorf("%w: watch interval must be positive", reservation.ErrConfiguration)
	}
	if err := w.Window.Validate(); err != nil {
		return Result{}, err
	}

	var (
		res  Result
		last *time.Time
	)
	for {
		next := w.NextAttemptAt(last)
		if !next.Before(w.Window.End) {
			log.Warnf("window closed after %d attempts", res.Attempts)
			return res, ErrWindowClosed
		}
		if err := w.sleepUntil(ctx, next); err != nil {
			return res, err
		}

		started := w.clock()
		last = &started
		res.Attempts++
		log.Infof("attempt %d", res.Attempts)

		out, err := w.Booker.Run(ctx, target, patron)
		res.Last = out
		if err == nil {
			log.Infof("booked on attempt %d", res.Attempts)
			return res, nil
		}
		if !worthRetrying(out, err) {
			return res, err
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		log.Infof("attempt %d: %v; next try in %s", res.Attempts, err, w.Interval)
	}
}

// worthRetrying reports whether a fresh attempt can succeed after this failure.
// Availability changes over time and UI flakiness passes; the other kinds do not.
func worthRetrying(out booking.Outcome, err error) bool {
	kind := reservation.KindOf(err)
	if out.Failure != nil {
		kind = out.Failure.Kind
	}
	switch kind {
	case reservation.KindNoAvailability, reservation.KindTransientUI, reservation.KindElementNotFound:
		return true
	default:
		return false
	}
}

func (w *Watcher) sleepUntil(ctx context.Context, t time.Time) error {
	d := t.Sub(w.clock())
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Watcher) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now()
}
