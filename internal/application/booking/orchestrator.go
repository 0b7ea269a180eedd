package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/tock-booker/internal/domain/reservation"
	"github.com/example/tock-booker/internal/infrastructure/logging"
)

// Orchestrator drives one booking attempt through the pipeline
// Init → Authenticating → OfferingOpened → PartySizeAdjusted → SlotSelected →
// PaymentFilled → Submitted → Confirmed, or to Failed.
//
// Only Sessions is required. Run is not safe for concurrent use against the
// same patron account.
type Orchestrator struct {
	Sessions SessionOpener
	Notifier Notifier
	Recorder Recorder
	Observer Observer
	Log      *logging.Logger
	Policy   Policy

	now func() time.Time
}

type transition struct {
	to      State
	message func(r *run) string
	// do is a method expression, so the receiver comes first.
	do      func(r *run, ctx context.Context) error
}

var pipeline = []transition{
	{StateAuthenticating, func(*run) string { return "logging in" }, (*run).authenticate},
	{StateOfferingOpened, func(r *run) string { return fmt.Sprintf("opening offering %q", r.target.Offering) }, (*run).openOffering},
	{StatePartySizeAdjusted, func(r *run) string { return fmt.Sprintf("adjusting party size to %d", r.target.PartySize) }, (*run).adjustPartySize},
	{StateSlotSelected, func(*run) string { return "checking for days with openings" }, (*run).search},
	{StatePaymentFilled, func(r *run) string { return fmt.Sprintf("selecting %s @ %s", r.day.Label, r.slot.Label) }, (*run).fillPayment},
	{StateSubmitted, func(*run) string { return "booking reservation" }, (*run).submit},
	{StateConfirmed, func(*run) string { return "reading confirmation" }, (*run).confirm},
}

type run struct {
	o      *Orchestrator
	log    *logging.Logger
	policy Policy

	id      string
	target  reservation.Target
	patron  reservation.Patron
	agent   reservation.Agent
	started time.Time
	state   State
	trace   []reservation.Step
	ledger  bool

	day          reservation.Day
	slot         reservation.TimeSlot
	slotSelected bool
	result       *reservation.Result
}

// Run executes the pipeline once. On failure the returned error is the
// *StepError also found in Outcome.Failure. The session is always closed.
func (o *Orchestrator) Run(ctx context.Context, target reservation.Target, patron reservation.Patron) (Outcome, error) {
	r := &run{
		o:       o,
		log:     o.logger(),
		policy:  o.Policy.withDefaults(),
		id:      uuid.NewString(),
		target:  target,
		patron:  patron,
		started: o.clock(),
		state:   StateInit,
	}

	if err := errors.Join(target.Validate(), patron.Validate()); err != nil {
		return r.fail(ctx, &StepError{State: StateInit, Kind: reservation.KindConfiguration, Err: err})
	}
	if o.Sessions == nil {
		return r.fail(ctx, &StepError{State: StateInit, Kind: reservation.KindConfiguration,
			Err: fmt.Errorf("%w: no session opener configured", reservation.ErrConfiguration)})
	}

	r.startLedger(ctx)

	sess, err := o.Sessions.OpenSession(ctx)
	if err != nil {
		return r.fail(ctx, &StepError{State: StateInit, Kind: reservation.KindOf(err), Attempt: 1, Err: fmt.Errorf("open session: %w", err)})
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			r.log.Warnf("run %s: closing session: %v", r.id, cerr)
		}
	}()
	r.agent = sess

	for _, t := range pipeline {
		r.notify(ctx, LevelInfo, t.to, t.message(r))
		tries, err := r.policy.attempt(ctx, t.to, func(ctx context.Context) error {
			start := time.Now()
			err := t.do(r, ctx)
			if o.Observer != nil {
				o.Observer.StepAttempted(t.to, time.Since(start), err)
			}
			return err
		}, r.recordFailure)
		if err != nil {
			var se *StepError
			if !errors.As(err, &se) {
				se = &StepError{State: t.to, Kind: reservation.KindOf(err), Attempt: tries, Err: err}
			}
			return r.fail(ctx, se)
		}
		r.enter(ctx, t.to, tries)
	}
	return r.succeed(ctx)
}

func (r *run) authenticate(ctx context.Context) error {
	if err := r.agent.Navigate(ctx, LoginURL(r.policy.BaseURL, r.target)); err != nil {
		return fmt.Errorf("navigate to login: %w", err)
	}
	if err := r.agent.Authenticate(ctx, r.patron.Email, r.patron.Password); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	return nil
}

func (r *run) openOffering(ctx context.Context) error {
	dismissed, err := r.agent.DismissInterstitialIfPresent(ctx)
	if err != nil {
		return fmt.Errorf("dismiss interstitial: %w", err)
	}
	if dismissed {
		r.log.Debugf("run %s: closed consent interstitial", r.id)
	}
	if err := r.agent.OpenOffering(ctx, r.target.Offering); err != nil {
		return fmt.Errorf("open offering %q: %w", r.target.Offering, err)
	}
	return nil
}

func (r *run) adjustPartySize(ctx context.Context) error {
	steps, err := reservation.AdjustGuestCount(ctx, r.target.PartySize, r.agent, r.policy.GuestStepBudget)
	if err != nil {
		return err
	}
	r.log.Debugf("run %s: party size %d reached after %d steps", r.id, r.target.PartySize, steps)
	return nil
}

func (r *run) search(ctx context.Context) error {
	listed, err := r.agent.ListAvailableDays(ctx)
	if err != nil {
		return fmt.Errorf("list days: %w", err)
	}
	days := reservation.FilterDays(listed, r.target.ExcludedDays)
	r.notify(ctx, LevelInfo, StateSlotSelected, fmt.Sprintf("found %d days available for booking", len(days)))

	m := reservation.SlotMatcher{
		Days: r.agent,
		Inspected: func(d reservation.Day, n int) {
			r.log.Infof("run %s: checked %d slots on %s", r.id, n, d.Label)
			if r.o.Observer != nil {
				r.o.Observer.DayInspected(n)
			}
		},
	}
	day, slot, err := m.Find(ctx, days, r.target.TimePreferences)
	if err != nil {
		return err
	}
	r.day, r.slot = day, slot
	r.notify(ctx, LevelInfo, StateSlotSelected, fmt.Sprintf("found time slot for %s @ %s", day.Label, slot.Label))
	return nil
}

func (r *run) fillPayment(ctx context.Context) error {
	if !r.slotSelected {
		if err := r.agent.SelectSlot(ctx, r.slot); err != nil {
			return fmt.Errorf("select slot: %w", err)
		}
		r.slotSelected = true
	}
	present, err := r.agent.FillPaymentVerification(ctx, r.patron.PaymentVerificationCode)
	switch {
	case err == nil:
	case present && !errors.Is(err, reservation.ErrPayment):
		return fmt.Errorf("%w: fill verification code: %w", reservation.ErrPayment, err)
	default:
		// Before the form was found the error keeps its own kind.
		return fmt.Errorf("fill verification code: %w", err)
	}
	if present {
		r.notify(ctx, LevelInfo, StatePaymentFilled, "completed payment form")
	} else {
		r.log.Infof("run %s: no payment form for this offering", r.id)
	}
	return nil
}

func (r *run) submit(ctx context.Context) error {
	if err := r.agent.Submit(ctx); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

func (r *run) confirm(ctx context.Context) error {
	text, err := r.agent.ReadConfirmationText(ctx)
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: confirmation text is empty", reservation.ErrTransientUI)
	}
	r.result = &reservation.Result{Day: r.day.Label, Time: r.slot.Label, ConfirmationText: text}
	return nil
}

func (r *run) enter(ctx context.Context, s State, tries int) {
	r.state = s
	r.addStep(ctx, reservation.Step{RunID: r.id, State: string(s), Attempt: tries, Detail: "entered", At: r.o.clock()})
}

func (r *run) recordFailure(se *StepError) {
	r.log.Warnf("run %s: %s attempt %d: %s: %v", r.id, se.State, se.Attempt, se.Kind, se.Err)
	r.addStep(context.Background(), reservation.Step{
		RunID: r.id, State: string(se.State), Attempt: se.Attempt, Kind: se.Kind, Detail: se.Err.Error(), At: r.o.clock(),
	})
}

func (r *run) addStep(ctx context.Context, s reservation.Step) {
	r.trace = append(r.trace, s)
	if !r.ledger {
		return
	}
	if err := r.o.Recorder.RecordStep(context.WithoutCancel(ctx), s); err != nil {
		r.log.Warnf("run %s: record step: %v", r.id, err)
	}
}

func (r *run) startLedger(ctx context.Context) {
	if r.o.Recorder == nil {
		return
	}
	err := r.o.Recorder.StartRun(ctx, reservation.Run{
		ID:        r.id,
		Offering:  r.target.Offering,
		PartySize: r.target.PartySize,
		Status:    reservation.RunRunning,
		StartedAt: r.started,
	})
	if err != nil {
		r.log.Warnf("run %s: ledger disabled for this run: %v", r.id, err)
		return
	}
	r.ledger = true
}

func (r *run) finishLedger(ctx context.Context, rec reservation.Run) {
	if !r.ledger {
		return
	}
	if err := r.o.Recorder.FinishRun(context.WithoutCancel(ctx), rec); err != nil {
		r.log.Warnf("run %s: record result: %v", r.id, err)
	}
}

func (r *run) ledgerRecord() reservation.Run {
	finished := r.o.clock()
	return reservation.Run{
		ID:         r.id,
		Offering:   r.target.Offering,
		PartySize:  r.target.PartySize,
		StartedAt:  r.started,
		FinishedAt: &finished,
	}
}

func (r *run) succeed(ctx context.Context) (Outcome, error) {
	rec := r.ledgerRecord()
	rec.Status = reservation.RunConfirmed
	rec.Day, rec.Time, rec.Confirmation = r.result.Day, r.result.Time, r.result.ConfirmationText
	r.finishLedger(ctx, rec)
	if r.o.Observer != nil {
		r.o.Observer.RunFinished(StateConfirmed, reservation.KindNone)
	}

	r.emit(ctx, Event{
		Level:   LevelSuccess,
		State:   StateConfirmed,
		Message: fmt.Sprintf("reservation booked for %s @ %s: %s", r.result.Day, r.result.Time, r.result.ConfirmationText),
		Result:  r.result,
	})
	return Outcome{RunID: r.id, State: StateConfirmed, Reached: StateConfirmed, Result: r.result, Trace: r.trace}, nil
}

func (r *run) fail(ctx context.Context, se *StepError) (Outcome, error) {
	rec := r.ledgerRecord()
	rec.Status = reservation.RunFailed
	rec.FailureKind = se.Kind
	rec.FailureState = string(se.State)
	msg := se.Error()
	rec.LastError = &msg
	r.finishLedger(ctx, rec)
	if r.o.Observer != nil {
		r.o.Observer.RunFinished(StateFailed, se.Kind)
	}

	r.log.Errorf("run %s: %v", r.id, se)
	r.emit(ctx, Event{
		Level:   LevelFailure,
		State:   StateFailed,
		Message: "no reservation booked: " + se.Error(),
		Failure: se,
	})
	return Outcome{RunID: r.id, State: StateFailed, Reached: r.state, Failure: se, Trace: r.trace}, se
}

func (r *run) notify(ctx context.Context, level Level, s State, msg string) {
	r.log.Infof("run %s: %s", r.id, msg)
	r.emit(ctx, Event{Level: level, State: s, Message: msg})
}

func (r *run) emit(ctx context.Context, e Event) {
	if r.o.Notifier == nil {
		return
	}
	e.RunID = r.id
	e.At = r.o.clock()
	r.o.Notifier.Notify(context.WithoutCancel(ctx), e)
}

func (o *Orchestrator) logger() *logging.Logger {
	if o.Log != nil {
		return o.Log
	}
	return logging.Nop()
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}
