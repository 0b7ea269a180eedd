package booking

import (
	"fmt"

	"github.com/example/tock-booker/internal/domain/reservation"
)

// State is a node of the booking pipeline. The pipeline is strictly linear;
// Failed is reachable from every non-terminal state.
type State string

const (
	StateInit              State = "Init"
	StateAuthenticating    State = "Authenticating"
	StateOfferingOpened    State = "OfferingOpened"
	StatePartySizeAdjusted State = "PartySizeAdjusted"
	StateSlotSelected      State = "SlotSelected"
	StatePaymentFilled     State = "PaymentFilled"
	StateSubmitted         State = "Submitted"
	StateConfirmed         State = "Confirmed"
	StateFailed            State = "Failed"
)

func (s State) Terminal() bool { return s == StateConfirmed || s == StateFailed }

// StepError is a transition failure tagged with the state being entered.
type StepError struct {
	State   State
	Kind    reservation.Kind
	Attempt int
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("failed in %s: %s: %v", e.State, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Outcome is the single structured result of a run.
type Outcome struct {
	RunID string
	// State is Confirmed or Failed.
	State State
	// Reached is the last state successfully entered.
	Reached State
	Result  *reservation.Result
	Failure *StepError
	Trace   []reservation.Step
}

func (o Outcome) Confirmed() bool { return o.State == StateConfirmed }
