package reservation

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunConfirmed RunStatus = "confirmed"
	RunFailed    RunStatus = "failed"
)

// Run is one booking attempt as kept in the attempt ledger.
type Run struct {
	ID        string
	Offering  string
	PartySize int
	Status    RunStatus

	FailureKind  Kind
	FailureState string
	LastError    *string

	Day          string
	Time         string
	Confirmation string

	StartedAt  time.Time
	FinishedAt *time.Time
}

// Step is one trace entry: a state transition attempt that failed, or the
// entry into a state.
type Step struct {
	RunID   string
	State   string
	Attempt int
	Kind    Kind
	Detail  string
	At      time.Time
}

// RunEvent is a notifier message kept with its run.
type RunEvent struct {
	RunID   string
	Level   string
	State   string
	Message string
	At      time.Time
}
