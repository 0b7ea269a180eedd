package booking

import (
	"context"
	"time"

	"github.com/example/tock-booker/internal/domain/reservation"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelFailure Level = "failure"
)

// Event is a progress or result message for the notifier. It never carries
// patron secrets.
type Event struct {
	RunID   string
	Level   Level
	State   State
	Message string
	At      time.Time

	Result  *reservation.Result
	Failure *StepError
}

type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event)

func (f NotifierFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Recorder persists runs and their trace. Errors are logged, never fatal.
type Recorder interface {
	StartRun(ctx context.Context, r reservation.Run) error
	RecordStep(ctx context.Context, s reservation.Step) error
	FinishRun(ctx context.Context, r reservation.Run) error
}

// Observer receives measurements (metrics).
type Observer interface {
	StepAttempted(state State, d time.Duration, err error)
	DayInspected(slots int)
	RunFinished(state State, kind reservation.Kind)
}

// SessionOpener acquires the external session the agent works in.
type SessionOpener interface {
	OpenSession(ctx context.Context) (reservation.Session, error)
}
