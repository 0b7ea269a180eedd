package notify

import (
	"context"

	"github.com/example/tock-booker/internal/application/booking"
	"github.com/example/tock-booker/internal/infrastructure/logging"
)

// Log writes events to a component logger: info events at info level,
// successes and failures with a marker so they stand out in a tail.
type Log struct {
	log *logging.Logger
}

func NewLog(l *logging.Logger) *Log {
	if l == nil {
		l = logging.Nop()
	}
	return &Log{log: l}
}

func (n *Log) Notify(ctx context.Context, e booking.Event) {
	switch e.Level {
	case booking.LevelSuccess:
		n.log.Infof("run %s: BOOKED %s", e.RunID, e.Message)
	case booking.LevelFailure:
		n.log.Errorf("run %s: %s", e.RunID, e.Message)
	default:
		n.log.Debugf("run %s: [%s] %s", e.RunID, e.State, e.Message)
	}
}

// Multi fans an event out to every notifier, skipping nils.
type Multi []booking.Notifier

func (m Multi) Notify(ctx context.Context, e booking.Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, e)
		}
	}
}

// Discard drops every event.
var Discard booking.Notifier = booking.NotifierFunc(func(context.Context, booking.Event) {})
