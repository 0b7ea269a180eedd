package web

import (
	"context"
	"time"

	"github.com/example/tock-booker/internal/domain/reservation"
)

// RunView is the JSON shape of a ledger run. It is shared with the CLI.
type RunView struct {
	ID           string     `json:"id"`
	Offering     string     `json:"offering"`
	PartySize    int        `json:"party_size"`
	Status       string     `json:"status"`
	FailureKind  string     `json:"failure_kind,omitempty"`
	FailureState string     `json:"failure_state,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Day          string     `json:"day,omitempty"`
	Time         string     `json:"time,omitempty"`
	Confirmation string     `json:"confirmation,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func NewRunView(r reservation.Run) RunView {
	v := RunView{
		ID:           r.ID,
		Offering:     r.Offering,
		PartySize:    r.PartySize,
		Status:       string(r.Status),
		FailureKind:  string(r.FailureKind),
		FailureState: r.FailureState,
		Day:          r.Day,
		Time:         r.Time,
		Confirmation: r.Confirmation,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
	if r.LastError != nil {
		v.LastError = *r.LastError
	}
	return v
}

type StepView struct {
	State   string    `json:"state"`
	Attempt int       `json:"attempt"`
	Kind    string    `json:"kind,omitempty"`
	Detail  string    `json:"detail"`
	At      time.Time `json:"at"`
}

type EventView struct {
	Level   string    `json:"level"`
	State   string    `json:"state,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type RunDetail struct {
	RunView
	Steps  []StepView  `json:"steps"`
	Events []EventView `json:"events"`
}

// LoadRunDetail gathers a run with its trace and events.
func LoadRunDetail(ctx context.Context, rr RunReader, id string) (RunDetail, error) {
	run, err := rr.Get(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	steps, err := rr.Steps(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	events, err := rr.Events(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}

	d := RunDetail{RunView: NewRunView(run), Steps: []StepView{}, Events: []EventView{}}
	for _, s := range steps {
		d.Steps = append(d.Steps, StepView{State: s.State, Attempt: s.Attempt, Kind: string(s.Kind), Detail: s.Detail, At: s.At})
	}
	for _, e := range events {
		d.Events = append(d.Events, EventView{Level: e.Level, State: e.State, Message: e.Message, At: e.At})
	}
	return d, nil
}
