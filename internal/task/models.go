package task

import (
	"context"
	"encoding/json"
	"time"

	"galaxy-server/internal/shared/errors"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Failure is the error a task ended with, in the shape of the HTTP envelope.
type Failure struct {
	Kind    errors.Kind    `json:"kind"`
	Message string         `json:"message"`
	Details errors.Details `json:"details,omitempty"`
}

func failureOf(err error) *Failure {
	return &Failure{Kind: errors.KindOf(err), Message: err.Error(), Details: errors.DetailsOf(err)}
}

// Record is the tracked state of one submitted job. Phase is whatever the
// job last reported; Status is owned by the manager.
type Record struct {
	ID                string          `json:"id"`
	Subject           string          `json:"subject"`
	Status            Status          `json:"status"`
	Phase             string          `json:"phase"`
	Phases            []PhaseChange   `json:"phases"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	EstimatedDuration time.Duration   `json:"estimated_duration"`
	ActualDuration    time.Duration   `json:"actual_duration,omitempty"`
	Result            json.RawMessage `json:"result,omitempty"`
	Error             *Failure        `json:"error,omitempty"`
}

type PhaseChange struct {
	Phase string    `json:"phase"`
	At    time.Time `json:"at"`
}

func (r *Record) clone() *Record {
	c := *r
	c.Phases = append([]PhaseChange(nil), r.Phases...)
	c.Result = append(json.RawMessage(nil), r.Result...)
	if r.Error != nil {
		f := *r.Error
		c.Error = &f
	}
	return &c
}

// Reporter is handed to a job so it can publish phase transitions.
type Reporter func(phase string)

// Job is the unit of work a manager runs. The returned value is stored as
// the task result.
type Job func(ctx context.Context, report Reporter) (any, error)
