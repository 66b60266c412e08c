package stream

import (
	"errors"
	"time"

	"github.com/i2y/parley/provider"
)

// ErrTimeout is the cause recorded when the inactivity watchdog fires.
var ErrTimeout = errors.New("stream: inactivity timeout")

// ErrNilRequest is returned by Run when called without a request.
var ErrNilRequest = errors.New("stream: nil request")

// Status is the terminal state of a Run.
type Status int

const (
	// StatusCompleted means the upstream response was fully delivered.
	StatusCompleted Status = iota
	// StatusFunctionCall means the model requested a tool; the caller must
	// execute it and start a new run.
	StatusFunctionCall
	// StatusError means the provider failed or delivery broke.
	StatusError
	// StatusTimeout means the watchdog fired.
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFunctionCall:
		return "function_call"
	case StatusError:
		return "error"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result is the outcome of a Run.
type Result struct {
	Status       Status
	FunctionCall *provider.FunctionCall
	Err          *provider.Error
	// Text is the concatenation of every delivered segment, notices excluded.
	Text    string
	Metrics Metrics
}

// Metrics are counters collected over a Run.
type Metrics struct {
	Fragments  int
	Characters int
	Segments   int
	Messages   int
	Attempts   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of the run.
func (m Metrics) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}
