// Package task defines the lifecycle contract that user workloads implement
// and that the Execution Engine drives: Init once, Execute per iteration,
// Teardown once.
package task

import (
	"context"
	"errors"
)

// ErrTaskNotFound is the sentinel a Registry wraps when asked to resolve
// an identifier it has no factory for.
var ErrTaskNotFound = errors.New(string(ErrorKindTaskNotFound))

// ConcurrencyHint tells the Execution Engine which substrate to schedule a
// task on.
type ConcurrencyHint int

const (
	// IoBound tasks spend most of an iteration waiting on external I/O and
	// can be scheduled with many concurrently in-flight goroutines.
	IoBound ConcurrencyHint = iota
	// CpuBound tasks spend most of an iteration on the CPU and should run
	// on a bounded worker pool sized to the available processors.
	CpuBound
)

func (c ConcurrencyHint) String() string {
	switch c {
	case IoBound:
		return "io_bound"
	case CpuBound:
		return "cpu_bound"
	default:
		return "unknown"
	}
}

// OutcomeKind is the tag of the Task Outcome sum type.
type OutcomeKind int

const (
	// OutcomeSuccess indicates the iteration completed without error.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure indicates the iteration failed; ErrorKind names why.
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// ErrorKind names the reason a Failure outcome occurred. It is an opaque,
// retained-for-logging label, never a typed exception hierarchy.
type ErrorKind string

// Well-known error kinds the core itself produces. Task implementations are free to
// return any other string; these are the ones the core itself produces.
const (
	ErrorKindConfigInvalid ErrorKind = "ConfigInvalid"
	ErrorKindTaskNotFound ErrorKind = "TaskNotFound"
	ErrorKindTaskLifecycleFailed ErrorKind = "TaskLifecycleFailed"
	ErrorKindIterationFailed ErrorKind = "IterationFailed"
	ErrorKindSubmissionRejected ErrorKind = "SubmissionRejected"
	ErrorKindCancelled ErrorKind = "Cancelled"
	ErrorKindExporterError ErrorKind = "ExporterError"
	ErrorKindRecordingRejected ErrorKind = "RecordingRejected"
)

// Outcome is the result of one iteration. Payload is arbitrary and is
// discarded by the core; ErrKind is retained only for logging.
type Outcome struct {
	Kind OutcomeKind
	Payload any
	ErrKind ErrorKind
	Err error
}

// Success builds a Success outcome carrying an arbitrary payload.
func Success(payload any) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload}
}

// Failure builds a Failure outcome tagged with an error kind.
func Failure(kind ErrorKind, err error) Outcome {
	return Outcome{Kind: OutcomeFailure, ErrKind: kind, Err: err}
}

// IsSuccess reports whether the outcome is the Success variant.
func (o Outcome) IsSuccess() bool { return o.Kind == OutcomeSuccess }

// Task is the workload the Execution Engine drives. Init is called exactly
// once before the first dispatch, Execute once per iteration, Teardown
// exactly once after the final completion or on a fatal error.
type Task interface {
	// Init prepares the task. A returned error is fatal for the run and
	// surfaces as TaskLifecycleFailed.
	Init(ctx context.Context) error

	// Execute runs iteration index i and returns its outcome. A panic or
	// returned error from Execute is converted by the Engine into a
	// Failure outcome; it is never fatal for the run.
	Execute(ctx context.Context, iteration int64) (Outcome, error)

	// Teardown releases task resources. Called exactly once, regardless of
	// how the run ended. A returned error is fatal and surfaces as
	// TaskLifecycleFailed.
	Teardown(ctx context.Context) error

	// ConcurrencyHint declares which scheduling substrate the Engine should
	// use to run this task's iterations.
	ConcurrencyHint() ConcurrencyHint
}
