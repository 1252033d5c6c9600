package scheduler

import (
	"context"
	"errors"
	"fmt"
)

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Waiting for prerequisites
	TaskRunning                     // Dispatched in the current round
	TaskCompleted                   // Finished and its facts merged
	TaskFailed                      // Finished with error, no facts merged
	TaskSkipped                     // Never ran: run aborted or prerequisites unreachable
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// FailurePolicy determines how one task's failure affects the rest of the run.
type FailurePolicy int

const (
	AbortOnFailure  FailurePolicy = iota // Finish the current round, then stop
	IsolateFailures                      // Keep running tasks that don't need the failed task's facts
)

func (p FailurePolicy) String() string {
	switch p {
	case AbortOnFailure:
		return "abort"
	case IsolateFailures:
		return "isolate"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy maps "abort" and "isolate" to their policies.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "abort":
		return AbortOnFailure, nil
	case "isolate":
		return IsolateFailures, nil
	default:
		return AbortOnFailure, fmt.Errorf("unknown failure policy %q (want \"abort\" or \"isolate\")", s)
	}
}

// ResultKind tags a Result.
type ResultKind int

const (
	ResultFinished ResultKind = iota // Done; Facts are merged into the fact set
	ResultRunAgain                   // Not done; stays pending for a later round
	ResultFailed                     // Broken; Err explains why
)

func (k ResultKind) String() string {
	switch k {
	case ResultFinished:
		return "finished"
	case ResultRunAgain:
		return "run-again"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome a task body returns.
type Result struct {
	Kind  ResultKind
	Facts FactSet // Only meaningful for ResultFinished
	Err   error   // Only meaningful for ResultFailed
}

// Finished reports completion, asserting the given facts.
func Finished(facts ...Prerequisite) Result {
	return Result{Kind: ResultFinished, Facts: NewFactSet(facts...)}
}

// RunAgain asks the scheduler to keep the task pending for another round.
func RunAgain() Result {
	return Result{Kind: ResultRunAgain}
}

// Failed reports that the task could not complete.
func Failed(err error) Result {
	if err == nil {
		err = errNoReason
	}
	return Result{Kind: ResultFailed, Err: err}
}

var errNoReason = errors.New("task reported failure without a reason")

// TaskFunc is the body of a task. The view is a read-only snapshot of the facts
// asserted before the task's round began.
type TaskFunc func(ctx context.Context, facts FactView) Result

// Task represents a unit of work gated on prerequisites.
type Task struct {
	ID        string       // Unique identifier
	Name      string       // Human-readable name
	Requires  FactSet      // Facts that must hold before dispatch (empty: round 1)
	Produces  FactSet      // Facts the task is expected to assert; only used by Validate
	Resources []string     // Keys locked exclusively while the body runs
	Retry     *RetryPolicy // Optional retry of failed attempts within the round
	Run       TaskFunc
}

func (t *Task) label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}
