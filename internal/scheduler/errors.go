package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStarted is returned by Register and Run once Run has been called.
// A scheduler is consumed by its run.
var ErrStarted = errors.New("scheduler already started")

// TaskError identifies a task whose body failed.
type TaskError struct {
	TaskID string
	Round  int
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed in round %d: %v", e.TaskID, e.Round, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// DeadlockError is returned when a round finds no eligible task while tasks remain pending.
type DeadlockError struct {
	Round   int
	Pending []string       // IDs of the tasks that can never run
	Missing []Prerequisite // Facts they wait for that are not asserted
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("deadlock in round %d: %d task(s) pending [%s] waiting on unasserted facts [%s]",
		e.Round, len(e.Pending), strings.Join(e.Pending, ", "), strings.Join(factStrings(e.Missing), ", "))
}

// RoundLimitError is returned when Config.MaxRounds is exhausted with work left.
type RoundLimitError struct {
	Limit   int
	Pending []string
}

func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("round limit %d reached with %d task(s) pending [%s]",
		e.Limit, len(e.Pending), strings.Join(e.Pending, ", "))
}

// joinErrors returns nil, the single error, or an errors.Join of all of them.
func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}
