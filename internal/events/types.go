package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask  = "task"
	TopicRound = "round"
)

// Event type constants
const (
	EventTypeTaskStarted     = "task.started"
	EventTypeTaskOutput      = "task.output"
	EventTypeTaskCompleted   = "task.completed"
	EventTypeTaskRescheduled = "task.rescheduled"
	EventTypeTaskFailed      = "task.failed"
	EventTypeRoundStarted    = "round.started"
	EventTypeRoundCompleted  = "round.completed"
	EventTypeRunProgress     = "round.progress"
)

// TaskStartedEvent is published when a task is dispatched in a round.
type TaskStartedEvent struct {
	ID        string
	Name      string
	Round     int
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskOutputEvent carries a line of output written by a task body.
type TaskOutputEvent struct {
	ID        string
	Line      string
	Timestamp time.Time
}

func (e TaskOutputEvent) EventType() string { return EventTypeTaskOutput }
func (e TaskOutputEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task finishes and asserts its facts.
type TaskCompletedEvent struct {
	ID        string
	Facts     []string
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskRescheduledEvent is published when a task asks to run again next round.
type TaskRescheduledEvent struct {
	ID        string
	Round     int
	Timestamp time.Time
}

func (e TaskRescheduledEvent) EventType() string { return EventTypeTaskRescheduled }
func (e TaskRescheduledEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task fails.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// RoundStartedEvent is published after partitioning, before dispatch.
type RoundStartedEvent struct {
	Round     int
	Eligible  []string
	Blocked   int
	Timestamp time.Time
}

func (e RoundStartedEvent) EventType() string { return EventTypeRoundStarted }
func (e RoundStartedEvent) TaskID() string    { return "" }

// RoundCompletedEvent is published once the round's barrier has been passed
// and its facts merged.
type RoundCompletedEvent struct {
	Round     int
	NewFacts  []string
	Duration  time.Duration
	Timestamp time.Time
}

func (e RoundCompletedEvent) EventType() string { return EventTypeRoundCompleted }
func (e RoundCompletedEvent) TaskID() string    { return "" }

// RunProgressEvent is published when task counts change.
type RunProgressEvent struct {
	Total     int
	Completed int
	Running   int
	Failed    int
	Pending   int
	Skipped   int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskID() string    { return "" }
