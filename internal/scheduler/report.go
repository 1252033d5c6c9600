package scheduler

import (
	"time"
)

// TaskOutcome is the final record of one task.
type TaskOutcome struct {
	Status   TaskStatus
	Runs     int   // Rounds in which the task was dispatched
	Attempts int   // Body invocations, retries included
	Round    int   // Last round the task was dispatched in (0 if never)
	Err      error // Failure reason for TaskFailed
}

// RoundReport describes one fork-join round.
type RoundReport struct {
	Number      int
	Dispatched  []string
	Finished    []string
	Rescheduled []string
	Failed      []string
	NewFacts    []Prerequisite // Facts that were not members before this round
	Duration    time.Duration
}

// Report summarizes a run.
type Report struct {
	RunID  string
	Rounds []RoundReport
	Tasks  map[string]TaskOutcome
	Facts  []Prerequisite // Final fact set, sorted
}

func newReport(runID string, tasks []*Task) *Report {
	r := &Report{
		RunID: runID,
		Tasks: make(map[string]TaskOutcome, len(tasks)),
	}
	for _, t := range tasks {
		r.Tasks[t.ID] = TaskOutcome{Status: TaskPending}
	}
	return r
}

func (r *Report) update(id string, fn func(*TaskOutcome)) {
	o := r.Tasks[id]
	fn(&o)
	r.Tasks[id] = o
}

func (r *Report) skip(tasks []*Task) {
	for _, t := range tasks {
		r.update(t.ID, func(o *TaskOutcome) { o.Status = TaskSkipped })
	}
}

// Count returns how many tasks ended in status.
func (r *Report) Count(status TaskStatus) int {
	n := 0
	for _, o := range r.Tasks {
		if o.Status == status {
			n++
		}
	}
	return n
}

// RoundOf returns the round a task was last dispatched in, or 0.
func (r *Report) RoundOf(taskID string) int {
	return r.Tasks[taskID].Round
}
