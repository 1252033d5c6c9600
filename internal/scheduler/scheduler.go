package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/lyricflow/internal/events"
	"github.com/aristath/lyricflow/internal/telemetry"
)

// Config configures a Scheduler.
type Config struct {
	ConcurrencyLimit int               // Max tasks running at once within a round (<= 0: no limit)
	FailurePolicy    FailurePolicy     // What a failed task does to the rest of the run
	MaxRounds        int               // Stop with RoundLimitError after this many rounds (<= 0: no limit)
	Logger           *slog.Logger      // Optional; discards when nil
	Bus              *events.EventBus  // Optional event sink
	Metrics          *telemetry.Metrics // Optional collectors
}

// Scheduler runs tasks in barrier-synchronized rounds. Each round dispatches,
// in parallel, every pending task whose prerequisites are already asserted, waits
// for all of them, then merges the facts they produced.
//
// The fact set is only written by the goroutine calling Run, between rounds.
// Task bodies see it read-only, so it needs no lock.
type Scheduler struct {
	cfg     Config
	lockMgr *ResourceLockManager

	mu      sync.Mutex // Guards started, pending and ids during registration
	started bool
	pending []*Task
	ids     map[string]struct{}

	facts FactSet
}

// New creates a scheduler with an empty task pool and an empty fact set.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard()
	}
	return &Scheduler{
		cfg:     cfg,
		lockMgr: NewResourceLockManager(),
		ids:     make(map[string]struct{}),
		facts:   NewFactSet(),
	}
}

// Register adds a task to the pending pool. It fails once Run has been called.
func (s *Scheduler) Register(task *Task) error {
	if task == nil {
		return fmt.Errorf("nil task")
	}
	if task.ID == "" {
		return fmt.Errorf("task has no ID")
	}
	if task.Run == nil {
		return fmt.Errorf("task %q has no body", task.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("registering task %q: %w", task.ID, ErrStarted)
	}
	if _, exists := s.ids[task.ID]; exists {
		return fmt.Errorf("task with ID %q already exists", task.ID)
	}

	s.ids[task.ID] = struct{}{}
	s.pending = append(s.pending, task)
	return nil
}

// Logger returns the logger the scheduler writes to.
func (s *Scheduler) Logger() *slog.Logger {
	return s.cfg.Logger
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Run drives rounds until no task is pending and returns a report of the run.
// It may be called once; the scheduler is consumed by it.
//
// A round with nothing eligible while tasks are pending ends the run with a
// *DeadlockError. Task failures are returned as *TaskError values (joined when
// there are several). ctx is consulted between rounds only: running bodies
// receive it but are never cancelled by the scheduler.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, ErrStarted
	}
	s.started = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	report := newReport(uuid.NewString(), pending)
	logger := telemetry.WithRunID(s.cfg.Logger, report.RunID)
	logger.Info("run started", "tasks", len(pending), "policy", s.cfg.FailurePolicy.String())

	var failures []error
	finish := func(err error) (*Report, error) {
		if err != nil {
			failures = append(failures, err)
		}
		report.Facts = s.facts.Sorted()
		s.cfg.Metrics.SetPending(0)
		s.publishProgress(report)
		logger.Info("run finished",
			"rounds", len(report.Rounds),
			"completed", report.Count(TaskCompleted),
			"failed", report.Count(TaskFailed),
			"skipped", report.Count(TaskSkipped))
		return report, joinErrors(failures)
	}

	for round := 1; len(pending) > 0; round++ {
		if err := ctx.Err(); err != nil {
			report.skip(pending)
			return finish(fmt.Errorf("run interrupted before round %d: %w", round, err))
		}
		if s.cfg.MaxRounds > 0 && round > s.cfg.MaxRounds {
			report.skip(pending)
			return finish(&RoundLimitError{Limit: s.cfg.MaxRounds, Pending: taskIDs(pending)})
		}

		eligible, blocked := partition(pending, s.facts)
		pending = blocked
		s.cfg.Metrics.SetPending(len(pending))

		if len(eligible) == 0 {
			deadlock := &DeadlockError{
				Round:   round,
				Pending: taskIDs(blocked),
				Missing: missingFacts(blocked, s.facts),
			}
			logger.Error("no eligible tasks", "round", round, "error", deadlock)
			report.skip(blocked)
			return finish(deadlock)
		}

		rr, rescheduled, roundFailures := s.runRound(ctx, logger, report, round, eligible, len(blocked))
		report.Rounds = append(report.Rounds, rr)
		pending = append(pending, rescheduled...)
		failures = append(failures, roundFailures...)
		s.publishProgress(report)

		if len(roundFailures) > 0 && s.cfg.FailurePolicy == AbortOnFailure {
			logger.Error("aborting run after task failure", "round", round, "skipped", len(pending))
			report.skip(pending)
			return finish(nil)
		}
	}

	return finish(nil)
}

// attempt is one task's contribution to a round, filled in by its goroutine.
type attempt struct {
	result   Result
	attempts int
	duration time.Duration
}

// runRound dispatches eligible tasks concurrently, waits at the barrier, then
// merges results on the calling goroutine.
func (s *Scheduler) runRound(ctx context.Context, logger *slog.Logger, report *Report, round int, eligible []*Task, blocked int) (RoundReport, []*Task, []error) {
	start := time.Now()
	ids := taskIDs(eligible)
	logger.Debug("round started", "round", round, "eligible", ids, "blocked", blocked)
	s.publish(events.TopicRound, events.RoundStartedEvent{
		Round:     round,
		Eligible:  ids,
		Blocked:   blocked,
		Timestamp: start,
	})

	for _, task := range eligible {
		report.update(task.ID, func(o *TaskOutcome) {
			o.Status = TaskRunning
			o.Runs++
			o.Round = round
		})
	}
	s.publishProgress(report)

	// Facts are frozen for the whole parallel phase
	view := FactView(s.facts)
	results := make([]attempt, len(eligible))

	var g errgroup.Group
	if s.cfg.ConcurrencyLimit > 0 {
		g.SetLimit(s.cfg.ConcurrencyLimit)
	}
	for i, task := range eligible {
		g.Go(func() error {
			results[i] = s.execute(ctx, round, task, view)
			return nil // Failures travel in results, never abort the group
		})
	}
	// Barrier: round N+1 never starts before every task of round N returned
	_ = g.Wait()

	rr := RoundReport{Number: round, Dispatched: ids}
	var rescheduled []*Task
	var failures []error
	newFacts := NewFactSet()

	for i, task := range eligible {
		res := results[i]
		taskLogger := telemetry.WithTaskID(logger, task.ID)

		switch res.result.Kind {
		case ResultFinished:
			for fact := range res.result.Facts {
				if !s.facts.Contains(fact) {
					newFacts.Add(fact)
				}
			}
			s.facts.Merge(res.result.Facts)
			rr.Finished = append(rr.Finished, task.ID)
			report.update(task.ID, func(o *TaskOutcome) {
				o.Status = TaskCompleted
				o.Attempts += res.attempts
			})
			s.cfg.Metrics.TaskResult(ResultFinished.String(), res.attempts)
			s.publish(events.TopicTask, events.TaskCompletedEvent{
				ID:        task.ID,
				Facts:     factStrings(res.result.Facts.Sorted()),
				Attempts:  res.attempts,
				Duration:  res.duration,
				Timestamp: time.Now(),
			})
			taskLogger.Debug("task finished", "facts", res.result.Facts.Len(), "duration", res.duration)

		case ResultRunAgain:
			rescheduled = append(rescheduled, task)
			rr.Rescheduled = append(rr.Rescheduled, task.ID)
			report.update(task.ID, func(o *TaskOutcome) {
				o.Status = TaskPending
				o.Attempts += res.attempts
			})
			s.cfg.Metrics.TaskResult(ResultRunAgain.String(), res.attempts)
			s.publish(events.TopicTask, events.TaskRescheduledEvent{
				ID:        task.ID,
				Round:     round,
				Timestamp: time.Now(),
			})
			taskLogger.Debug("task asked to run again", "round", round)

		default:
			taskErr := &TaskError{TaskID: task.ID, Round: round, Err: res.result.Err}
			failures = append(failures, taskErr)
			rr.Failed = append(rr.Failed, task.ID)
			report.update(task.ID, func(o *TaskOutcome) {
				o.Status = TaskFailed
				o.Attempts += res.attempts
				o.Err = res.result.Err
			})
			s.cfg.Metrics.TaskResult(ResultFailed.String(), res.attempts)
			s.publish(events.TopicTask, events.TaskFailedEvent{
				ID:        task.ID,
				Err:       res.result.Err,
				Attempts:  res.attempts,
				Duration:  res.duration,
				Timestamp: time.Now(),
			})
			taskLogger.Error("task failed", "round", round, "attempts", res.attempts, "error", res.result.Err)
		}
	}

	rr.NewFacts = newFacts.Sorted()
	rr.Duration = time.Since(start)
	s.cfg.Metrics.RoundCompleted(rr.Duration)
	s.publish(events.TopicRound, events.RoundCompletedEvent{
		Round:     round,
		NewFacts:  factStrings(rr.NewFacts),
		Duration:  rr.Duration,
		Timestamp: time.Now(),
	})
	logger.Debug("round completed", "round", round, "new_facts", factStrings(rr.NewFacts), "duration", rr.Duration)

	return rr, rescheduled, failures
}

// execute runs one task under its resource locks.
func (s *Scheduler) execute(ctx context.Context, round int, task *Task, view FactView) attempt {
	start := time.Now()
	s.publish(events.TopicTask, events.TaskStartedEvent{
		ID:        task.ID,
		Name:      task.label(),
		Round:     round,
		Timestamp: start,
	})

	s.lockMgr.LockAll(task.Resources)
	defer s.lockMgr.UnlockAll(task.Resources)

	result, n := runAttempts(ctx, task, view)
	return attempt{result: result, attempts: n, duration: time.Since(start)}
}

func (s *Scheduler) publish(topic string, event events.Event) {
	if s.cfg.Bus != nil {
		s.cfg.Bus.Publish(topic, event)
	}
}

func (s *Scheduler) publishProgress(report *Report) {
	if s.cfg.Bus == nil {
		return
	}
	s.cfg.Bus.Publish(events.TopicRound, events.RunProgressEvent{
		Total:     len(report.Tasks),
		Completed: report.Count(TaskCompleted),
		Running:   report.Count(TaskRunning),
		Failed:    report.Count(TaskFailed),
		Pending:   report.Count(TaskPending),
		Skipped:   report.Count(TaskSkipped),
		Timestamp: time.Now(),
	})
}

// partition splits tasks into those whose requirements are satisfied by facts
// and the rest, preserving registration order within each group.
func partition(tasks []*Task, facts FactSet) (eligible, blocked []*Task) {
	for _, task := range tasks {
		if facts.ContainsAll(task.Requires) {
			eligible = append(eligible, task)
		} else {
			blocked = append(blocked, task)
		}
	}
	return eligible, blocked
}

func missingFacts(tasks []*Task, facts FactSet) []Prerequisite {
	missing := NewFactSet()
	for _, task := range tasks {
		for _, p := range facts.Missing(task.Requires) {
			missing.Add(p)
		}
	}
	return missing.Sorted()
}

func taskIDs(tasks []*Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
