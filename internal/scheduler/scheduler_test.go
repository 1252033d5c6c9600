package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/lyricflow/internal/events"
)

const (
	loadedA Prerequisite = "LoadedA"
	loadedB Prerequisite = "LoadedB"
)

// finishes returns a body that counts its calls and asserts facts.
func finishes(calls *atomic.Int32, facts ...Prerequisite) TaskFunc {
	return func(ctx context.Context, _ FactView) Result {
		if calls != nil {
			calls.Add(1)
		}
		return Finished(facts...)
	}
}

// rendezvous makes bodies that only finish once n of them are inside at the
// same time, proving they ran concurrently.
type rendezvous struct {
	arrived sync.WaitGroup
	all     chan struct{}
}

func newRendezvous(n int) *rendezvous {
	r := &rendezvous{all: make(chan struct{})}
	r.arrived.Add(n)
	go func() {
		r.arrived.Wait()
		close(r.all)
	}()
	return r
}

func (r *rendezvous) body(facts ...Prerequisite) TaskFunc {
	return func(ctx context.Context, _ FactView) Result {
		r.arrived.Done()
		select {
		case <-r.all:
			return Finished(facts...)
		case <-time.After(2 * time.Second):
			return Failed(errors.New("siblings never arrived: tasks were not concurrent"))
		}
	}
}

// runWithTimeout fails the test instead of hanging when Run never returns.
func runWithTimeout(t *testing.T, s *Scheduler) (*Report, error) {
	t.Helper()

	type out struct {
		report *Report
		err    error
	}
	done := make(chan out, 1)
	go func() {
		report, err := s.Run(context.Background())
		done <- out{report, err}
	}()

	select {
	case o := <-done:
		return o.report, o.err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil, nil
	}
}

func mustRegister(t *testing.T, s *Scheduler, tasks ...*Task) {
	t.Helper()
	for _, task := range tasks {
		if err := s.Register(task); err != nil {
			t.Fatalf("Register(%q): %v", task.ID, err)
		}
	}
}

func TestRun_TwoLoadsThenAnalysis(t *testing.T) {
	var calls3 atomic.Int32
	var sawBoth atomic.Bool

	meet := newRendezvous(2)
	s := New(Config{})
	mustRegister(t, s,
		&Task{ID: "task1", Run: meet.body(loadedA)},
		&Task{ID: "task2", Run: meet.body(loadedB)},
		&Task{
			ID:       "task3",
			Requires: NewFactSet(loadedA, loadedB),
			Run: func(ctx context.Context, facts FactView) Result {
				calls3.Add(1)
				sawBoth.Store(facts.Contains(loadedA) && facts.Contains(loadedB))
				return Finished()
			},
		},
	)
	report, err := runWithTimeout(t, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d: %+v", len(report.Rounds), report.Rounds)
	}
	if got := report.Rounds[0].Dispatched; !slices.Equal(got, []string{"task1", "task2"}) {
		t.Errorf("round 1 dispatched %v, want [task1 task2]", got)
	}
	if got := report.Rounds[1].Dispatched; !slices.Equal(got, []string{"task3"}) {
		t.Errorf("round 2 dispatched %v, want [task3]", got)
	}
	for _, id := range []string{"task1", "task2", "task3"} {
		o := report.Tasks[id]
		if o.Status != TaskCompleted || o.Runs != 1 {
			t.Errorf("task %s: status %s runs %d, want completed once", id, o.Status, o.Runs)
		}
	}
	if calls3.Load() != 1 {
		t.Errorf("task3 ran %d times", calls3.Load())
	}
	if !sawBoth.Load() {
		t.Error("task3 ran without both facts visible")
	}
	if !slices.Equal(report.Facts, []Prerequisite{loadedA, loadedB}) {
		t.Errorf("final facts %v", report.Facts)
	}
}

func TestRun_FanOutRunsInRoundOne(t *testing.T) {
	meet := newRendezvous(5)
	s := New(Config{})
	for i := range 5 {
		mustRegister(t, s, &Task{ID: fmt.Sprintf("t%d", i), Run: meet.body()})
	}

	report, err := runWithTimeout(t, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Rounds) != 1 {
		t.Fatalf("expected 1 round, got %d", len(report.Rounds))
	}
	if n := len(report.Rounds[0].Finished); n != 5 {
		t.Errorf("expected 5 tasks finished in round 1, got %d", n)
	}
}

func TestRun_ChainRespectsPrerequisites(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(id string, need Prerequisite, produce Prerequisite) TaskFunc {
		return func(ctx context.Context, facts FactView) Result {
			if need != "" && !facts.Contains(need) {
				return Failed(fmt.Errorf("%s dispatched before %s was asserted", id, need))
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return Finished(produce)
		}
	}

	s := New(Config{})
	// Registered consumer-first so order can't come from registration
	mustRegister(t, s,
		&Task{ID: "c", Requires: NewFactSet("b"), Run: record("c", "b", "c")},
		&Task{ID: "b", Requires: NewFactSet("a"), Run: record("b", "a", "b")},
		&Task{ID: "a", Run: record("a", "", "a")},
	)

	report, err := runWithTimeout(t, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(order, []string{"a", "b", "c"}) {
		t.Errorf("execution order %v, want [a b c]", order)
	}
	for id, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		if got := report.RoundOf(id); got != want {
			t.Errorf("task %s ran in round %d, want %d", id, got, want)
		}
	}
	if got := report.Rounds[1].NewFacts; !slices.Equal(got, []Prerequisite{"b"}) {
		t.Errorf("round 2 new facts %v, want [b]", got)
	}
}

func TestRun_DuplicateFactsMergeOnce(t *testing.T) {
	s := New(Config{})
	mustRegister(t, s,
		&Task{ID: "x1", Run: finishes(nil, loadedA)},
		&Task{ID: "x2", Run: finishes(nil, loadedA)},
		&Task{ID: "y", Requires: NewFactSet(loadedA), Run: finishes(nil, loadedA)},
	)

	report, err := runWithTimeout(t, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(report.Facts, []Prerequisite{loadedA}) {
		t.Errorf("facts %v, want [LoadedA]", report.Facts)
	}
	if len(report.Rounds[1].NewFacts) != 0 {
		t.Errorf("re-asserting a fact reported new facts: %v", report.Rounds[1].NewFacts)
	}
}

func TestRun_Deadlock(t *testing.T) {
	tests := []struct {
		name        string
		tasks       func() []*Task
		wantRound   int
		wantPending []string
		wantMissing []Prerequisite
		wantDone    []string
	}{
		{
			name: "requirement never produced",
			tasks: func() []*Task {
				return []*Task{{ID: "A", Requires: NewFactSet("X"), Run: finishes(nil)}}
			},
			wantRound:   1,
			wantPending: []string{"A"},
			wantMissing: []Prerequisite{"X"},
		},
		{
			name: "mutual requirement",
			tasks: func() []*Task {
				return []*Task{
					{ID: "A", Requires: NewFactSet("b"), Run: finishes(nil, "a")},
					{ID: "B", Requires: NewFactSet("a"), Run: finishes(nil, "b")},
				}
			},
			wantRound:   1,
			wantPending: []string{"A", "B"},
			wantMissing: []Prerequisite{"a", "b"},
		},
		{
			name: "stall after progress",
			tasks: func() []*Task {
				return []*Task{
					{ID: "A", Run: finishes(nil, "x")},
					{ID: "B", Requires: NewFactSet("x", "y"), Run: finishes(nil)},
				}
			},
			wantRound:   2,
			wantPending: []string{"B"},
			wantMissing: []Prerequisite{"y"},
			wantDone:    []string{"A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{})
			mustRegister(t, s, tt.tasks()...)

			report, err := runWithTimeout(t, s)

			var deadlock *DeadlockError
			if !errors.As(err, &deadlock) {
				t.Fatalf("expected DeadlockError, got %v", err)
			}
			if deadlock.Round != tt.wantRound {
				t.Errorf("deadlock round %d, want %d", deadlock.Round, tt.wantRound)
			}
			if !slices.Equal(deadlock.Pending, tt.wantPending) {
				t.Errorf("pending %v, want %v", deadlock.Pending, tt.wantPending)
			}
			if !slices.Equal(deadlock.Missing, tt.wantMissing) {
				t.Errorf("missing %v, want %v", deadlock.Missing, tt.wantMissing)
			}
			for _, id := range tt.wantPending {
				if st := report.Tasks[id].Status; st != TaskSkipped {
					t.Errorf("task %s status %s, want skipped", id, st)
				}
			}
			for _, id := range tt.wantDone {
				if st := report.Tasks[id].Status; st != TaskCompleted {
					t.Errorf("task %s status %s, want completed", id, st)
				}
			}
		})
	}
}

func TestRun_RunAgainStaysPending(t *testing.T) {
	var calls atomic.Int32
	s := New(Config{})
	mustRegister(t, s,
		&Task{
			ID: "poller",
			Run: func(ctx context.Context, _ FactView) Result {
				if calls.Add(1) < 3 {
					return RunAgain()
				}
				return Finished("ready")
			},
		},
		&Task{ID: "consumer", Requires: NewFactSet("ready"), Run: finishes(nil)},
	)

	report, err := runWithTimeout(t, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := report.Tasks["poller"]; got.Runs != 3 || got.Status != TaskCompleted {
		t.Errorf("poller outcome %+v, want 3 runs completed", got)
	}
	if len(report.Rounds) != 4 {
		t.Errorf("expected 4 rounds, got %d", len(report.Rounds))
	}
	if got := report.Rounds[0].Rescheduled; !slices.Equal(got, []string{"poller"}) {
		t.Errorf("round 1 rescheduled %v", got)
	}
	if got := report.RoundOf("consumer"); got != 4 {
		t.Errorf("consumer ran in round %d, want 4", got)
	}
}

func TestRun_MaxRounds(t *testing.T) {
	s := New(Config{MaxRounds: 3})
	mustRegister(t, s, &Task{
		ID:  "spinner",
		Run: func(ctx context.Context, _ FactView) Result { return RunAgain() },
	})

	report, err := runWithTimeout(t, s)

	var limit *RoundLimitError
	if !errors.As(err, &limit) {
		t.Fatalf("expected RoundLimitError, got %v", err)
	}
	if limit.Limit != 3 || !slices.Equal(limit.Pending, []string{"spinner"}) {
		t.Errorf("unexpected limit error %+v", limit)
	}
	if len(report.Rounds) != 3 {
		t.Errorf("expected 3 rounds, got %d", len(report.Rounds))
	}
	if report.Tasks["spinner"].Status != TaskSkipped {
		t.Errorf("spinner status %s", report.Tasks["spinner"].Status)
	}
}

func TestRun_AbortOnFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	var cRuns atomic.Int32

	s := New(Config{FailurePolicy: AbortOnFailure})
	mustRegister(t, s,
		&Task{ID: "A", Run: func(ctx context.Context, _ FactView) Result {
			time.Sleep(10 * time.Millisecond)
			return Failed(boom)
		}},
		&Task{ID: "B", Run: func(ctx context.Context, _ FactView) Result {
			time.Sleep(30 * time.Millisecond)
			return Finished("b")
		}},
		&Task{ID: "C", Requires: NewFactSet("b"), Run: finishes(&cRuns)},
	)

	report, err := runWithTimeout(t, s)

	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected TaskError, got %v", err)
	}
	if taskErr.TaskID != "A" || taskErr.Round != 1 || !errors.Is(err, boom) {
		t.Errorf("unexpected task error %v", taskErr)
	}

	// The barrier still joins B, so its facts land; C never starts
	if report.Tasks["B"].Status != TaskCompleted {
		t.Errorf("B status %s, want completed", report.Tasks["B"].Status)
	}
	if report.Tasks["C"].Status != TaskSkipped || cRuns.Load() != 0 {
		t.Errorf("C status %s runs %d, want skipped", report.Tasks["C"].Status, cRuns.Load())
	}
	if report.Tasks["A"].Err == nil {
		t.Error("A outcome lost its error")
	}
}

func TestRun_IsolateFailures(t *testing.T) {
	s := New(Config{FailurePolicy: IsolateFailures})
	mustRegister(t, s,
		&Task{ID: "load-a", Run: func(ctx context.Context, _ FactView) Result {
			return Failed(errors.New("no such directory"))
		}},
		&Task{ID: "load-b", Run: finishes(nil, "b")},
		&Task{ID: "use-b", Requires: NewFactSet("b"), Run: finishes(nil, "used-b")},
		&Task{ID: "use-a", Requires: NewFactSet("a"), Run: finishes(nil)},
	)

	report, err := runWithTimeout(t, s)
	if err == nil {
		t.Fatal("expected an error")
	}

	var taskErr *TaskError
	if !errors.As(err, &taskErr) || taskErr.TaskID != "load-a" {
		t.Errorf("expected TaskError for load-a, got %v", err)
	}
	var deadlock *DeadlockError
	if !errors.As(err, &deadlock) || !slices.Equal(deadlock.Pending, []string{"use-a"}) {
		t.Errorf("expected DeadlockError for use-a, got %v", err)
	}

	want := map[string]TaskStatus{
		"load-a": TaskFailed,
		"load-b": TaskCompleted,
		"use-b":  TaskCompleted,
		"use-a":  TaskSkipped,
	}
	for id, status := range want {
		if got := report.Tasks[id].Status; got != status {
			t.Errorf("task %s status %s, want %s", id, got, status)
		}
	}
	if slices.Contains(report.Facts, "a") {
		t.Error("failed task's fact was merged")
	}
}

func TestRun_FailedTaskFactsNeverMerged(t *testing.T) {
	s := New(Config{FailurePolicy: IsolateFailures})
	mustRegister(t, s, &Task{ID: "liar", Run: func(ctx context.Context, _ FactView) Result {
		res := Failed(errors.New("partial"))
		res.Facts = NewFactSet("half-done")
		return res
	}})

	report, _ := runWithTimeout(t, s)
	if len(report.Facts) != 0 {
		t.Errorf("facts %v, want none", report.Facts)
	}
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	s := New(Config{})
	mustRegister(t, s, &Task{ID: "oops", Run: func(ctx context.Context, _ FactView) Result {
		panic("index out of range")
	}})

	report, err := runWithTimeout(t, s)
	if err == nil || !strings.Contains(err.Error(), "panic: index out of range") {
		t.Fatalf("expected panic failure, got %v", err)
	}
	if report.Tasks["oops"].Status != TaskFailed {
		t.Errorf("status %s, want failed", report.Tasks["oops"].Status)
	}
}

func TestRun_Retry(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		maxAttempts  int
		wantStatus   TaskStatus
		wantAttempts int
	}{
		{name: "recovers", failures: 2, maxAttempts: 3, wantStatus: TaskCompleted, wantAttempts: 3},
		{name: "exhausted", failures: 5, maxAttempts: 2, wantStatus: TaskFailed, wantAttempts: 2},
		{name: "first try", failures: 0, maxAttempts: 3, wantStatus: TaskCompleted, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			s := New(Config{})
			mustRegister(t, s, &Task{
				ID:    "flaky",
				Retry: &RetryPolicy{MaxAttempts: tt.maxAttempts, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
				Run: func(ctx context.Context, _ FactView) Result {
					if calls.Add(1) <= tt.failures {
						return Failed(errors.New("transient"))
					}
					return Finished("ok")
				},
			})

			report, _ := runWithTimeout(t, s)
			o := report.Tasks["flaky"]
			if o.Status != tt.wantStatus {
				t.Errorf("status %s, want %s", o.Status, tt.wantStatus)
			}
			if o.Attempts != tt.wantAttempts {
				t.Errorf("attempts %d, want %d", o.Attempts, tt.wantAttempts)
			}
			if o.Runs != 1 {
				t.Errorf("retries must stay inside one round, got %d runs", o.Runs)
			}
		})
	}
}

func TestRun_ConcurrencyLimit(t *testing.T) {
	var current, peak atomic.Int32
	body := func(ctx context.Context, _ FactView) Result {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return Finished()
	}

	s := New(Config{ConcurrencyLimit: 2})
	for i := range 6 {
		mustRegister(t, s, &Task{ID: fmt.Sprintf("t%d", i), Run: body})
	}

	report, err := runWithTimeout(t, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak.Load())
	}
	if len(report.Rounds) != 1 {
		t.Errorf("limit must not split a round, got %d rounds", len(report.Rounds))
	}
}

func TestRun_SharedResourceSerialized(t *testing.T) {
	var inside, overlap atomic.Int32
	body := func(ctx context.Context, _ FactView) Result {
		if inside.Add(1) > 1 {
			overlap.Add(1)
		}
		time.Sleep(10 * time.Millisecond)
		inside.Add(-1)
		return Finished()
	}

	s := New(Config{})
	for i := range 4 {
		mustRegister(t, s, &Task{ID: fmt.Sprintf("w%d", i), Resources: []string{"stdout"}, Run: body})
	}

	if _, err := runWithTimeout(t, s); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if overlap.Load() != 0 {
		t.Errorf("%d overlapping holders of the same resource", overlap.Load())
	}
}

func TestRun_ContextCancelledBetweenRounds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var secondRan atomic.Bool
	s := New(Config{})
	mustRegister(t, s,
		&Task{ID: "first", Run: func(ctx context.Context, _ FactView) Result {
			cancel()
			return Finished("one")
		}},
		&Task{ID: "second", Requires: NewFactSet("one"), Run: func(ctx context.Context, _ FactView) Result {
			secondRan.Store(true)
			return Finished()
		}},
	)

	report, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if secondRan.Load() {
		t.Error("second round ran after cancellation")
	}
	if report.Tasks["first"].Status != TaskCompleted {
		t.Errorf("first status %s: a running round must complete", report.Tasks["first"].Status)
	}
	if report.Tasks["second"].Status != TaskSkipped {
		t.Errorf("second status %s, want skipped", report.Tasks["second"].Status)
	}
}

func TestRun_Empty(t *testing.T) {
	report, err := runWithTimeout(t, New(Config{}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Rounds) != 0 || len(report.Tasks) != 0 {
		t.Errorf("unexpected report %+v", report)
	}
	if report.RunID == "" {
		t.Error("missing run ID")
	}
}

func TestRegister(t *testing.T) {
	s := New(Config{})
	body := finishes(nil)

	if err := s.Register(&Task{ID: "a", Run: body}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name string
		task *Task
	}{
		{name: "nil task", task: nil},
		{name: "empty ID", task: &Task{Run: body}},
		{name: "no body", task: &Task{ID: "b"}},
		{name: "duplicate ID", task: &Task{ID: "a", Run: body}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Register(tt.task); err == nil {
				t.Error("expected error")
			}
		})
	}

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := s.Register(&Task{ID: "late", Run: body}); !errors.Is(err, ErrStarted) {
		t.Errorf("Register after Run: got %v, want ErrStarted", err)
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, ErrStarted) {
		t.Errorf("second Run: got %v, want ErrStarted", err)
	}
}

func TestRun_PublishesEvents(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Close()
	roundSub := bus.Subscribe(events.TopicRound, 64)
	taskSub := bus.Subscribe(events.TopicTask, 64)

	s := New(Config{Bus: bus})
	mustRegister(t, s,
		&Task{ID: "a", Run: finishes(nil, "a")},
		&Task{ID: "b", Requires: NewFactSet("a"), Run: finishes(nil)},
	)
	if _, err := runWithTimeout(t, s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	counts := map[string]int{}
	drain := func(ch <-chan events.Event) {
		for {
			select {
			case ev := <-ch:
				counts[ev.EventType()]++
			default:
				return
			}
		}
	}
	drain(roundSub)
	drain(taskSub)

	want := map[string]int{
		events.EventTypeRoundStarted:   2,
		events.EventTypeRoundCompleted: 2,
		events.EventTypeTaskStarted:    2,
		events.EventTypeTaskCompleted:  2,
	}
	for typ, n := range want {
		if counts[typ] != n {
			t.Errorf("%s: got %d events, want %d", typ, counts[typ], n)
		}
	}
	if counts[events.EventTypeRunProgress] == 0 {
		t.Error("no progress events")
	}
}
