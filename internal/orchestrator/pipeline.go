package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aristath/lyricflow/internal/events"
	"github.com/aristath/lyricflow/internal/lyrics"
	"github.com/aristath/lyricflow/internal/scheduler"
	"github.com/aristath/lyricflow/internal/telemetry"
)

// Facts asserted by the lyrics pipeline.
const (
	LoadedTaylor    scheduler.Prerequisite = "loaded-taylor"
	LoadedColdplay  scheduler.Prerequisite = "loaded-coldplay"
	SoundsCompared  scheduler.Prerequisite = "sounds-compared"
	CommonFound     scheduler.Prerequisite = "common-found"
	LengthsMeasured scheduler.Prerequisite = "lengths-measured"
)

// Dataset names the load tasks read.
const (
	DatasetTaylor   = "taylor"
	DatasetColdplay = "coldplay"
)

// PipelineConfig configures the lyrics pipeline.
type PipelineConfig struct {
	Source    lyrics.Source
	Store     lyrics.Store     // Defaults to an in-memory store
	Out       io.Writer        // Console; defaults to io.Discard
	Scheduler scheduler.Config // Round loop settings, logger, bus and metrics
	Retry     RetryConfig      // Load retry; zero value uses DefaultRetryConfig
	Breakers  *CircuitBreakerRegistry
	MinCount  int // A common word occurs more than this many times (default 100)
	MinLength int // A common word is longer than this (default 4)
}

// Summary collects what the analysis tasks computed.
type Summary struct {
	Sounds        lyrics.SoundComparison
	CommonWords   []string
	AverageLength map[string]float64 // dataset -> mean word length
}

// Pipeline loads two lyric datasets in parallel, then runs three analyses over
// them once both are loaded.
type Pipeline struct {
	cfg   PipelineConfig
	sched *scheduler.Scheduler

	mu      sync.Mutex // Guards out and summary
	summary Summary
}

// NewPipeline builds the scheduler and registers the pipeline's tasks.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("pipeline needs a lyrics source")
	}
	if cfg.Store == nil {
		cfg.Store = lyrics.NewMemoryStore()
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Breakers == nil {
		cfg.Breakers = NewCircuitBreakerRegistry(cfg.Scheduler.Logger)
	}
	if cfg.MinCount <= 0 {
		cfg.MinCount = 100
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = 4
	}

	p := &Pipeline{
		cfg:     cfg,
		sched:   scheduler.New(cfg.Scheduler),
		summary: Summary{AverageLength: make(map[string]float64)},
	}

	tasks := []*scheduler.Task{
		p.loadTask(DatasetTaylor, LoadedTaylor),
		p.loadTask(DatasetColdplay, LoadedColdplay),
		{
			ID:       "compare-sounds",
			Name:     "Compare Soundex codes",
			Requires: scheduler.NewFactSet(LoadedTaylor, LoadedColdplay),
			Produces: scheduler.NewFactSet(SoundsCompared),
			Run:      p.compareSounds,
		},
		{
			ID:       "common-words",
			Name:     "Find common words",
			Requires: scheduler.NewFactSet(LoadedTaylor, LoadedColdplay),
			Produces: scheduler.NewFactSet(CommonFound),
			Run:      p.commonWords,
		},
		{
			ID:       "word-length",
			Name:     "Measure average word length",
			Requires: scheduler.NewFactSet(LoadedTaylor, LoadedColdplay),
			Produces: scheduler.NewFactSet(LengthsMeasured),
			Run:      p.wordLength,
		},
	}
	for _, task := range tasks {
		if err := p.sched.Register(task); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Validate checks that every requirement has a producer and returns a
// dependency order of the tasks.
func (p *Pipeline) Validate() ([]string, error) {
	return p.sched.Validate()
}

// Run executes the pipeline. The report is returned even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context) (*scheduler.Report, *Summary, error) {
	ctx = telemetry.WithLogger(ctx, p.sched.Logger())
	report, err := p.sched.Run(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	summary := p.summary
	return report, &summary, err
}

func (p *Pipeline) loadTask(dataset string, fact scheduler.Prerequisite) *scheduler.Task {
	return &scheduler.Task{
		ID:       "load-" + dataset,
		Name:     "Load " + dataset + " lyrics",
		Produces: scheduler.NewFactSet(fact),
		Run: func(ctx context.Context, _ scheduler.FactView) scheduler.Result {
			start := time.Now()
			blobs, err := loadWithRetry(ctx, p.cfg.Source, dataset, p.cfg.Breakers.Get(dataset), p.cfg.Retry)
			if err != nil {
				return scheduler.Failed(fmt.Errorf("loading %s: %w", dataset, err))
			}

			freq := lyrics.CountWords(blobs...)
			if err := p.cfg.Store.Put(ctx, dataset, freq); err != nil {
				return scheduler.Failed(fmt.Errorf("storing %s: %w", dataset, err))
			}

			telemetry.FromContext(ctx).Info("dataset loaded",
				"dataset", dataset,
				"files", len(blobs),
				"words", freq.Total(),
				"unique", len(freq),
				"duration", time.Since(start))
			return scheduler.Finished(fact)
		},
	}
}

func (p *Pipeline) tables(ctx context.Context) (taylor, coldplay lyrics.Frequency, err error) {
	if taylor, err = p.cfg.Store.Get(ctx, DatasetTaylor); err != nil {
		return nil, nil, err
	}
	if coldplay, err = p.cfg.Store.Get(ctx, DatasetColdplay); err != nil {
		return nil, nil, err
	}
	return taylor, coldplay, nil
}

func (p *Pipeline) compareSounds(ctx context.Context, _ scheduler.FactView) scheduler.Result {
	taylor, coldplay, err := p.tables(ctx)
	if err != nil {
		return scheduler.Failed(err)
	}

	cmp := lyrics.CompareSounds(coldplay, taylor)
	p.mu.Lock()
	p.summary.Sounds = cmp
	p.mu.Unlock()

	p.emit("compare-sounds",
		fmt.Sprintf("Coldplay and Taylor Swift have %d similar sounds.", cmp.Shared),
		fmt.Sprintf("Coldplay has %d unique sounds.", cmp.OnlyA),
		fmt.Sprintf("Taylor Swift has %d unique sounds.", cmp.OnlyB),
	)
	return scheduler.Finished(SoundsCompared)
}

func (p *Pipeline) commonWords(ctx context.Context, _ scheduler.FactView) scheduler.Result {
	taylor, coldplay, err := p.tables(ctx)
	if err != nil {
		return scheduler.Failed(err)
	}

	words := lyrics.CommonWords(coldplay, taylor, p.cfg.MinCount, p.cfg.MinLength)
	p.mu.Lock()
	p.summary.CommonWords = words
	p.mu.Unlock()

	lines := make([]string, len(words))
	for i, w := range words {
		lines[i] = "A really common word is: " + w
	}
	p.emit("common-words", lines...)
	return scheduler.Finished(CommonFound)
}

func (p *Pipeline) wordLength(ctx context.Context, _ scheduler.FactView) scheduler.Result {
	taylor, coldplay, err := p.tables(ctx)
	if err != nil {
		return scheduler.Failed(err)
	}

	avgColdplay := lyrics.AverageWordLength(coldplay)
	avgTaylor := lyrics.AverageWordLength(taylor)
	p.mu.Lock()
	p.summary.AverageLength[DatasetColdplay] = avgColdplay
	p.summary.AverageLength[DatasetTaylor] = avgTaylor
	p.mu.Unlock()

	p.emit("word-length",
		fmt.Sprintf("Average coldplay word length: %g", avgColdplay),
		fmt.Sprintf("Average taylor swift word length: %g", avgTaylor),
	)
	return scheduler.Finished(LengthsMeasured)
}

// emit writes lines to the console and publishes them as task output.
func (p *Pipeline) emit(taskID string, lines ...string) {
	p.mu.Lock()
	for _, line := range lines {
		fmt.Fprintln(p.cfg.Out, line)
	}
	p.mu.Unlock()

	if bus := p.cfg.Scheduler.Bus; bus != nil {
		for _, line := range lines {
			bus.Publish(events.TopicTask, events.TaskOutputEvent{
				ID:        taskID,
				Line:      line,
				Timestamp: time.Now(),
			})
		}
	}
}
