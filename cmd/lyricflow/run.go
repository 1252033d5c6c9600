package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/lyricflow/internal/config"
	"github.com/aristath/lyricflow/internal/events"
	"github.com/aristath/lyricflow/internal/lyrics"
	"github.com/aristath/lyricflow/internal/orchestrator"
	"github.com/aristath/lyricflow/internal/persistence"
	"github.com/aristath/lyricflow/internal/scheduler"
	"github.com/aristath/lyricflow/internal/telemetry"
	"github.com/aristath/lyricflow/internal/tui"
)

type runOptions struct {
	dbPath      string
	useTUI      bool
	metricsAddr string
	policy      string
	concurrency int
	dataDir     string
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load both datasets and run the analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig(cmd)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logOut := cmd.ErrOrStderr()
			if opts.useTUI {
				// The alternate screen owns the terminal
				logOut = io.Discard
			}
			logger := flags.logger(cfg, logOut)

			return runPipeline(ctx, cmd.OutOrStdout(), logger, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Export frequency tables and the run summary to this SQLite file")
	cmd.Flags().BoolVar(&opts.useTUI, "tui", false, "Show a live terminal view of the run")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Failure policy: abort or isolate")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Max tasks running at once within a round (0: unlimited)")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Root directory for relative dataset paths")

	return cmd
}

// apply copies explicitly set flags over the loaded config.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("db") {
		cfg.Database = o.dbPath
	}
	if cmd.Flags().Changed("policy") {
		cfg.Scheduler.Policy = o.policy
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Scheduler.Concurrency = o.concurrency
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = o.dataDir
	}
}

func runPipeline(ctx context.Context, out io.Writer, logger *slog.Logger, cfg *config.Config, opts *runOptions) error {
	policy, err := scheduler.ParseFailurePolicy(cfg.Scheduler.Policy)
	if err != nil {
		return err
	}

	var (
		store    lyrics.Store = lyrics.NewMemoryStore()
		sqlStore *persistence.SQLiteStore
	)
	if cfg.Database != "" {
		sqlStore, err = persistence.NewSQLiteStore(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening result database: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	metrics := telemetry.NewMetrics()
	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr, metrics, logger)
		defer shutdown()
	}

	bus := events.NewEventBus()
	defer bus.Close()

	console := out
	if opts.useTUI {
		console = io.Discard
	}

	pipeline, err := orchestrator.NewPipeline(orchestrator.PipelineConfig{
		Source: lyrics.NewDirSource(cfg.DataDir, cfg.Datasets),
		Store:  store,
		Out:    console,
		Scheduler: scheduler.Config{
			ConcurrencyLimit: cfg.Scheduler.Concurrency,
			FailurePolicy:    policy,
			MaxRounds:        cfg.Scheduler.MaxRounds,
			Logger:           logger,
			Bus:              bus,
			Metrics:          metrics,
		},
		Retry: orchestrator.RetryConfig{
			InitialInterval:     cfg.Retry.InitialInterval.Std(),
			MaxInterval:         cfg.Retry.MaxInterval.Std(),
			MaxElapsedTime:      cfg.Retry.MaxElapsedTime.Std(),
			Multiplier:          cfg.Retry.Multiplier,
			RandomizationFactor: orchestrator.DefaultRetryConfig().RandomizationFactor,
		},
		Breakers:  orchestrator.NewCircuitBreakerRegistry(logger),
		MinCount:  cfg.Analysis.MinCount,
		MinLength: cfg.Analysis.MinLength,
	})
	if err != nil {
		return err
	}

	var (
		report  *scheduler.Report
		summary *orchestrator.Summary
		runErr  error
	)
	if opts.useTUI {
		report, summary, runErr = runWithTUI(ctx, pipeline, bus)
	} else {
		report, summary, runErr = pipeline.Run(ctx)
	}

	if report != nil && sqlStore != nil {
		if err := sqlStore.SaveRun(context.WithoutCancel(ctx), persistence.RunRecordFromReport(report, runErr)); err != nil {
			logger.Error("saving run summary", "error", err)
		}
	}

	if opts.useTUI && summary != nil {
		writeSummary(out, summary)
	}
	if report != nil {
		writeReport(out, report)
	}
	return runErr
}

// runWithTUI runs the pipeline in the background while the TUI shows its
// events. Quitting the TUI early stops the run after the current round.
func runWithTUI(ctx context.Context, pipeline *orchestrator.Pipeline, bus *events.EventBus) (*scheduler.Report, *orchestrator.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before the first round publishes anything
	program := tea.NewProgram(tui.New(bus), tea.WithAltScreen(), tea.WithContext(ctx))

	type result struct {
		report  *scheduler.Report
		summary *orchestrator.Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		report, summary, err := pipeline.Run(ctx)
		bus.Close()
		done <- result{report, summary, err}
	}()

	_, tuiErr := program.Run()
	cancel()
	res := <-done

	if tuiErr != nil && !errors.Is(tuiErr, tea.ErrProgramKilled) {
		return res.report, res.summary, errors.Join(res.err, fmt.Errorf("tui: %w", tuiErr))
	}
	return res.report, res.summary, res.err
}

// serveMetrics exposes /metrics until the returned shutdown func is called.
func serveMetrics(addr string, metrics *telemetry.Metrics, logger *slog.Logger) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// writeSummary prints the analysis results the TUI kept off the console.
func writeSummary(w io.Writer, s *orchestrator.Summary) {
	fmt.Fprintf(w, "Coldplay and Taylor Swift have %d similar sounds.\n", s.Sounds.Shared)
	fmt.Fprintf(w, "Coldplay has %d unique sounds.\n", s.Sounds.OnlyA)
	fmt.Fprintf(w, "Taylor Swift has %d unique sounds.\n", s.Sounds.OnlyB)
	for _, word := range s.CommonWords {
		fmt.Fprintf(w, "A really common word is: %s\n", word)
	}

	datasets := make([]string, 0, len(s.AverageLength))
	for name := range s.AverageLength {
		datasets = append(datasets, name)
	}
	slices.Sort(datasets)
	for _, name := range datasets {
		fmt.Fprintf(w, "Average %s word length: %g\n", name, s.AverageLength[name])
	}
}

// writeReport prints one line per round and the task totals.
func writeReport(w io.Writer, r *scheduler.Report) {
	fmt.Fprintf(w, "\nRun %s\n", r.RunID)
	for _, round := range r.Rounds {
		line := fmt.Sprintf("  round %d: %s", round.Number, strings.Join(round.Dispatched, ", "))
		if len(round.NewFacts) > 0 {
			facts := make([]string, len(round.NewFacts))
			for i, f := range round.NewFacts {
				facts[i] = string(f)
			}
			line += " -> " + strings.Join(facts, ", ")
		}
		fmt.Fprintf(w, "%s (%v)\n", line, round.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "  completed %d, failed %d, skipped %d\n",
		r.Count(scheduler.TaskCompleted), r.Count(scheduler.TaskFailed), r.Count(scheduler.TaskSkipped))
}
