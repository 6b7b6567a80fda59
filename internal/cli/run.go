package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loomshell/loom/internal/config"
	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/engine"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/store"
	"github.com/loomshell/loom/internal/workers"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Plugins  string

	// Backend overrides the resource backend (for testing). If nil, the
	// headless in-process backend is used.
	Backend engine.ResourceBackend
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the shell kernel",
		Long: `Start the navigation shell kernel.

The kernel restores the graph from the structural log, starts the
background producers (memory monitor, plugin loader, prefetch scheduler)
under supervision, and runs the tick loop until interrupted.

Without an embedding engine, resources are backed by an in-process
headless backend; the kernel semantics (ordering, reconciliation,
retry/demotion) are identical.

Example:
  loom run --db ./loom.db
  loom run --config ./loom.yaml --plugins ./plugins --verbose`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKernel(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite structural log (overrides config)")
	cmd.Flags().StringVar(&opts.Plugins, "plugins", "", "plugin manifest directory (overrides config)")

	return cmd
}

func runKernel(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	cfg := config.Default()
	if opts.Config != "" {
		var err error
		cfg, err = config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	if opts.Database != "" {
		cfg.DataPath = opts.Database
	}
	if opts.Plugins != "" {
		cfg.Plugins.Dir = opts.Plugins
	}

	slog.Info("opening structural log", "path", cfg.DataPath)
	st, err := store.Open(cfg.DataPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open structural log", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing structural log", "error", closeErr)
		}
	}()

	metrics := diag.NewMetrics(prometheus.NewRegistry())
	emitter := diag.New(slog.Default(), diag.WithMetrics(metrics))

	backend := opts.Backend
	if backend == nil {
		backend = &headlessBackend{}
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	model := graph.NewModel()
	clock := engine.NewClock()
	queue := engine.NewQueue(cfg.QueueCapacity, emitter)
	reducer := engine.NewReducer(model, st, clock, cfg.PeerID, emitter)
	reconciler := engine.NewReconciler(model, backend, cfg.RetryThreshold, cfg.ActiveLimit, emitter)
	sup := engine.NewSupervisor(ctx, emitter)

	publisher := workers.NewSnapshotPublisher(nil)
	orch := engine.NewOrchestrator(model, queue, reducer, reconciler, sup, emitter,
		engine.WithRenderer(publisher),
		engine.WithTickInterval(cfg.TickInterval()),
		engine.WithJoinTimeout(cfg.JoinTimeout()),
	)

	// Restore before any producer runs: replayed mutations must apply
	// ahead of everything enqueued for the first tick.
	slog.Info("restoring from structural log")
	if err := orch.Restore(ctx, st); err != nil {
		return WrapExitError(ExitCommandError, "restore failed", err)
	}
	slog.Info("restore complete",
		"nodes", model.Graph.NodeCount(),
		"edges", model.Graph.EdgeCount(),
	)

	startWorkers(sup, queue, publisher, cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "Kernel started. Press Ctrl-C to stop.")

	runErr := orch.Run(ctx)
	if runErr != nil && runErr != context.Canceled && runErr != context.DeadlineExceeded {
		return WrapExitError(ExitFailure, "kernel error", runErr)
	}

	if err := orch.Shutdown(context.Background()); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
	}

	slog.Info("kernel stopped gracefully")
	return nil
}

// startWorkers registers the background producers under supervision.
func startWorkers(sup *engine.Supervisor, queue *engine.Queue, publisher *workers.SnapshotPublisher, cfg config.Config) {
	thresholds := workers.Thresholds{
		WarningMiB:      cfg.Memory.WarningMiB,
		WarningPercent:  cfg.Memory.WarningPercent,
		CriticalMiB:     cfg.Memory.CriticalMiB,
		CriticalPercent: cfg.Memory.CriticalPercent,
	}
	monitor := workers.NewMemoryMonitor(queue, thresholds, cfg.Memory.SampleInterval(), workers.SystemSample)
	sup.Go("memory_monitor", monitor.Run)

	if cfg.Plugins.Dir != "" {
		loader := workers.NewPluginLoader(queue, cfg.Plugins.Dir, cfg.Plugins.Watch)
		sup.Go("plugin_loader", loader.Run)
	}

	if cfg.Prefetch.Enabled {
		prefetcher := workers.NewPrefetcher(queue, publisher.Latest, cfg.Prefetch.Interval(), cfg.Prefetch.WarmLimit)
		sup.Go("prefetch", prefetcher.Run)
	}
}

// headlessBackend backs nodes with in-process resource ids when no
// embedding engine is attached. Creation never fails, so retry and
// demotion paths stay dormant in standalone runs.
type headlessBackend struct{}

func (b *headlessBackend) Create(ctx context.Context, node *graph.Node) (graph.ResourceID, error) {
	return graph.ResourceID("headless-" + uuid.NewString()), nil
}

func (b *headlessBackend) Destroy(ctx context.Context, id graph.ResourceID) error {
	return nil
}
