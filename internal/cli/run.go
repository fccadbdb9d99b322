package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openvault/recur/internal/config"
	"github.com/openvault/recur/internal/ledger"
	"github.com/openvault/recur/internal/metrics"
	"github.com/openvault/recur/internal/reconcile"
	"github.com/openvault/recur/internal/scheduler"
	"github.com/openvault/recur/internal/source"
	"github.com/openvault/recur/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the mirror pipeline",
		Long: `Run the reconciliation engine and the settlement scheduler.

The reconciler replays the ledger program's event log into the SQLite
mirror, resuming from the persisted cursor. The scheduler periodically
submits settlement for instances that are due. Both stop cleanly on
SIGINT/SIGTERM without tearing a state write apart from its cursor advance.

Example:
  recurd run --config ./recurd.yaml
  recurd run --config /etc/recurd/config.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	slog.Info("opening mirror database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	programAddr, err := cfg.Program()
	if err != nil {
		return WrapExitError(ExitCommandError, "bad program_address", err)
	}
	operatorAddr, err := cfg.Operator()
	if err != nil {
		return WrapExitError(ExitCommandError, "bad operator_address", err)
	}
	submitterAddr, err := cfg.Submitter()
	if err != nil {
		return WrapExitError(ExitCommandError, "bad submitter_address", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resume the program clock from the persisted cursor so freshly emitted
	// events continue the log instead of replaying old positions.
	cur, err := st.Cursor(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cursor", err)
	}

	// Embedded mode: the ledger program runs in-process. A remote transport
	// would replace prog with its own Source/Submitter pair here.
	prog := source.NewProgram(programAddr, operatorAddr, ledger.NewMemTokenLedger(),
		ledger.WithClock(ledger.NewClockAt(cur.Seq)),
		ledger.WithPolicy(ledger.Policy{IdempotentToggle: cfg.IdempotentToggle}),
	)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	rec := reconcile.New(prog, st,
		reconcile.WithMetrics(m),
		reconcile.WithBackoff(cfg.BackoffMin(), cfg.BackoffMax()),
	)
	sched := scheduler.New(st, prog, submitterAddr, cfg.Interval(),
		scheduler.WithMetrics(m),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rec.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })

	if cfg.MetricsListen != "" {
		srv := &http.Server{
			Addr:    cfg.MetricsListen,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		g.Go(func() error {
			slog.Info("metrics listening", "addr", cfg.MetricsListen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "pipeline failed", err)
	}
	slog.Info("pipeline stopped")
	return nil
}

func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
