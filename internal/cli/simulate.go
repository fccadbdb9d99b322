package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/openvault/recur/internal/event"
	"github.com/openvault/recur/internal/ledger"
	"github.com/openvault/recur/internal/reconcile"
	"github.com/openvault/recur/internal/source"
	"github.com/openvault/recur/internal/store"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Database string
	Cycles   int
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted ledger scenario end to end",
		Long: `Run a self-contained scenario against an in-process ledger
program: create a subscription, enroll a subscriber, settle a number of
payment cycles, and replay the whole event log into a mirror database.

Useful for smoke-testing the pipeline and for producing a populated
database to poke at with the query commands.

Example:
  recurd simulate --database ./sim.db --cycles 3 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "database", "", "path to mirror database to write (required)")
	cmd.Flags().IntVar(&opts.Cycles, "cycles", 2, "number of payment cycles to settle")
	_ = cmd.MarkFlagRequired("database")

	return cmd
}

func runSimulation(opts *SimulateOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)
	ctx := cmd.Context()

	var (
		program    = event.Address{0x01}
		operator   = event.Address{0x02}
		merchant   = event.Address{0x10}
		subscriber = event.Address{0x20}
		vault      = event.Address{0x30}
		token      = event.Address{0x40}
	)

	const period = int64(ledger.MinPeriod + 1)
	recurring := event.MustAmount("1000000000000000000")
	initial := event.MustAmount("500000000000000000")

	bank := ledger.NewMemTokenLedger()
	// Fund the subscriber generously so every cycle clears.
	funding := event.MustAmount("100000000000000000000")
	bank.Mint(token, subscriber, funding)
	bank.Approve(token, subscriber, program, funding)

	now := time.Now().Unix()
	clockAt := now
	prog := source.NewProgram(program, operator, bank,
		ledger.WithNow(func() time.Time { return time.Unix(clockAt, 0) }),
	)

	subID, err := prog.CreateSubscription(ctx, merchant, vault, token, recurring, initial, period, `{"plan":"sim"}`)
	if err != nil {
		return WrapExitError(ExitFailure, "create subscription", err)
	}
	instID, err := prog.CreateInstance(ctx, subscriber, subID)
	if err != nil {
		return WrapExitError(ExitFailure, "create instance", err)
	}
	for i := 0; i < opts.Cycles; i++ {
		clockAt += period
		if err := prog.HandleInstancePayment(ctx, operator, subID, instID); err != nil {
			return WrapExitError(ExitFailure, "settle payment", err)
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	// Closing the log makes the reconciler drain what was emitted and stop.
	prog.Log().Close()
	rec := reconcile.New(prog, st)
	if err := rec.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "replay failed", err)
	}

	inst, err := st.GetInstance(ctx, subID, instID)
	if err != nil {
		return WrapExitError(ExitFailure, "read back instance", err)
	}
	cur, err := st.Cursor(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "read back cursor", err)
	}

	return opts.formatter(cmd).Success(map[string]any{
		"subscriptionId": subID,
		"instanceId":     instID,
		"cycles":         opts.Cycles,
		"nextPayment":    inst.NextPaymentAt,
		"vaultBalance":   bank.BalanceOf(token, vault),
		"cursorSeq":      cur.Seq,
	})
}
