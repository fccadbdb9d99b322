package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openvault/recur/internal/event"
	"github.com/openvault/recur/internal/ledger"
	"github.com/openvault/recur/internal/store"
)

// QueryOptions holds flags for the query commands.
type QueryOptions struct {
	*RootOptions
	Database string
}

// NewQueryCommand creates the query command group.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read mirrored state",
		Long: `Read subscriptions, instances, and the replay cursor from the
SQLite mirror. Queries never touch the ledger program; they see exactly
what the reconciler has applied so far.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "database", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("database")

	cmd.AddCommand(newQuerySubscriptionCommand(opts))
	cmd.AddCommand(newQueryInstanceCommand(opts))
	cmd.AddCommand(newQueryCursorCommand(opts))
	cmd.AddCommand(newQueryDueCommand(opts))

	return cmd
}

type subscriptionView struct {
	ID              event.ID      `json:"subscriptionId"`
	Owner           event.Address `json:"owner"`
	VaultAddress    event.Address `json:"vaultAddress"`
	TokenAddress    event.Address `json:"tokenAddress"`
	RecurringAmount event.Amount  `json:"recurringAmount"`
	InitialAmount   event.Amount  `json:"initialAmount"`
	Period          int64         `json:"period"`
	Data            string        `json:"data"`
}

type instanceView struct {
	ID             event.ID      `json:"instanceId"`
	SubscriptionID event.ID      `json:"subscriptionId"`
	Owner          event.Address `json:"owner"`
	NextPaymentAt  int64         `json:"nextPayment"`
	Discount       uint8         `json:"discount"`
	Data           string        `json:"data"`
	Active         bool          `json:"active"`
}

func subscriptionToView(s ledger.Subscription) subscriptionView {
	return subscriptionView{
		ID:              s.ID,
		Owner:           s.Owner,
		VaultAddress:    s.VaultAddress,
		TokenAddress:    s.TokenAddress,
		RecurringAmount: s.RecurringAmount,
		InitialAmount:   s.InitialAmount,
		Period:          s.Period,
		Data:            s.Data,
	}
}

func instanceToView(i ledger.Instance) instanceView {
	return instanceView{
		ID:             i.ID,
		SubscriptionID: i.SubscriptionID,
		Owner:          i.Owner,
		NextPaymentAt:  i.NextPaymentAt,
		Discount:       i.Discount,
		Data:           i.Data,
		Active:         i.Active,
	}
}

func newQuerySubscriptionCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "subscription <id>",
		Short:         "Look up a subscription by id",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := event.ParseID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "bad subscription id", err)
			}
			st, err := store.Open(opts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			sub, err := st.GetSubscription(cmd.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				return NewExitError(ExitFailure, fmt.Sprintf("subscription %s not found", id))
			}
			if err != nil {
				return WrapExitError(ExitFailure, "query failed", err)
			}
			return opts.formatter(cmd).Success(subscriptionToView(sub))
		},
	}
}

func newQueryInstanceCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "instance <subscription-id> <instance-id>",
		Short:         "Look up an instance by id",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			subID, err := event.ParseID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "bad subscription id", err)
			}
			instID, err := event.ParseID(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "bad instance id", err)
			}
			st, err := store.Open(opts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			inst, err := st.GetInstance(cmd.Context(), subID, instID)
			if errors.Is(err, store.ErrNotFound) {
				return NewExitError(ExitFailure, fmt.Sprintf("instance %s not found", instID))
			}
			if err != nil {
				return WrapExitError(ExitFailure, "query failed", err)
			}
			return opts.formatter(cmd).Success(instanceToView(inst))
		},
	}
}

func newQueryCursorCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cursor",
		Short:         "Show the replay cursor",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(opts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			cur, err := st.Cursor(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "query failed", err)
			}
			return opts.formatter(cmd).Success(map[string]int64{
				"seq":      cur.Seq,
				"subIndex": cur.SubIndex,
			})
		},
	}
}

func newQueryDueCommand(opts *QueryOptions) *cobra.Command {
	var asOf int64
	cmd := &cobra.Command{
		Use:           "due",
		Short:         "List active instances due for settlement",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(opts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			insts, err := st.DueInstances(cmd.Context(), asOf)
			if err != nil {
				return WrapExitError(ExitFailure, "query failed", err)
			}
			views := make([]instanceView, 0, len(insts))
			for _, inst := range insts {
				views = append(views, instanceToView(inst))
			}
			return opts.formatter(cmd).Success(views)
		},
	}
	cmd.Flags().Int64Var(&asOf, "as-of", 0, "logical time to evaluate due instances at (required)")
	_ = cmd.MarkFlagRequired("as-of")
	return cmd
}
