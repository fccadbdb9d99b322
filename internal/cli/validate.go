package cli

import (
	"github.com/spf13/cobra"

	"github.com/openvault/recur/internal/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a config file",
		Long: `Validate a config file against the schema without opening the
database or starting anything. Exit code 0 means the file would be
accepted by the run command.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			cfg, err := config.Load(args[0])
			if err != nil {
				_ = f.Failure("invalid_config", err)
				return NewExitError(ExitFailure, "config invalid")
			}
			return f.Success(map[string]any{
				"config":           args[0],
				"database":         cfg.Database,
				"interval_seconds": int64(cfg.Interval().Seconds()),
			})
		},
	}
}
