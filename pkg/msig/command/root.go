package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solfarm/multisig-cli/pkg/app"
	"github.com/solfarm/multisig-cli/pkg/msig/config"
)

// NewRootCommand returns the msig command tree bound to h.
func NewRootCommand(h *Handler) *cobra.Command {
	root := &cobra.Command{
		Use:           "msig",
		Short:         "Manage serum multisig accounts on Solana",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return h.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", config.DefaultPath, "configuration file, json when the extension is .json")
	flags.String("keypair", "", "signer keypair file (default key_path from the configuration)")
	flags.String("log-level", app.DefaultConfig().LogLevel, "log level")
	flags.String("log-file", "", "also write logs to this file (default log_file from the configuration)")
	flags.Uint64("compute-unit-price", 0, "priority fee in micro-lamports per compute unit")
	flags.String("memo", "", "memo attached to submitted transactions")

	root.AddCommand(
		newConfigCommand(h),
		newMultisigCommand(h),
	)
	return root
}

// Execute runs the command line in args and returns the process exit code.
// Errors are reported on the handler's stderr.
func Execute(ctx context.Context, h *Handler, args []string) int {
	root := NewRootCommand(h)
	root.SetArgs(args)
	root.SetOut(h.stdout)
	root.SetErr(h.stderr)

	err := root.ExecuteContext(ctx)
	if err != nil && h.cmdLog != nil {
		h.cmdLog.WithError(err).Debug("command failed")
	}
	h.close()

	code := ExitCode(err)
	switch code {
	case ExitReconcile:
		fmt.Fprintf(h.stderr, "Warning: %v\n", err)
	case ExitFailure:
		fmt.Fprintf(h.stderr, "Error: %v\n", err)
	}
	return code
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		cobra.CheckErr(cmd.MarkFlagRequired(name))
	}
}
