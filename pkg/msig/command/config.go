package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(h *Handler) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	var force bool
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a new configuration file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.NewConfig(cmd.Context(), force)
		},
	}
	newCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")

	exportCmd := &cobra.Command{
		Use:   "export-as-json",
		Short: "Export the configuration file as json next to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.ExportAsJSON(cmd.Context())
		},
	}

	cmd.AddCommand(newCmd, exportCmd)
	return cmd
}

// NewConfig writes a default configuration file.
func (h *Handler) NewConfig(ctx context.Context, force bool) error {
	if err := h.store.Init(ctx, force); err != nil {
		return err
	}

	fmt.Fprintf(h.stdout, "wrote %s\n", h.store.Path())
	return nil
}

// ExportAsJSON writes the configuration as json, replacing the extension.
func (h *Handler) ExportAsJSON(ctx context.Context) error {
	target, err := h.store.Export(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(h.stdout, "wrote %s\n", target)
	return nil
}
