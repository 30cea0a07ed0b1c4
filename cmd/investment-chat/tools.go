package main

import (
	"fmt"
	"text/tabwriter"

	"investment-chat/pkg/registry"

	"github.com/spf13/cobra"
)

func NewToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the capability registry offered to the router",
	}
	cmd.AddCommand(newToolsListCommand(), newToolsValidateCommand())
	return cmd
}

func newToolsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTASK TYPE\tTIMEOUT\tDESCRIPTION")
			for _, c := range registry.Default().Capabilities {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.TaskType, c.Timeout, c.Description)
			}
			return w.Flush()
		},
	}
}

func newToolsValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <registry.json>",
		Short: "Validate a capability registry file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(args[0])
			if err != nil {
				return fmt.Errorf("registry validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed (%d capabilities).\n", len(reg.Capabilities))
			return nil
		},
	}
}
