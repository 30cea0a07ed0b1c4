package main

import (
	"fmt"

	"investment-chat/internal/dataset"

	"github.com/spf13/cobra"
)

func NewCompaniesCommand(rootOpts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "companies",
		Short: "Print the revenue digest of every company in the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := loadConfig(rootOpts)
				if err != nil {
					return err
				}
				path = cfg.Dataset.Path
			}

			store, err := dataset.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), store.Digest())
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "dataset", "", "dataset file (default dataset.path)")
	return cmd
}
