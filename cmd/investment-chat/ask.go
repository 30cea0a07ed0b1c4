package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), rootOpts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if session == "" {
				session = a.Config.Memory.Session
			}
			reply := a.Chat.AnswerSession(cmd.Context(), session, strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "conversation session (default memory.session)")
	return cmd
}
