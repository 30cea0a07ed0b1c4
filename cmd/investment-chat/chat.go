package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const replPrompt = "> "

func NewChatCommand(rootOpts *RootOptions) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat on stdin; type exit to quit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), rootOpts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if session == "" {
				session = a.Config.Memory.Session
			}
			answer := func(ctx context.Context, text string) string {
				return a.Chat.AnswerSession(ctx, session, text)
			}
			return runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), answer)
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "conversation session (default memory.session)")
	return cmd
}

// runREPL reads one question per line until EOF or exit/quit.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, answer func(context.Context, string) string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprint(out, replPrompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			fmt.Fprint(out, replPrompt)
			continue
		case "exit", "quit":
			return nil
		}

		fmt.Fprintln(out, answer(ctx, line))
		fmt.Fprint(out, replPrompt)

		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}
