package client

import (
	"errors"
	"fmt"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/spf13/cobra"
)

var errNoSession = errors.New("no session given and none remembered; pass a session ID")

// HistoryCmd creates the history command.
func HistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [session_id]",
		Short: "Show the turns of a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
}

// sessionArg returns the positional session id or the remembered one
func sessionArg(args []string, config *GlobalConfig) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if config.SessionID == "" {
		return "", errNoSession
	}
	return config.SessionID, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	outputJSON, _ := cmd.Flags().GetBool("output")

	config, err := LoadGlobalConfig()
	if err != nil {
		return err
	}
	sessionID, err := sessionArg(args, config)
	if err != nil {
		return err
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	history, err := api.History(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	if outputJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), history)
	}

	w := cmd.OutOrStdout()
	if len(history.Turns) == 0 {
		fmt.Fprintf(w, "Session %s has no turns yet.\n", history.SessionID)
		return nil
	}
	for i, turn := range history.Turns {
		sessionColor.Fprintf(w, "[%d] %s\n", i+1, turn.AskedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Q: %s\n", turn.Question)
		fmt.Fprintf(w, "A: %s\n\n", turn.Answer)
	}
	return nil
}
