package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ForgetCmd creates the forget command.
func ForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget [session_id]",
		Short: "Delete the history of a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runForget,
	}
}

func runForget(cmd *cobra.Command, args []string) error {
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

	if err := api.Forget(cmd.Context(), sessionID); err != nil {
		return fmt.Errorf("failed to forget session: %w", err)
	}

	if config.SessionID == sessionID {
		config.SessionID = ""
		if err := SaveGlobalConfig(config); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Forgot session %s\n", sessionID)
	return nil
}
