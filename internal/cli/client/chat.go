package client

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cloo-solutions/docqa/internal/tui"
	"github.com/spf13/cobra"
)

// ChatCmd creates the interactive chat command.
func ChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}

	addSessionFlags(cmd)
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	config, err := LoadGlobalConfig()
	if err != nil {
		return err
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	model := tui.New(cmd.Context(), api, resolveSession(cmd, config))
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	if m, ok := final.(tui.Model); ok {
		return rememberSession(config, m.SessionID())
	}
	return nil
}
