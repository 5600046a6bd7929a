package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	sourceColor  = color.New(color.Faint)
	refusalColor = color.New(color.FgYellow)
	sessionColor = color.New(color.FgCyan)
)

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed documents",
		Long: `Asks one question. Follow-up questions reuse the session stored in the
client config unless --session or --new is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	addSessionFlags(cmd)
	return cmd
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().String("session", "", "Session ID to continue (defaults to the last session)")
	cmd.Flags().Bool("new", false, "Start a new conversation")
}

// resolveSession picks the session to continue: --new, then --session, then the
// one remembered in config.yaml
func resolveSession(cmd *cobra.Command, config *GlobalConfig) string {
	if fresh, _ := cmd.Flags().GetBool("new"); fresh {
		return ""
	}
	if id, _ := cmd.Flags().GetString("session"); id != "" {
		return id
	}
	return config.SessionID
}

// rememberSession stores the session id for the next ask or chat.
func rememberSession(config *GlobalConfig, sessionID string) error {
	if sessionID == "" || config.SessionID == sessionID {
		return nil
	}
	config.SessionID = sessionID
	return SaveGlobalConfig(config)
}

func runAsk(cmd *cobra.Command, args []string) error {
	outputJSON, _ := cmd.Flags().GetBool("output")

	config, err := LoadGlobalConfig()
	if err != nil {
		return err
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	result, err := api.Ask(cmd.Context(), resolveSession(cmd, config), question)
	if err != nil {
		return fmt.Errorf("failed to ask: %w", err)
	}

	if err := rememberSession(config, result.SessionID); err != nil {
		return err
	}

	if outputJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), result)
	}
	printAnswer(cmd.OutOrStdout(), result)
	return nil
}

func printAnswer(w io.Writer, result *domain.AnswerResult) {
	if result.Confident {
		fmt.Fprintln(w, result.Answer)
	} else {
		refusalColor.Fprintln(w, result.Answer)
	}
	if len(result.Sources) > 0 {
		sourceColor.Fprintf(w, "\nSources: %s\n", strings.Join(result.Sources, ", "))
	}
	sessionColor.Fprintf(w, "Session: %s\n", result.SessionID)
}
