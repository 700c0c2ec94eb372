package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/o365connect/internal/adapters/driving/mcpserver"
	"github.com/custodia-labs/o365connect/internal/adapters/driving/tui"
	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive connect screen",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve connect, discovery and send as MCP tools over stdio",
	Long: `Run a Model Context Protocol server on stdin and stdout.

Tools: connect_status, discover_service, send_mail.
Sign-in prompts open in the browser; progress is written to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(mcpCmd)
}

// composeMail renders the configured template for identity.
func composeMail(identity *domain.Identity) (string, string, error) {
	if mailTemplate == nil {
		return "", "", errors.New("mail template not configured")
	}
	body, err := mailTemplate.Render(identity)
	if err != nil {
		return "", "", err
	}
	return mailTemplate.Subject, body, nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if !isTerminal() {
		return errors.New("the interactive screen needs a terminal; use 'o365connect send' instead")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return tui.Run(ctx, newFlow, composeMail)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	if newFlow == nil || authCoordinator == nil || discoveryCoordinator == nil {
		return errors.New("connect flow not configured")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	server := mcpserver.New(version, authCoordinator, discoveryCoordinator, newFlow(async.Inline{}), composeMail)
	return server.Run(ctx)
}
