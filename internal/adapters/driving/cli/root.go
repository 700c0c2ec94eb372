package cli

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/o365connect/internal/adapters/driven/config"
	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
	"github.com/custodia-labs/o365connect/internal/core/services"
	"github.com/custodia-labs/o365connect/internal/logger"
)

var (
	// Version is set by goreleaser ldflags.
	version = "dev"

	// Verbose enables debug logging.
	verbose bool

	// Services holds injected service implementations for CLI commands.
	authCoordinator      driving.AuthCoordinator
	discoveryCoordinator driving.DiscoveryCoordinator
	mailCoordinator      driving.MailCoordinator
	newFlow              func(async.Dispatcher) driving.ConnectFlow
	mailTemplate         *services.MailTemplate
	appConfig            *config.Config
	configPath           string
	setupHint            string

	// isTerminal reports whether stdin is attached to a terminal.
	isTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

// Services holds configuration for CLI commands.
type Services struct {
	Auth      driving.AuthCoordinator
	Discovery driving.DiscoveryCoordinator
	Mail      driving.MailCoordinator
	// NewFlow builds a connect flow that applies results through the given
	// dispatcher.
	NewFlow    func(async.Dispatcher) driving.ConnectFlow
	Template   *services.MailTemplate
	Config     *config.Config
	ConfigPath string
	// SetupHint explains how to register the Azure AD application.
	SetupHint string
}

// SetServices injects service implementations for CLI commands.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	authCoordinator = s.Auth
	discoveryCoordinator = s.Discovery
	mailCoordinator = s.Mail
	newFlow = s.NewFlow
	mailTemplate = s.Template
	appConfig = s.Config
	configPath = s.ConfigPath
	setupHint = s.SetupHint
}

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "o365connect",
	Short: "Connect to Office 365 and send mail from the terminal",
	Long: `o365connect signs you in to Office 365 with a work or school account,
discovers the services your account can use, and sends a welcome message
through your Outlook mailbox.

Register an application in Azure AD, then run 'o365connect configure'.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")

	// Use PersistentPreRunE to set verbose mode before any command executes
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return nil
	}
}
