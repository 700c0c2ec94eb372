package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Sign in to Office 365 and discover the mail service",
	Long: `Sign in to Office 365 with a work or school account.

If you have signed in before, the stored session is reused without a prompt.
Otherwise a browser window opens for you to sign in.`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runDisconnect,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and session status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(statusCmd)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	ev, err := connectAndDiscover(cmd.Context(), cmd)
	if err != nil {
		return err
	}

	cmd.Println("Connected to Office 365.")
	printIdentity(cmd, ev.Identity)
	cmd.Printf("Mail service: %s\n", ev.Service.EndpointURI)
	return nil
}

// connectAndDiscover runs the flow until the mail service is ready.
func connectAndDiscover(ctx context.Context, cmd *cobra.Command) (domain.FlowEvent, error) {
	if newFlow == nil || authCoordinator == nil {
		return domain.FlowEvent{}, errors.New("connect flow not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := requirePromptable(ctx); err != nil {
		return domain.FlowEvent{}, friendly(err)
	}

	flow := newFlow(async.Inline{})
	return runFlowToReady(ctx, cmd, flow)
}

func runFlowToReady(ctx context.Context, cmd *cobra.Command, flow driving.ConnectFlow) (domain.FlowEvent, error) {
	unsubscribe := flow.Subscribe(func(ev domain.FlowEvent) {
		if ev.To == domain.StateDiscovering {
			cmd.Println("Signed in. Discovering services...")
		}
	})
	defer unsubscribe()

	if err := flow.Connect(ctx); err != nil {
		return domain.FlowEvent{}, friendly(err)
	}

	ev, err := flow.Await(ctx, domain.StateReady, domain.StateConnectError, domain.StateDiscoverError)
	if err != nil {
		return domain.FlowEvent{}, err
	}
	if ev.To.IsError() {
		return ev, friendly(ev.Err)
	}
	return ev, nil
}

// requirePromptable refuses to start an interactive sign-in when there is
// no terminal to complete it from.
func requirePromptable(ctx context.Context) error {
	if isTerminal() {
		return nil
	}
	connected, err := authCoordinator.IsConnected(ctx)
	if err != nil {
		return err
	}
	if connected {
		return nil
	}
	return fmt.Errorf("%w: no stored session and no terminal to sign in from; run 'o365connect connect' interactively first",
		domain.ErrConfiguration)
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	if authCoordinator == nil {
		return errors.New("auth coordinator not configured")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if discoveryCoordinator != nil {
		discoveryCoordinator.Reset()
	}
	if mailCoordinator != nil {
		mailCoordinator.Reset()
	}
	if err := authCoordinator.Disconnect(ctx); err != nil {
		return friendly(err)
	}
	cmd.Println("Disconnected. The stored session and cached tokens were removed.")
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if configPath != "" {
		cmd.Printf("Config:     %s\n", configPath)
	}
	if appConfig != nil {
		clientID := appConfig.ClientID
		if clientID == "" {
			clientID = "(not set)"
		}
		cmd.Printf("Client ID:  %s\n", clientID)
		cmd.Printf("Redirect:   %s\n", appConfig.RedirectURI)
		cmd.Printf("Authority:  %s\n", appConfig.Authority)
		cmd.Printf("Sessions:   %s\n", appConfig.Session.Backend)
		if err := appConfig.Validate(); err != nil {
			cmd.Printf("Problem:    %v\n", err)
		}
	}

	if authCoordinator == nil {
		return nil
	}
	connected, err := authCoordinator.IsConnected(ctx)
	if err != nil {
		return friendly(err)
	}
	if connected {
		cmd.Println("Session:    stored (connect will not prompt)")
	} else {
		cmd.Println("Session:    none (connect will open a browser)")
	}
	return nil
}

func printIdentity(cmd *cobra.Command, identity *domain.Identity) {
	if identity == nil {
		return
	}
	if identity.DisplayableID != "" {
		cmd.Printf("Signed in as: %s\n", identity.DisplayableID)
	}
	if identity.GivenName != "" || identity.FamilyName != "" {
		cmd.Printf("Name: %s %s\n", identity.GivenName, identity.FamilyName)
	}
}
