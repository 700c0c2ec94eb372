package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/o365connect/internal/core/domain"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [capability]",
	Short: "Show the endpoint for an Office 365 capability",
	Long: `Sign in if needed, then look up a capability in the discovery service.

Capabilities are case sensitive: Mail, Calendar, Contacts, MyFiles.
Without an argument every discovered service is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if discoveryCoordinator == nil {
		return errors.New("discovery coordinator not configured")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := connectAndDiscover(ctx, cmd); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if len(args) == 0 {
		svcs := discoveryCoordinator.Services()
		if len(svcs) == 0 {
			cmd.Println("No services discovered.")
			return nil
		}
		cmd.Println("Discovered services:")
		cmd.Println()
		for _, svc := range svcs {
			printService(cmd, svc)
		}
		return nil
	}

	svc, err := discoveryCoordinator.GetServiceInfo(ctx, domain.Capability(args[0])).Await(ctx)
	if err != nil {
		return friendly(err)
	}
	printService(cmd, svc)
	return nil
}

func printService(cmd *cobra.Command, svc domain.ServiceDescriptor) {
	cmd.Printf("  %s\n", svc.Capability)
	if svc.ServiceName != "" {
		cmd.Printf("    Name: %s\n", svc.ServiceName)
	}
	cmd.Printf("    Endpoint: %s\n", svc.EndpointURI)
	cmd.Printf("    Resource: %s\n", svc.ResourceID)
	cmd.Println()
}
