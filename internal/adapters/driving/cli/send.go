package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
)

var sendCmd = &cobra.Command{
	Use:   "send [recipient]",
	Short: "Send the welcome message",
	Long: `Sign in if needed, discover the mail service, and send the welcome
message to recipient. Without a recipient the message is sent to the
signed-in account.

Examples:
  o365connect send
  o365connect send alex@contoso.com
  o365connect send "Alex Wilber <alex@contoso.com>" --subject "Hello"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSend,
}

var sendSubject string

func init() {
	sendCmd.Flags().StringVarP(&sendSubject, "subject", "s", "", "Subject line (defaults to the configured subject)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	if newFlow == nil || authCoordinator == nil {
		return errors.New("connect flow not configured")
	}
	if mailTemplate == nil {
		return errors.New("mail template not configured")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := requirePromptable(ctx); err != nil {
		return friendly(err)
	}

	flow := newFlow(async.Inline{})
	ready, err := runFlowToReady(ctx, cmd, flow)
	if err != nil {
		return err
	}

	recipient := ""
	if len(args) > 0 {
		recipient = strings.TrimSpace(args[0])
	} else if ready.Identity != nil {
		recipient = ready.Identity.DisplayableID
	}

	subject := sendSubject
	if subject == "" {
		subject = mailTemplate.Subject
	}
	body, err := mailTemplate.Render(ready.Identity)
	if err != nil {
		return friendly(err)
	}

	if err := flow.Send(ctx, recipient, subject, body); err != nil {
		return friendly(err)
	}
	ev, err := flow.Await(ctx, domain.StateSent, domain.StateSendError)
	if err != nil {
		return err
	}
	if ev.To == domain.StateSendError {
		return friendly(ev.Err)
	}

	cmd.Printf("Check your inbox: message sent to %s\n", recipient)
	if ev.MessageID != "" {
		cmd.Printf("Request ID: %s\n", ev.MessageID)
	}
	return nil
}
