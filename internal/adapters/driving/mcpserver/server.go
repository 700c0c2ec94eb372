// Package mcpserver exposes connect, discovery and send as Model Context
// Protocol tools so an assistant can drive the same session as the CLI.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
	"github.com/custodia-labs/o365connect/internal/logger"
)

// Composer builds the subject and HTML body for the signed-in user.
type Composer func(identity *domain.Identity) (subject, body string, err error)

// Server holds one connect flow for the lifetime of the MCP session. Tool
// calls are serialised.
type Server struct {
	auth      driving.AuthCoordinator
	discovery driving.DiscoveryCoordinator
	flow      driving.ConnectFlow
	compose   Composer

	mu  sync.Mutex
	mcp *mcp.Server
}

// StatusInput is the connect_status arguments.
type StatusInput struct{}

// StatusOutput is the connect_status result.
type StatusOutput struct {
	Connected bool   `json:"connected" jsonschema:"whether a session is stored"`
	State     string `json:"state" jsonschema:"current connect flow state"`
	User      string `json:"user,omitempty" jsonschema:"signed-in account, once connected in this session"`
}

// DiscoverInput is the discover_service arguments.
type DiscoverInput struct {
	Capability string `json:"capability" jsonschema:"case-sensitive capability name such as Mail, Calendar, Contacts or MyFiles"`
}

// DiscoverOutput is the discover_service result.
type DiscoverOutput struct {
	Capability  string `json:"capability"`
	ServiceName string `json:"serviceName,omitempty"`
	EndpointURI string `json:"endpointUri"`
	ResourceID  string `json:"resourceId"`
}

// SendInput is the send_mail arguments.
type SendInput struct {
	To      string `json:"to,omitempty" jsonschema:"recipient address; defaults to the signed-in account"`
	Subject string `json:"subject,omitempty" jsonschema:"subject line; defaults to the welcome subject"`
}

// SendOutput is the send_mail result.
type SendOutput struct {
	To        string `json:"to"`
	MessageID string `json:"messageId,omitempty"`
}

// New creates a server over flow, which must apply results inline.
func New(
	version string,
	auth driving.AuthCoordinator,
	discovery driving.DiscoveryCoordinator,
	flow driving.ConnectFlow,
	compose Composer,
) *Server {
	s := &Server{auth: auth, discovery: discovery, flow: flow, compose: compose}

	server := mcp.NewServer(&mcp.Implementation{Name: "o365connect", Version: version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "connect_status",
		Description: "Report whether an Office 365 session is stored and the current connection state.",
	}, s.handleStatus)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "discover_service",
		Description: "Sign in if needed and return the endpoint and resource id for an Office 365 capability.",
	}, s.handleDiscover)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_mail",
		Description: "Sign in if needed and send the welcome message through Outlook.",
	}, s.handleSend)
	s.mcp = server
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves over stdin and stdout until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	logger.Info("mcp: serving on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handleStatus(
	ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	connected, err := s.auth.IsConnected(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	ev := s.flow.Snapshot()
	out := StatusOutput{Connected: connected, State: ev.To.String()}
	if ev.Identity != nil {
		out.User = ev.Identity.DisplayableID
	}
	return nil, out, nil
}

func (s *Server) handleDiscover(
	ctx context.Context, _ *mcp.CallToolRequest, in DiscoverInput,
) (*mcp.CallToolResult, DiscoverOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Capability == "" {
		return nil, DiscoverOutput{}, fmt.Errorf("%w: capability is required", domain.ErrInvalidInput)
	}
	if _, err := s.ensureReady(ctx); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, DiscoverOutput{}, err
	}

	svc, err := s.discovery.GetServiceInfo(ctx, domain.Capability(in.Capability)).Await(ctx)
	if err != nil {
		return nil, DiscoverOutput{}, err
	}
	return nil, DiscoverOutput{
		Capability:  string(svc.Capability),
		ServiceName: svc.ServiceName,
		EndpointURI: svc.EndpointURI,
		ResourceID:  svc.ResourceID,
	}, nil
}

func (s *Server) handleSend(
	ctx context.Context, _ *mcp.CallToolRequest, in SendInput,
) (*mcp.CallToolResult, SendOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ready, err := s.ensureReady(ctx)
	if err != nil {
		return nil, SendOutput{}, err
	}

	to := in.To
	if to == "" && ready.Identity != nil {
		to = ready.Identity.DisplayableID
	}
	subject, body, err := s.compose(ready.Identity)
	if err != nil {
		return nil, SendOutput{}, err
	}
	if in.Subject != "" {
		subject = in.Subject
	}

	if err := s.flow.Send(ctx, to, subject, body); err != nil {
		return nil, SendOutput{}, err
	}
	ev, err := s.flow.Await(ctx, domain.StateSent, domain.StateSendError)
	if err != nil {
		return nil, SendOutput{}, err
	}
	if ev.To == domain.StateSendError {
		return nil, SendOutput{}, ev.Err
	}
	return nil, SendOutput{To: to, MessageID: string(ev.MessageID)}, nil
}

// ensureReady drives the flow to a state from which mail can be sent.
func (s *Server) ensureReady(ctx context.Context) (domain.FlowEvent, error) {
	ev := s.flow.Snapshot()
	switch ev.To {
	case domain.StateReady, domain.StateSent, domain.StateSendError:
		return ev, nil
	case domain.StateDiscoverError:
		if err := s.flow.Discover(ctx); err != nil {
			return ev, err
		}
	default:
		if err := s.flow.Connect(ctx); err != nil {
			return ev, err
		}
	}

	ev, err := s.flow.Await(ctx, domain.StateReady, domain.StateConnectError, domain.StateDiscoverError)
	if err != nil {
		return ev, err
	}
	if ev.To.IsError() {
		return ev, ev.Err
	}
	return ev, nil
}
