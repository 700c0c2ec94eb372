// Package oauth runs the browser half of the Azure AD sign-in: a loopback
// HTTP server that receives the authorization code redirect.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/custodia-labs/o365connect/internal/connectors/microsoft"
	"github.com/custodia-labs/o365connect/internal/logger"
)

// ErrStateMismatch indicates the redirect carried a state this server did not
// issue.
var ErrStateMismatch = errors.New("oauth: state mismatch")

// ErrTimeout indicates no redirect arrived in time.
var ErrTimeout = errors.New("oauth: timed out waiting for authorization")

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html><head><title>o365connect</title></head>
<body style="font-family: sans-serif; margin: 3em;">
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
</body></html>`))

type callbackResult struct {
	code string
	err  error
}

// CallbackServer receives one authorization redirect.
type CallbackServer struct {
	addr  string
	path  string
	state string

	listener net.Listener
	server   *http.Server
	result   chan callbackResult
	once     sync.Once
}

// NewCallbackServer creates a server for addr (host:port) that accepts a
// redirect on path carrying state.
func NewCallbackServer(addr, path, state string) *CallbackServer {
	if path == "" {
		path = "/"
	}
	return &CallbackServer{
		addr:   addr,
		path:   path,
		state:  state,
		result: make(chan callbackResult, 1),
	}
}

// Start begins listening.
func (s *CallbackServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("oauth: callback server stopped: %v", err)
		}
	}()
	logger.Debug("oauth: listening on %s", s.RedirectURI())
	return nil
}

// Stop shuts the server down.
func (s *CallbackServer) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}

// RedirectURI returns the URI the server is listening on.
func (s *CallbackServer) RedirectURI() string {
	addr := s.addr
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	return "http://" + addr + s.path
}

// WaitForCode blocks until a redirect arrives, ctx is done, or timeout
// elapses.
func (s *CallbackServer) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-s.result:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", ErrTimeout
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// A redirect for some other sign-in must not end this one.
	if q.Get("state") != s.state {
		w.WriteHeader(http.StatusBadRequest)
		_ = resultPage.Execute(w, map[string]string{
			"Title":   "Sign-in failed",
			"Message": ErrStateMismatch.Error(),
		})
		return
	}

	var res callbackResult
	switch {
	case q.Get("error") != "":
		res.err = &microsoft.AuthorizationError{
			Code:        q.Get("error"),
			Description: q.Get("error_description"),
		}
	case q.Get("code") == "":
		res.err = errors.New("oauth: redirect carried no authorization code")
	default:
		res.code = q.Get("code")
	}

	if res.err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = resultPage.Execute(w, map[string]string{
			"Title":   "Sign-in failed",
			"Message": res.err.Error(),
		})
	} else {
		_ = resultPage.Execute(w, map[string]string{
			"Title":   "Signed in",
			"Message": "You can close this window and return to o365connect.",
		})
	}

	// Only the first redirect counts.
	s.once.Do(func() { s.result <- res })
}
