package microsoft

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/o365connect/internal/core/domain"
)

// Error types for Office 365 REST and Azure AD responses.
var (
	// ErrUnauthorised indicates the access token is invalid or expired.
	ErrUnauthorised = errors.New("microsoft: unauthorised")

	// ErrForbidden indicates the user lacks permission for the requested resource.
	ErrForbidden = errors.New("microsoft: forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("microsoft: not found")

	// ErrRateLimited indicates the request was throttled.
	ErrRateLimited = errors.New("microsoft: rate limited")

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = errors.New("microsoft: bad request")

	// ErrServerError indicates a server-side error.
	ErrServerError = errors.New("microsoft: server error")

	// ErrUnexpectedStatus covers any other non-success status.
	ErrUnexpectedStatus = errors.New("microsoft: unexpected status")
)

// WrapError converts an HTTP status code to an appropriate error.
// Success codes return nil.
func WrapError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorised
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		if statusCode >= 500 {
			return ErrServerError
		}
		if statusCode >= 300 {
			return ErrUnexpectedStatus
		}
		return nil
	}
}

// IsUnauthorised checks if the status code indicates an authentication failure.
func IsUnauthorised(statusCode int) bool {
	return statusCode == http.StatusUnauthorized
}

// IsRateLimited checks if the status code indicates rate limiting.
func IsRateLimited(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests
}

// serviceError is the OData error envelope returned by Office 365 endpoints.
type serviceError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ResponseError builds the error for a non-success response. It matches
// domain.ErrTransport and the WrapError sentinel for the status, and carries
// the service's error code and message when the body has them.
func ResponseError(op string, resp *http.Response) error {
	detail := readErrorDetail(resp.Body)
	if detail != "" {
		return fmt.Errorf("%s: status %d: %w: %w: %s",
			op, resp.StatusCode, domain.ErrTransport, WrapError(resp.StatusCode), detail)
	}
	return fmt.Errorf("%s: status %d: %w: %w", op, resp.StatusCode, domain.ErrTransport, WrapError(resp.StatusCode))
}

func readErrorDetail(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}

	var envelope serviceError
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Code != "" {
		if envelope.Error.Message == "" {
			return envelope.Error.Code
		}
		return envelope.Error.Code + ": " + envelope.Error.Message
	}
	return strings.TrimSpace(string(data))
}
