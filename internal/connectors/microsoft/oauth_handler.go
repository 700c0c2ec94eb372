package microsoft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenSet is what Azure AD returns for one resource audience.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Resource     string
	Expiry       time.Time
}

// OAuthHandler speaks the Azure AD v1 authorization code flow. Each token is
// issued for a single resource, named by the "resource" parameter.
type OAuthHandler struct {
	app        AppConfig
	httpClient *http.Client
	limiter    *RateLimiter
}

// NewOAuthHandler creates a handler for app.
func NewOAuthHandler(app AppConfig) *OAuthHandler {
	return &OAuthHandler{
		app:        app,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    NewRateLimiter(ServiceToken),
	}
}

// AuthURL returns the authority's authorize endpoint.
func (h *OAuthHandler) AuthURL() string {
	return h.app.authority() + "/oauth2/authorize"
}

// TokenURL returns the authority's token endpoint.
func (h *OAuthHandler) TokenURL() string {
	return h.app.authority() + "/oauth2/token"
}

func (h *OAuthHandler) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    h.app.ClientID,
		RedirectURL: h.app.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   h.AuthURL(),
			TokenURL:  h.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// BuildAuthURL constructs the authorize URL for resource with a PKCE
// challenge derived from verifier.
func (h *OAuthHandler) BuildAuthURL(resource, state, verifier string) string {
	return h.oauthConfig().AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("resource", resource),
		// Azure AD: response_mode=query for easier code extraction
		oauth2.SetAuthURLParam("response_mode", "query"),
	)
}

// ExchangeCode exchanges an authorization code for tokens for resource.
func (h *OAuthHandler) ExchangeCode(ctx context.Context, code, verifier, resource string) (*TokenSet, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	tok, err := h.oauthConfig().Exchange(ctx, code,
		oauth2.VerifierOption(verifier),
		oauth2.SetAuthURLParam("resource", resource),
	)
	if err != nil {
		return nil, describeTokenError("exchange code", err)
	}

	set := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Resource:     resource,
		Expiry:       tok.Expiry,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		set.IDToken = idToken
	}
	return set, nil
}

// RefreshToken redeems refreshToken for an access token for resource.
// Azure AD refresh tokens are valid across resources in the same tenant,
// which is what lets the app switch audience without prompting.
func (h *OAuthHandler) RefreshToken(ctx context.Context, refreshToken, resource string) (*TokenSet, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := refreshAzureToken(ctx, h.httpClient, h.limiter, h.TokenURL(), h.app.ClientID, refreshToken, resource)
	if err != nil {
		return nil, err
	}

	// Azure AD may not rotate the refresh token
	newRefreshToken := resp.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}

	return &TokenSet{
		AccessToken:  resp.AccessToken,
		RefreshToken: newRefreshToken,
		IDToken:      resp.IDToken,
		Resource:     resource,
		Expiry:       resp.expiry(time.Now()),
	}, nil
}

// SetupHint returns guidance for registering the Azure AD application.
func (h *OAuthHandler) SetupHint() string {
	return "Register a native client app at portal.azure.com > App registrations, " +
		"grant it Office 365 Exchange Online 'Send mail as a user', " +
		"and add " + DefaultRedirectURI + " as a redirect URI"
}

// tokenResponse is the Azure AD v1 token endpoint body. v1 reports
// expires_in as a string.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	IDToken      string      `json:"id_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    json.Number `json:"expires_in"`
	Resource     string      `json:"resource"`

	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (t *tokenResponse) expiry(now time.Time) time.Time {
	secs, err := t.ExpiresIn.Int64()
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(secs) * time.Second)
}

// refreshAzureToken posts a refresh_token grant including the resource
// parameter, which oauth2.TokenSource cannot send.
func refreshAzureToken(
	ctx context.Context,
	client *http.Client,
	limiter *RateLimiter,
	tokenURL, clientID, refreshToken, resource string,
) (*tokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", clientID)
	data.Set("refresh_token", refreshToken)
	data.Set("resource", resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token refresh request: %w", err)
	}
	defer resp.Body.Close()
	limiter.Observe(resp)

	var tokenResp tokenResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&tokenResp)

	if resp.StatusCode != http.StatusOK {
		if tokenResp.ErrorCode != "" {
			return nil, fmt.Errorf("token refresh failed with status %d: %s: %s",
				resp.StatusCode, tokenResp.ErrorCode, tokenResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token refresh failed with status %d: %w", resp.StatusCode, WrapError(resp.StatusCode))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode token response: %w", decodeErr)
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New("token refresh response has no access token")
	}

	return &tokenResp, nil
}

// describeTokenError flattens an oauth2.RetrieveError into the Azure AD error
// code and description.
func describeTokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode != "" {
		return fmt.Errorf("%s: %s: %s", op, re.ErrorCode, re.ErrorDescription)
	}
	return fmt.Errorf("%s: %w", op, err)
}
