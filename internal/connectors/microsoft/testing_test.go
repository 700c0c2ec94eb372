package microsoft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/o365connect/internal/core/domain"
)

const testClientID = "6e3e0e8b-5b0b-4c5e-9f0e-3d7f0f2d9a11"

func makeIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func orgClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"oid":         "00000000-0000-0000-0000-0000000000aa",
		"tid":         "11111111-1111-1111-1111-111111111111",
		"upn":         "megan@contoso.onmicrosoft.com",
		"given_name":  "Megan",
		"family_name": "Bowen",
		"aud":         testClientID,
	}
}

// tokenServer fakes the Azure AD v1 token endpoint.
type tokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	forms    []url.Values
	idToken  string
	status   int
	errorRsp map[string]string
}

func newTokenServer(t *testing.T, idToken string) *tokenServer {
	t.Helper()
	ts := &tokenServer{idToken: idToken, status: http.StatusOK}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/oauth2/token" {
		http.NotFound(w, r)
		return
	}
	_ = r.ParseForm()

	ts.mu.Lock()
	ts.forms = append(ts.forms, r.PostForm)
	status, errorRsp, idToken := ts.status, ts.errorRsp, ts.idToken
	ts.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(errorRsp)
		return
	}

	resource := r.PostForm.Get("resource")
	body := map[string]string{
		"access_token":  "access-" + r.PostForm.Get("grant_type") + "-" + resource,
		"refresh_token": "refresh-2",
		"token_type":    "Bearer",
		"expires_in":    "3599",
		"resource":      resource,
	}
	if r.PostForm.Get("grant_type") == "authorization_code" {
		body["refresh_token"] = "refresh-1"
		body["id_token"] = idToken
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (ts *tokenServer) lastForm() url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.forms) == 0 {
		return nil
	}
	return ts.forms[len(ts.forms)-1]
}

func (ts *tokenServer) app() AppConfig {
	return AppConfig{
		ClientID:    testClientID,
		RedirectURI: "http://localhost:18080/callback",
		Authority:   ts.URL,
	}
}

// memoryTokenCache implements driven.TokenCache.
type memoryTokenCache struct {
	mu      sync.Mutex
	entries map[string]domain.TokenCacheEntry
}

func newMemoryTokenCache() *memoryTokenCache {
	return &memoryTokenCache{entries: make(map[string]domain.TokenCacheEntry)}
}

func (c *memoryTokenCache) Get(_ context.Context, userID string) (*domain.TokenCacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (c *memoryTokenCache) Put(_ context.Context, entry domain.TokenCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.UserID] = entry
	return nil
}

func (c *memoryTokenCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.TokenCacheEntry)
	return nil
}

// staticTokens implements driven.TokenSource.
type staticTokens string

func (s staticTokens) Token(_ context.Context) (string, error) { return string(s), nil }
