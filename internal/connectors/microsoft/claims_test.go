package microsoft

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDToken(t *testing.T) {
	claims, err := ParseIDToken(makeIDToken(t, orgClaims()))

	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-0000000000aa", claims.ObjectID)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", claims.TenantID)
	assert.Equal(t, "megan@contoso.onmicrosoft.com", claims.DisplayableID())
	assert.Equal(t, "Megan", claims.GivenName)
	assert.Equal(t, "Bowen", claims.FamilyName)
}

func TestParseIDToken_Invalid(t *testing.T) {
	_, err := ParseIDToken("")
	assert.Error(t, err)

	_, err = ParseIDToken("not-a-jwt")
	assert.Error(t, err)
}

func TestIDTokenClaims_DisplayableID(t *testing.T) {
	tests := []struct {
		name     string
		claims   IDTokenClaims
		expected string
	}{
		{"upn preferred", IDTokenClaims{UPN: "a@contoso.com", UniqueName: "b@contoso.com", Email: "c@contoso.com"}, "a@contoso.com"},
		{"unique name", IDTokenClaims{UniqueName: "live.com#b@outlook.com", Email: "c@outlook.com"}, "live.com#b@outlook.com"},
		{"email", IDTokenClaims{Email: "c@contoso.com"}, "c@contoso.com"},
		{"none", IDTokenClaims{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.claims.DisplayableID())
		})
	}
}

func TestIDTokenClaims_Identity(t *testing.T) {
	claims, err := ParseIDToken(makeIDToken(t, orgClaims()))
	require.NoError(t, err)
	expiry := time.Now().Add(time.Hour)

	identity := claims.Identity(&TokenSet{AccessToken: "at", Resource: DefaultDiscoveryResource, Expiry: expiry})

	assert.True(t, identity.HasAccount())
	assert.Equal(t, "at", identity.AccessToken)
	assert.Equal(t, DefaultDiscoveryResource, identity.Resource)
	assert.Equal(t, expiry, identity.ExpiresOn)
}

func TestIDTokenClaims_Identity_NoObjectID(t *testing.T) {
	claims, err := ParseIDToken(makeIDToken(t, jwt.MapClaims{"email": "someone@outlook.com"}))
	require.NoError(t, err)

	identity := claims.Identity(nil)

	assert.False(t, identity.HasAccount())
	assert.Equal(t, "someone@outlook.com", identity.DisplayableID)
}
