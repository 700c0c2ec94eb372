package microsoft

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/o365connect/internal/core/domain"
)

// IDTokenClaims are the Azure AD v1 id_token claims the app reads.
type IDTokenClaims struct {
	ObjectID   string `json:"oid"`
	TenantID   string `json:"tid"`
	UPN        string `json:"upn"`
	UniqueName string `json:"unique_name"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	jwt.RegisteredClaims
}

// ParseIDToken decodes the claims of an id_token without verifying its
// signature. The token comes straight from the token endpoint over TLS.
func ParseIDToken(raw string) (*IDTokenClaims, error) {
	if raw == "" {
		return nil, errors.New("id_token is empty")
	}
	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse id_token: %w", err)
	}
	return claims, nil
}

// DisplayableID returns the sign-in name, preferring the UPN.
func (c *IDTokenClaims) DisplayableID() string {
	switch {
	case c.UPN != "":
		return c.UPN
	case c.UniqueName != "":
		return c.UniqueName
	default:
		return c.Email
	}
}

// Identity builds a domain identity for tokens. A token without an object id
// yields an identity with no account.
func (c *IDTokenClaims) Identity(tokens *TokenSet) *domain.Identity {
	id := &domain.Identity{
		UserID:        c.ObjectID,
		DisplayableID: c.DisplayableID(),
		GivenName:     c.GivenName,
		FamilyName:    c.FamilyName,
		TenantID:      c.TenantID,
	}
	if tokens != nil {
		id.Resource = tokens.Resource
		id.AccessToken = tokens.AccessToken
		id.ExpiresOn = tokens.Expiry
	}
	return id
}
