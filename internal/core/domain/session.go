package domain

import "time"

// Identity is the signed-in account returned by a successful token acquisition.
type Identity struct {
	// UserID is the stable object id of the account. Empty means the provider
	// reported success without a usable organisational account.
	UserID string
	// DisplayableID is the sign-in name (UPN or email).
	DisplayableID string
	GivenName     string
	FamilyName    string
	TenantID      string

	// Resource is the audience AccessToken was issued for.
	Resource    string
	AccessToken string
	ExpiresOn   time.Time
}

// HasAccount reports whether the identity carries a usable account.
func (i *Identity) HasAccount() bool {
	return i != nil && i.UserID != ""
}

// Expired reports whether the access token is past its expiry.
func (i *Identity) Expired(now time.Time) bool {
	if i == nil || i.AccessToken == "" {
		return true
	}
	if i.ExpiresOn.IsZero() {
		return false
	}
	return !now.Before(i.ExpiresOn)
}

// TokenCacheEntry is what the identity provider persists between runs so a
// later process can acquire tokens silently.
type TokenCacheEntry struct {
	UserID       string
	Resource     string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
}

// MessageID identifies a message accepted by the mail service.
type MessageID string

// OutboundMessage is a single-recipient HTML message, built fresh per send.
type OutboundMessage struct {
	Recipient string
	Subject   string
	HTMLBody  string
}
