// Package microsoft provides Azure AD sign-in and shared plumbing for the
// Office 365 REST endpoints.
//
// This package provides:
//   - Azure AD v1 authorization code flow with PKCE (OAuthHandler)
//   - IdentityProvider, the interactive and silent token acquisition port
//   - id_token claim parsing
//   - Rate limiting and error mapping for Office 365 responses
//   - Client, an HTTP client that signs requests with a bearer token
//
// # Resources
//
// Azure AD v1 issues each access token for a single resource, named by the
// "resource" parameter rather than by scopes:
//   - Discovery: https://api.office.com/discovery/
//   - Mail: the serviceResourceId returned by discovery, e.g.
//     https://outlook.office365.com/
//
// The refresh token from the first sign-in can be redeemed for any resource
// in the same tenant, so switching resource never prompts again.
//
// # Endpoints
//
//   - Authorize: https://login.microsoftonline.com/common/oauth2/authorize
//   - Token: https://login.microsoftonline.com/common/oauth2/token
//
// The discovery and outlook subpackages build on Client.
package microsoft
