package auth

import (
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested at sign-in: basic identity plus mailbox modify access for
// the backend processing service.
var Scopes = []string{
	"openid",
	"email",
	"profile",
	"https://www.googleapis.com/auth/gmail.modify",
}

// NewOAuthConfig returns the OAuth2 configuration for the identity provider.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}

// AuthCodeURL builds the consent URL for the given CSRF state. Offline
// access and forced consent ensure a refresh token is issued on every
// sign-in, not only the first.
func AuthCodeURL(config *oauth2.Config, state string) string {
	return config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Bundle is the provider's returned account bundle after a successful
// authorization-code exchange.
type Bundle struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	TokenType    string
	IDToken      string
}

// bundleFromToken converts the provider token into a Bundle, pulling the
// identity assertion and granted scope out of the extra fields.
func bundleFromToken(t *oauth2.Token) Bundle {
	b := Bundle{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
		TokenType:    t.TokenType,
	}
	if idToken, ok := t.Extra("id_token").(string); ok {
		b.IDToken = idToken
	}
	if scope, ok := t.Extra("scope").(string); ok {
		b.Scope = scope
	}
	if b.ExpiresAt.IsZero() {
		// Some provider responses carry an absolute expires_at in epoch
		// seconds instead of expires_in.
		if sec, ok := t.Extra("expires_at").(float64); ok && sec > 0 {
			b.ExpiresAt = ExpiresAtFromEpoch(int64(sec))
		}
	}
	return b
}

// ExpiresAtFromEpoch converts a provider-reported expiry in seconds since
// epoch to an absolute timestamp.
func ExpiresAtFromEpoch(sec int64) time.Time {
	return time.Unix(sec, 0)
}
