// Package auth implements the sign-in flow against the identity provider.
//
// The flow is an explicit ordered pipeline with three named stages, invoked
// synchronously by the authentication handler:
//
//	exchange -> persist -> project
//
// Exchange swaps the authorization code for the provider's token bundle.
// Persist resolves a stable user key and upserts the delegated credential;
// a missing key denies the sign-in, while a failed upsert is logged and
// tolerated. Project copies the token pair into the signed session artifact.
//
// Offline access and forced re-consent are requested so that every sign-in
// yields a refresh token for the backend processing service.
package auth
