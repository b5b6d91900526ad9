// Package session bridges delegated credentials into the client-visible
// session artifact.
//
// The bridge copies exactly two fields out of a stored credential, the
// access token and the refresh token, into a signed JWT with its own
// expiry. The mailbox token's identity assertion (id_token) and raw scope
// strings never cross into the session. The bridge is a value carrier: it
// does not re-validate mailbox token expiry, so a consumer may observe an
// expired-token error from the backend at call time.
package session
