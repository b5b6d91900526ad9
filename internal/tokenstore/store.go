package tokenstore

import (
	"context"
	"errors"
	"time"
)

// Credential is the durable record of a user's delegated mailbox access.
// It carries everything the backend processing service needs to act on the
// user's mailbox within the granted scopes.
type Credential struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
	TokenType    string    `json:"token_type"`
	IDToken      string    `json:"id_token"`
}

// ErrNotFound is returned by Get when no credential exists for a user.
var ErrNotFound = errors.New("credential not found")

// Store is the persistence contract for delegated credentials.
// Upsert replaces the whole record for the user; concurrent sign-ins for the
// same user are last-write-wins, there is no read-modify-write.
type Store interface {
	Upsert(ctx context.Context, cred Credential) error
	Get(ctx context.Context, userID string) (Credential, error)
}
