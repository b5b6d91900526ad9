package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeRoundTrip(t *testing.T) {
	bridge, err := NewBridge([]byte("test-secret"))
	require.NoError(t, err)

	signed, err := bridge.Issue("sarah@example.com", "access-token", "refresh-token")
	require.NoError(t, err)

	sess, err := bridge.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "sarah@example.com", sess.Email)
	assert.Equal(t, "access-token", sess.AccessToken)
	assert.Equal(t, "refresh-token", sess.RefreshToken)
}

func TestBridgeNeverExposesIdentityAssertion(t *testing.T) {
	bridge, err := NewBridge([]byte("test-secret"))
	require.NoError(t, err)

	signed, err := bridge.Issue("sarah@example.com", "access-token", "refresh-token")
	require.NoError(t, err)

	// Decode the payload without verification and check the claim set
	// contains nothing beyond the projected token pair and registered claims.
	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &m))
	assert.NotContains(t, m, "id_token")
	assert.NotContains(t, m, "scope")
	for key := range m {
		switch key {
		case "access_token", "refresh_token", "sub", "iat", "exp":
		default:
			t.Errorf("unexpected session claim %q", key)
		}
	}
}

func TestBridgeRejectsTamperedToken(t *testing.T) {
	bridge, err := NewBridge([]byte("test-secret"))
	require.NoError(t, err)
	other, err := NewBridge([]byte("other-secret"))
	require.NoError(t, err)

	signed, err := other.Issue("sarah@example.com", "access", "")
	require.NoError(t, err)

	_, err = bridge.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestBridgeExpiryIsIndependentOfMailboxToken(t *testing.T) {
	bridge, err := NewBridgeWithTTL([]byte("test-secret"), time.Hour)
	require.NoError(t, err)

	issuedAt := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	bridge.now = func() time.Time { return issuedAt }

	signed, err := bridge.Issue("sarah@example.com", "access", "refresh")
	require.NoError(t, err)

	// Still valid inside the session TTL.
	bridge.now = func() time.Time { return issuedAt.Add(30 * time.Minute) }
	_, err = bridge.Parse(signed)
	require.NoError(t, err)

	// Expired after the session TTL regardless of the mailbox token.
	bridge.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = bridge.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestBridgeEmptySubject(t *testing.T) {
	bridge, err := NewBridge([]byte("test-secret"))
	require.NoError(t, err)

	_, err = bridge.Issue("", "access", "refresh")
	assert.Error(t, err)
}

func TestNewBridgeEmptySecret(t *testing.T) {
	_, err := NewBridge(nil)
	assert.Error(t, err)
}
