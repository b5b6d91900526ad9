package tokenstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RESTStore posts credentials to the hosted upsert endpoint as JSON.
// The endpoint responds 200 on success or 5xx with an error message.
type RESTStore struct {
	baseURL string
	client  *http.Client
}

// NewRESTStore creates a store that talks to the hosted token endpoint.
func NewRESTStore(baseURL string) *RESTStore {
	return &RESTStore{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type storeError struct {
	Error string `json:"error"`
}

// Upsert sends the credential to the store_token endpoint.
func (s *RESTStore) Upsert(ctx context.Context, cred Credential) error {
	body, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	endpoint := s.baseURL + "/api/store_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var detail storeError
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error != "" {
			return fmt.Errorf("token store returned status %d: %s", resp.StatusCode, detail.Error)
		}
		return fmt.Errorf("token store returned status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// Get fetches the credential for a user from the hosted store.
func (s *RESTStore) Get(ctx context.Context, userID string) (Credential, error) {
	endpoint := s.baseURL + "/api/store_token?user_id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to fetch credential: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Credential{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return Credential{}, fmt.Errorf("token store returned status %d: %s", resp.StatusCode, string(raw))
	}

	var cred Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return Credential{}, fmt.Errorf("failed to decode credential: %w", err)
	}
	return cred, nil
}
