package prefs

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

// RESTStore reads and writes preferences through the identity provider's
// user-metadata endpoint. A user with no saved metadata gets Defaults().
type RESTStore struct {
	baseURL string
	client  *http.Client
}

func NewRESTStore(baseURL string) *RESTStore {
	return &RESTStore{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type metadataEnvelope struct {
	Metadata struct {
		Timezone  *string `json:"timezone"`
		SinceHour *int    `json:"since_hour"`
	} `json:"user_metadata"`
}

func (s *RESTStore) Get(ctx context.Context, userID string) (Preference, error) {
	endpoint := s.baseURL + "/api/user_metadata?user_id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Preference{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Preference{}, fmt.Errorf("failed to fetch preferences: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Defaults(), nil
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return Preference{}, fmt.Errorf("metadata endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}

	var envelope metadataEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Preference{}, fmt.Errorf("failed to decode preferences: %w", err)
	}

	// Saved metadata may predate either field.
	pref := Defaults()
	if envelope.Metadata.Timezone != nil && *envelope.Metadata.Timezone != "" {
		pref.Timezone = *envelope.Metadata.Timezone
	}
	if envelope.Metadata.SinceHour != nil {
		pref.SinceHour = *envelope.Metadata.SinceHour
	}
	return pref, nil
}

func (s *RESTStore) Put(ctx context.Context, userID string, pref Preference) error {
	if err := pref.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(struct {
		UserID   string     `json:"user_id"`
		Metadata Preference `json:"user_metadata"`
	}{UserID: userID, Metadata: pref})
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	endpoint := s.baseURL + "/api/user_metadata"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("metadata endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
