package backend

import (
	"encoding/json"
	"fmt"
)

// ReplyCandidate is one classified inbound message with its suggested
// draft reply.
type ReplyCandidate struct {
	Sender                  string `json:"sender"`
	NeedsReply              bool   `json:"needs_reply"`
	ClassificationRationale string `json:"classification_rationale"`
	Draft                   string `json:"draft"`
}

// SummaryGroup is one category of the daily summary with its bullet
// points.
type SummaryGroup struct {
	Category string   `json:"category"`
	Points   []string `json:"points"`
}

// repliesEnvelope wraps the candidate map under a "result" key.
type repliesEnvelope struct {
	Result map[string]ReplyCandidate `json:"result"`
}

// summaryEnvelope wraps the summary groups. The summary value arrives
// either as a parsed array or as a JSON string that needs a second
// decode, depending on how the processing service serialized it.
type summaryEnvelope struct {
	Summary summaryPayload `json:"summary"`
}

type summaryPayload struct {
	Groups []SummaryGroup
}

func (p *summaryPayload) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		p.Groups = nil
		return nil
	}

	if data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return fmt.Errorf("failed to decode summary string: %w", err)
		}
		if encoded == "" {
			p.Groups = nil
			return nil
		}
		if err := json.Unmarshal([]byte(encoded), &p.Groups); err != nil {
			return fmt.Errorf("failed to decode embedded summary: %w", err)
		}
		return nil
	}

	if err := json.Unmarshal(data, &p.Groups); err != nil {
		return fmt.Errorf("failed to decode summary: %w", err)
	}
	return nil
}

// countEnvelope wraps the received-count value.
type countEnvelope struct {
	Count int `json:"count"`
}

// sendEnvelope is the send endpoint's success body.
type sendEnvelope struct {
	MessageID string `json:"message_id"`
}

// errorEnvelope is the error body shared by all endpoints.
type errorEnvelope struct {
	Detail string `json:"detail"`
}

// Error carries the processing service's failure detail so the caller
// can surface it unchanged.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("backend request failed with status %d", e.StatusCode)
}
