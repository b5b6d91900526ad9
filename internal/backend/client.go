package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mailbae/dashboard/internal/instrumentation"
	"github.com/mailbae/dashboard/internal/logging"
)

// Query identifies a windowed mailbox query: whose mailbox, in which
// timezone, and from which hour of the current day.
type Query struct {
	UserEmail string
	Timezone  string
	SinceHour int
}

// SendRequest is one outbound reply.
type SendRequest struct {
	UserEmail string `json:"user_email"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// Client talks to the mail-processing service.
type Client struct {
	baseURL string
	client  *http.Client
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewClient creates a client for the processing service at baseURL.
// metrics may be nil.
func NewClient(baseURL string, metrics *instrumentation.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		metrics: metrics,
		logger:  logging.WithComponent(logger, "backend"),
	}
}

// Replies fetches the auto-respond candidates for the query window,
// keyed by message id.
func (c *Client) Replies(ctx context.Context, q Query) (map[string]ReplyCandidate, error) {
	var envelope repliesEnvelope
	if err := c.query(ctx, instrumentation.EndpointAutoRespond, q, &envelope); err != nil {
		return nil, err
	}
	if envelope.Result == nil {
		return map[string]ReplyCandidate{}, nil
	}
	return envelope.Result, nil
}

// Summarize fetches the grouped daily summary for the query window.
func (c *Client) Summarize(ctx context.Context, q Query) ([]SummaryGroup, error) {
	var envelope summaryEnvelope
	if err := c.query(ctx, instrumentation.EndpointSummarize, q, &envelope); err != nil {
		return nil, err
	}
	return envelope.Summary.Groups, nil
}

// ReceivedCount fetches the number of messages received in the query
// window.
func (c *Client) ReceivedCount(ctx context.Context, q Query) (int, error) {
	var envelope countEnvelope
	if err := c.query(ctx, instrumentation.EndpointReceivedCount, q, &envelope); err != nil {
		return 0, err
	}
	return envelope.Count, nil
}

// SendEmail asks the processing service to send one reply and returns
// the provider message id. A non-2xx response surfaces the service's
// detail string unchanged via *Error.
func (c *Client) SendEmail(ctx context.Context, req SendRequest) (string, error) {
	ctx, span := instrumentation.StartBackendSpan(ctx, instrumentation.EndpointSendEmail)
	defer span.End()

	start := time.Now()
	messageID, err := c.sendEmail(ctx, req)
	duration := time.Since(start)

	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.metrics.RecordDraftSend(ctx, instrumentation.StatusError, duration)
		return "", err
	}
	instrumentation.SetSpanSuccess(span)
	c.metrics.RecordDraftSend(ctx, instrumentation.StatusSuccess, duration)
	return messageID, nil
}

func (c *Client) sendEmail(ctx context.Context, req SendRequest) (string, error) {
	httpReq, err := c.newRequest(ctx, "/api/send_email", nil, req)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach send endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeError(resp)
	}

	var envelope sendEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("failed to decode send response: %w", err)
	}

	c.logger.Info("reply sent",
		logging.Endpoint(instrumentation.EndpointSendEmail),
		logging.UserHash(req.UserEmail),
		slog.String("message_id", envelope.MessageID))
	return envelope.MessageID, nil
}

// query runs one windowed POST query and decodes the response into out.
func (c *Client) query(ctx context.Context, endpoint string, q Query, out interface{}) error {
	ctx, span := instrumentation.StartBackendSpan(ctx, endpoint)
	defer span.End()

	start := time.Now()
	err := c.doQuery(ctx, endpoint, q, out)
	duration := time.Since(start)

	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.metrics.RecordBackendQuery(ctx, endpoint, instrumentation.StatusError, duration)
		c.logger.Warn("backend query failed",
			logging.Endpoint(endpoint),
			logging.UserHash(q.UserEmail),
			logging.Err(err))
		return err
	}

	instrumentation.SetSpanSuccess(span)
	c.metrics.RecordBackendQuery(ctx, endpoint, instrumentation.StatusSuccess, duration)
	c.logger.Debug("backend query complete",
		logging.Endpoint(endpoint),
		logging.UserHash(q.UserEmail),
		logging.Duration(duration))
	return nil
}

func (c *Client) doQuery(ctx context.Context, endpoint string, q Query, out interface{}) error {
	params := url.Values{}
	params.Set("user_email", q.UserEmail)
	params.Set("timezone", q.Timezone)
	params.Set("since_hour", strconv.Itoa(q.SinceHour))

	req, err := c.newRequest(ctx, "/api/"+endpoint, params, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s endpoint: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// newRequest builds a POST request. The query endpoints carry their
// parameters in the URL; the send endpoint carries a JSON body.
func (c *Client) newRequest(ctx context.Context, path string, params url.Values, body interface{}) (*http.Request, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Detail != "" {
		return &Error{StatusCode: resp.StatusCode, Detail: envelope.Detail}
	}
	return &Error{StatusCode: resp.StatusCode, Detail: string(raw)}
}
