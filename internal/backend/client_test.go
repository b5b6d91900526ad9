package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testQuery = Query{UserEmail: "sarah@example.com", Timezone: "Europe/Berlin", SinceHour: 9}

func TestRepliesDecodesResultMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auto_respond", r.URL.Path)
		assert.Equal(t, "sarah@example.com", r.URL.Query().Get("user_email"))
		assert.Equal(t, "Europe/Berlin", r.URL.Query().Get("timezone"))
		assert.Equal(t, "9", r.URL.Query().Get("since_hour"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]ReplyCandidate{
				"msg-1": {
					Sender:                  "alice@example.com",
					NeedsReply:              true,
					ClassificationRationale: "direct question",
					Draft:                   "Hi Alice,",
				},
				"msg-2": {
					Sender:     "newsletter@example.com",
					NeedsReply: false,
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	replies, err := client.Replies(context.Background(), testQuery)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.True(t, replies["msg-1"].NeedsReply)
	assert.Equal(t, "Hi Alice,", replies["msg-1"].Draft)
	assert.False(t, replies["msg-2"].NeedsReply)
}

func TestRepliesMissingResultKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	replies, err := client.Replies(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestSummarizeParsedArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/summarize", r.URL.Path)
		_, _ = w.Write([]byte(`{"summary": [{"category": "Work", "points": ["standup moved", "review due"]}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	groups, err := client.Summarize(context.Background(), testQuery)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Work", groups[0].Category)
	assert.Equal(t, []string{"standup moved", "review due"}, groups[0].Points)
}

func TestSummarizeDoubleEncoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// The processing service sometimes serializes the summary as a
		// JSON string instead of an array.
		_, _ = w.Write([]byte(`{"summary": "[{\"category\": \"Personal\", \"points\": [\"dinner friday\"]}]"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	groups, err := client.Summarize(context.Background(), testQuery)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Personal", groups[0].Category)
	assert.Equal(t, []string{"dinner friday"}, groups[0].Points)
}

func TestSummarizeNullSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"summary": null}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	groups, err := client.Summarize(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestReceivedCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/received_count", r.URL.Path)
		_, _ = w.Write([]byte(`{"count": 42}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	count, err := client.ReceivedCount(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestSendEmailSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/send_email", r.URL.Path)

		var req SendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sarah@example.com", req.UserEmail)
		assert.Equal(t, "alice@example.com", req.To)
		assert.Equal(t, "Re: lunch", req.Subject)
		assert.Equal(t, "Sounds good!", req.Message)

		_, _ = w.Write([]byte(`{"message_id": "gmail-abc123"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	messageID, err := client.SendEmail(context.Background(), SendRequest{
		UserEmail: "sarah@example.com",
		To:        "alice@example.com",
		Subject:   "Re: lunch",
		Message:   "Sounds good!",
	})
	require.NoError(t, err)
	assert.Equal(t, "gmail-abc123", messageID)
}

func TestSendEmailSurfacesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail": "gmail API quota exceeded for user"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	_, err := client.SendEmail(context.Background(), SendRequest{UserEmail: "sarah@example.com"})
	require.Error(t, err)

	var backendErr *Error
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusBadGateway, backendErr.StatusCode)
	// The detail must come through word for word.
	assert.Equal(t, "gmail API quota exceeded for user", backendErr.Detail)
	assert.Equal(t, "gmail API quota exceeded for user", backendErr.Error())
}

func TestQueryErrorWithoutDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`oops`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	_, err := client.Replies(context.Background(), testQuery)
	require.Error(t, err)

	var backendErr *Error
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusInternalServerError, backendErr.StatusCode)
	assert.Equal(t, "oops", backendErr.Detail)
}
