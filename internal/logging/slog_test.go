package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	result := WithOperation(logger, "auth.exchange")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestWithComponent(t *testing.T) {
	logger := slog.Default()
	result := WithComponent(logger, "tokenstore")
	if result == nil {
		t.Error("WithComponent returned nil")
	}
}

func TestOperationAttr(t *testing.T) {
	attr := Operation("backend.query")
	if attr.Key != KeyOperation {
		t.Errorf("Operation key = %q, want %q", attr.Key, KeyOperation)
	}
	if attr.Value.String() != "backend.query" {
		t.Errorf("Operation value = %q, want %q", attr.Value.String(), "backend.query")
	}
}

func TestEndpointAttr(t *testing.T) {
	attr := Endpoint("auto_respond")
	if attr.Key != KeyEndpoint {
		t.Errorf("Endpoint key = %q, want %q", attr.Key, KeyEndpoint)
	}
	if attr.Value.String() != "auto_respond" {
		t.Errorf("Endpoint value = %q, want %q", attr.Value.String(), "auto_respond")
	}
}

func TestStatusAttr(t *testing.T) {
	attr := Status(StatusSuccess)
	if attr.Key != KeyStatus {
		t.Errorf("Status key = %q, want %q", attr.Key, KeyStatus)
	}
	if attr.Value.String() != "success" {
		t.Errorf("Status value = %q, want %q", attr.Value.String(), "success")
	}
}

func TestSinceHourAttr(t *testing.T) {
	attr := SinceHour(9)
	if attr.Key != KeySinceHour {
		t.Errorf("SinceHour key = %q, want %q", attr.Key, KeySinceHour)
	}
	if attr.Value.Int64() != 9 {
		t.Errorf("SinceHour value = %d, want 9", attr.Value.Int64())
	}
}

func TestErrAttr(t *testing.T) {
	err := errors.New("upsert failed")
	attr := Err(err)
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "upsert failed" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "upsert failed")
	}
}

func TestErrAttrNil(t *testing.T) {
	attr := Err(nil)
	// A nil error must produce an attribute slog omits from output
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty", attr.Key)
	}
}

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		empty bool
	}{
		{"regular email", "sarah@example.com", false},
		{"empty email", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnonymizeEmail(tt.email)
			if tt.empty {
				if got != "" {
					t.Errorf("AnonymizeEmail(%q) = %q, want empty", tt.email, got)
				}
				return
			}
			if !strings.HasPrefix(got, "user:") {
				t.Errorf("AnonymizeEmail(%q) = %q, want user: prefix", tt.email, got)
			}
			if strings.Contains(got, tt.email) {
				t.Errorf("AnonymizeEmail(%q) leaked the raw email", tt.email)
			}
		})
	}
}

func TestAnonymizeEmailStable(t *testing.T) {
	a := AnonymizeEmail("sarah@example.com")
	b := AnonymizeEmail("sarah@example.com")
	if a != b {
		t.Errorf("AnonymizeEmail is not stable: %q != %q", a, b)
	}
	c := AnonymizeEmail("other@example.com")
	if a == c {
		t.Error("AnonymizeEmail produced the same hash for different emails")
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty token", "", "<empty>"},
		{"short token", "abc", "[token:3 chars]"},
		{"access token", "ya29.a0AfB_byC", "[token:15 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeToken(tt.token); got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}
