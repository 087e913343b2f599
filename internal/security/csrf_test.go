package security

import (
	"errors"
	"regexp"
	"testing"
)

func TestGenerateCSRFToken(t *testing.T) {
	token, err := GenerateCSRFToken()
	if err != nil {
		t.Fatalf("GenerateCSRFToken() error = %v, want nil", err)
	}

	// Token should be 64 characters (32 bytes * 2 hex chars per byte)
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64", len(token))
	}

	hexPattern := regexp.MustCompile(`^[a-f0-9]{64}$`)
	if !hexPattern.MatchString(token) {
		t.Errorf("token = %s, want valid hex string", token)
	}
}

func TestGenerateCSRFToken_Uniqueness(t *testing.T) {
	tokens := make(map[string]bool)

	for i := 0; i < 100; i++ {
		token, err := GenerateCSRFToken()
		if err != nil {
			t.Fatalf("GenerateCSRFToken() error = %v, want nil", err)
		}

		if tokens[token] {
			t.Errorf("GenerateCSRFToken() produced duplicate token on iteration %d", i)
		}
		tokens[token] = true
	}
}

func TestVerifyCSRFToken(t *testing.T) {
	tests := []struct {
		name    string
		cookie  string
		header  string
		wantErr bool
	}{
		{"match", "abc123", "abc123", false},
		{"mismatch", "abc123", "abc124", true},
		{"missing_header", "abc123", "", true},
		{"missing_cookie", "", "abc123", true},
		{"both_empty", "", "", true},
		{"prefix", "abc123", "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyCSRFToken(tt.cookie, tt.header)
			if tt.wantErr && !errors.Is(err, ErrInvalidCSRFToken) {
				t.Errorf("VerifyCSRFToken() = %v, want ErrInvalidCSRFToken", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("VerifyCSRFToken() = %v, want nil", err)
			}
		})
	}
}
