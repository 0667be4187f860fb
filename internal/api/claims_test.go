package api

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	tok, err := GenerateToken("homeassistant", []string{ScopeControl}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	claims, err := ParseToken(tok, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error: %v", err)
	}
	if claims.Subject != "homeassistant" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "homeassistant")
	}
	if claims.ID == "" {
		t.Error("ID is empty, want a token id")
	}
	if got := claims.ExpiresAt.Time; time.Until(got) < 59*time.Minute {
		t.Errorf("ExpiresAt = %v, want about one hour from now", got)
	}
}

func TestGenerateToken_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		scopes  []string
	}{
		{"empty subject", "", []string{ScopeRead}},
		{"unknown scope", "x", []string{"admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateToken(tt.subject, tt.scopes, testSecret, time.Hour)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("GenerateToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestParseToken_Invalid(t *testing.T) {
	noScopes, err := GenerateToken("x", nil, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"garbage", "abc.def.ghi", testSecret},
		{"wrong secret", mustToken(t, ScopeRead), "wrong-secret-wrong-secret-wrong-secret"},
		{"no scopes", noScopes, testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestClaims_HasScope(t *testing.T) {
	tests := []struct {
		scopes []string
		check  string
		want   bool
	}{
		{[]string{ScopeRead}, ScopeRead, true},
		{[]string{ScopeRead}, ScopeControl, false},
		{[]string{ScopeControl}, ScopeRead, true},
		{[]string{ScopeControl}, ScopeControl, true},
		{nil, ScopeRead, false},
	}
	for _, tt := range tests {
		c := &Claims{Scopes: tt.scopes}
		if got := c.HasScope(tt.check); got != tt.want {
			t.Errorf("HasScope(%q) with %v = %v, want %v", tt.check, tt.scopes, got, tt.want)
		}
	}
}
