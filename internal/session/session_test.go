// ABOUTME: Tests for session construction from access tokens
// ABOUTME: Covers claim extraction, invalid tokens, ownership, and token resolution order

package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return token
}

func TestFromToken_ValidToken(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"user_id":  float64(7),
		"username": "avery",
		"name":     "Avery Chen",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	sess, err := FromToken(token)
	if err != nil {
		t.Fatalf("FromToken() error = %v", err)
	}

	if sess.UserID != 7 {
		t.Errorf("UserID = %d, want 7", sess.UserID)
	}
	if sess.Username != "avery" {
		t.Errorf("Username = %q, want %q", sess.Username, "avery")
	}
	if sess.DisplayName != "Avery Chen" {
		t.Errorf("DisplayName = %q, want %q", sess.DisplayName, "Avery Chen")
	}
	if sess.Token != token {
		t.Error("Token should carry the raw token for request authorization")
	}
}

func TestFromToken_StringUserID(t *testing.T) {
	// Some issuers serialize numeric claims as strings.
	token := mintToken(t, jwt.MapClaims{"user_id": "42"})

	sess, err := FromToken(token)
	if err != nil {
		t.Fatalf("FromToken() error = %v", err)
	}
	if sess.UserID != 42 {
		t.Errorf("UserID = %d, want 42", sess.UserID)
	}
}

func TestFromToken_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: ErrMissingToken},
		{name: "whitespace only", token: "   ", wantErr: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", wantErr: ErrInvalidToken},
		{name: "malformed segments", token: "a.b.c", wantErr: ErrInvalidToken},
		{
			name:    "missing user_id claim",
			token:   mintToken(t, jwt.MapClaims{"username": "avery"}),
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromToken(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FromToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOwns(t *testing.T) {
	sess := &Session{UserID: 7}

	if !sess.Owns(7) {
		t.Error("Owns(7) = false, want true for the session user")
	}
	if sess.Owns(9) {
		t.Error("Owns(9) = true, want false for another user")
	}

	var nilSess *Session
	if nilSess.Owns(7) {
		t.Error("nil session should own nothing")
	}
}

func TestLoadToken_ExplicitWins(t *testing.T) {
	t.Setenv("CAMPUS_TOKEN", "tok-env")

	token, err := LoadToken("tok-explicit", "")
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if token != "tok-explicit" {
		t.Errorf("LoadToken() = %q, want explicit value to win", token)
	}
}

func TestLoadToken_EnvVar(t *testing.T) {
	t.Setenv("CAMPUS_TOKEN", "tok-env")

	token, err := LoadToken("", "")
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if token != "tok-env" {
		t.Errorf("LoadToken() = %q, want %q", token, "tok-env")
	}
}

func TestLoadToken_File(t *testing.T) {
	t.Setenv("CAMPUS_TOKEN", "")
	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("tok-file\n"), 0600); err != nil {
		t.Fatalf("writing token file: %v", err)
	}

	token, err := LoadToken("", tokenFile)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if token != "tok-file" {
		t.Errorf("LoadToken() = %q, want trimmed file contents", token)
	}
}

func TestLoadToken_Missing(t *testing.T) {
	t.Setenv("CAMPUS_TOKEN", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := LoadToken("", "")
	if !errors.Is(err, ErrMissingToken) {
		t.Errorf("LoadToken() error = %v, want ErrMissingToken", err)
	}
}
