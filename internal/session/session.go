// ABOUTME: Session context holding the authenticated user identity and bearer token
// ABOUTME: Identity is extracted from the backend's JWT access token claims

package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Session errors
var (
	ErrMissingToken = errors.New("no access token configured")
	ErrInvalidToken = errors.New("invalid access token")
)

// Session is the read-only identity every component is handed explicitly.
// It is never mutated after construction.
type Session struct {
	UserID      int64
	Username    string
	DisplayName string
	Token       string
}

// FromToken builds a Session from a backend access token. The token payload
// is parsed without signature verification: the client holds no signing
// secret, and the backend re-verifies the token on every request anyway.
// The user_id claim is required; username and name are taken if present.
func FromToken(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, ok := numericClaim(claims, "user_id")
	if !ok {
		return nil, fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
	}

	s := &Session{
		UserID: userID,
		Token:  token,
	}
	if v, ok := claims["username"].(string); ok {
		s.Username = v
	}
	if v, ok := claims["name"].(string); ok {
		s.DisplayName = v
	}

	return s, nil
}

// Owns reports whether the given sender id is the session user. This is the
// single place "is this message mine" is decided.
func (s *Session) Owns(senderID int64) bool {
	return s != nil && senderID == s.UserID
}

// LoadToken resolves the access token: an explicit value wins, then the
// CAMPUS_TOKEN env var, then the token file (defaulting to
// ~/.config/campus-chat/token). Returns ErrMissingToken if nothing is set.
func LoadToken(explicit, file string) (string, error) {
	if t := strings.TrimSpace(explicit); t != "" {
		return t, nil
	}

	if t := strings.TrimSpace(os.Getenv("CAMPUS_TOKEN")); t != "" {
		return t, nil
	}

	if file == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", ErrMissingToken
			}
			configDir = filepath.Join(home, ".config")
		}
		file = filepath.Join(configDir, "campus-chat", "token")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", ErrMissingToken
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// numericClaim reads a claim that may be a JSON number or a string-encoded
// integer (both appear in the wild depending on the token issuer).
func numericClaim(claims jwt.MapClaims, key string) (int64, bool) {
	switch v := claims[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case string:
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			return id, true
		}
	}
	return 0, false
}
