package core

import (
	"crypto/subtle"
	"strings"
	"time"
)

// SecureCompareString performs constant-time string comparison
func SecureCompareString(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

var weakTokens = []string{
	"password", "secret", "token", "admin", "test", "default",
	"12345", "123456", "password123", "secret123", "admin123",
}

// ValidateAuthToken rejects API tokens that are empty, short or guessable.
func ValidateAuthToken(token string) error {
	if token == "" {
		return NewValidationError("auth_token", "authentication token cannot be empty")
	}

	if len(token) < 16 {
		return NewValidationError("auth_token", "authentication token is too short").
			WithGuidance("Use a token with at least 16 characters")
	}

	lowerToken := strings.ToLower(token)
	for _, weak := range weakTokens {
		if strings.Contains(lowerToken, weak) {
			return NewValidationError("auth_token", "authentication token appears to be weak").
				WithGuidance("Use a randomly generated token")
		}
	}

	return nil
}

// AuthResult represents the result of authentication
type AuthResult struct {
	Authorized bool
	Error      string
	Duration   time.Duration
}

// AuthenticateBearer checks an Authorization header against the expected token.
func AuthenticateBearer(authHeader, expectedToken string) AuthResult {
	start := time.Now()
	defer time.Sleep(time.Millisecond)

	fail := func(msg string) AuthResult {
		return AuthResult{Error: msg, Duration: time.Since(start)}
	}

	if authHeader == "" {
		return fail("Missing Authorization header")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" {
		return fail("Invalid Authorization header format")
	}

	if !SecureCompareString(token, expectedToken) {
		return fail("Invalid bearer token")
	}

	return AuthResult{Authorized: true, Duration: time.Since(start)}
}
