package sandbox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	tokenLength = 32
	tokenTTL    = 300 // 5 minutes in seconds
)

// Credentials is the client the sandbox accepts on its token endpoint.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// TokenManager issues and validates client-credentials access tokens.
type TokenManager struct {
	store       *Store
	credentials Credentials
}

// NewTokenManager creates a new TokenManager.
func NewTokenManager(s *Store, credentials Credentials) *TokenManager {
	return &TokenManager{store: s, credentials: credentials}
}

// Authenticate reports whether the client id and secret match the configured client.
func (tm *TokenManager) Authenticate(clientID, clientSecret string) bool {
	idOK := subtle.ConstantTimeCompare([]byte(clientID), []byte(tm.credentials.ClientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(tm.credentials.ClientSecret)) == 1
	return idOK && secretOK
}

// GenerateToken generates a new access token and stores it.
func (tm *TokenManager) GenerateToken() (string, error) {
	token, err := generateRandomToken(tokenLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	// Store token with expiration time.
	expiresAt := time.Now().Add(tokenTTL * time.Second).Unix()
	if err := tm.store.PutString(BucketTokens, token, strconv.FormatInt(expiresAt, 10)); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	return token, nil
}

// ValidateToken validates an access token.
func (tm *TokenManager) ValidateToken(token string) (bool, error) {
	expiresAtStr, err := tm.store.GetString(BucketTokens, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get token: %w", err)
	}

	expiresAt, err := strconv.ParseInt(expiresAtStr, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse expiration time: %w", err)
	}

	// Check if token is expired.
	if time.Now().Unix() > expiresAt {
		// Delete expired token.
		_ = tm.store.DeleteString(BucketTokens, token)
		return false, nil
	}

	return true, nil
}

// generateRandomToken generates a random token string.
func generateRandomToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
