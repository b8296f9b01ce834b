package auth

import (
	"os"
	"time"
)

// Environment variables consulted for the token, in order
var tokenEnvVars = []string{"SNAPBOT_BOT_TOKEN", "BOT_TOKEN"}

// EnvironmentStore implements TokenStore over environment variables. It is
// read-only and serves every profile.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Name implements TokenStore
func (e *EnvironmentStore) Name() string { return "environment" }

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(token *Token) error {
	return ErrStoreUnavailable
}

// Retrieve gets the token from the environment
func (e *EnvironmentStore) Retrieve(profile string) (*Token, error) {
	value := lookupToken()
	if value == "" {
		return nil, ErrTokenNotFound
	}
	return &Token{Profile: profile, Value: value, LastModified: time.Now()}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists implements TokenStore
func (e *EnvironmentStore) Exists(profile string) bool {
	return lookupToken() != ""
}

func lookupToken() string {
	for _, key := range tokenEnvVars {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
