// Package auth stores the Telegram bot token outside the config file.
//
// Stores are tried in order: the system keychain, an AES-GCM encrypted file
// under the user config directory, and finally the environment.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"
)

// DefaultProfile names the token used when none is given
const DefaultProfile = "default"

// Token is a stored bot credential
type Token struct {
	Profile      string    `json:"profile"`
	Value        string    `json:"value"`
	LastModified time.Time `json:"last_modified"`
}

// TokenStore is the interface for storing and retrieving tokens
type TokenStore interface {
	// Name identifies the backend in status output
	Name() string

	Store(token *Token) error
	Retrieve(profile string) (*Token, error)
	Delete(profile string) error
	Exists(profile string) bool
}

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []TokenStore
}

// NewManager creates a manager over the keychain, the encrypted file and
// the environment. The keychain is skipped when unavailable.
func NewManager() (*Manager, error) {
	var stores []TokenStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "token.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores, in order
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the token in the first store that accepts it and returns
// that store's name
func (m *Manager) Store(profile, value string) (string, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if err := ValidateToken(value); err != nil {
		return "", err
	}

	token := &Token{Profile: profile, Value: value, LastModified: time.Now()}

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(token)
		if err == nil {
			return store.Name(), nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store token: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Retrieve gets the token from the first store that has it
func (m *Manager) Retrieve(profile string) (*Token, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, store := range m.stores {
		if token, err := store.Retrieve(profile); err == nil && token != nil {
			return token, nil
		}
	}
	return nil, ErrTokenNotFound
}

// Source reports which store currently holds the token, or "" if none
func (m *Manager) Source(profile string) string {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, store := range m.stores {
		if store.Exists(profile) {
			return store.Name()
		}
	}
	return ""
}

// Delete removes the token from every writable store
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrTokenNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	return ErrTokenNotFound
}

var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]{30,}$`)

// ValidateToken checks that value looks like a bot token issued by BotFather
func ValidateToken(value string) error {
	if value == "" {
		return fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}
	if !tokenPattern.MatchString(value) {
		return fmt.Errorf("%w: expected <bot id>:<secret>", ErrInvalidToken)
	}
	return nil
}

// MaskToken hides all but the bot id and the last 4 characters
func MaskToken(value string) string {
	if len(value) <= 8 {
		return "********"
	}
	for i, c := range value {
		if c == ':' {
			return value[:i+1] + "..." + value[len(value)-4:]
		}
	}
	return value[:4] + "..." + value[len(value)-4:]
}

func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "snapbot")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "snapbot")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "snapbot")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "snapbot")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// Errors
var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrStoreUnavailable = errors.New("token store unavailable")
)
