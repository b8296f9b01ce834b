package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/zalando/go-keyring"
)

const testToken = "123456789:AAH-abcdefghijklmnopqrstuvwxyz12345"

// memoryStore is an in-memory TokenStore with error injection
type memoryStore struct {
	mu       sync.Mutex
	tokens   map[string]Token
	storeErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tokens: make(map[string]Token)}
}

func (m *memoryStore) Name() string { return "memory" }

func (m *memoryStore) Store(token *Token) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Profile] = *token
	return nil
}

func (m *memoryStore) Retrieve(profile string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[profile]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &token, nil
}

func (m *memoryStore) Delete(profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[profile]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, profile)
	return nil
}

func (m *memoryStore) Exists(profile string) bool {
	_, err := m.Retrieve(profile)
	return err == nil
}

func clearTokenEnv(t *testing.T) {
	t.Helper()
	for _, key := range tokenEnvVars {
		t.Setenv(key, "")
	}
}

func TestManagerRoundTrip(t *testing.T) {
	clearTokenEnv(t)
	store := newMemoryStore()
	manager := NewManagerWithStores(store, NewEnvironmentStore())

	where, err := manager.Store("", testToken)
	if err != nil {
		t.Fatalf("Failed to store token: %v", err)
	}
	if where != "memory" {
		t.Errorf("Stored in %q, want memory", where)
	}

	token, err := manager.Retrieve(DefaultProfile)
	if err != nil {
		t.Fatalf("Failed to retrieve token: %v", err)
	}
	if token.Value != testToken {
		t.Errorf("Token mismatch: got %s", token.Value)
	}
	if token.LastModified.IsZero() {
		t.Error("LastModified should be set")
	}
	if src := manager.Source(""); src != "memory" {
		t.Errorf("Source = %q, want memory", src)
	}

	if err := manager.Delete(""); err != nil {
		t.Fatalf("Failed to delete token: %v", err)
	}
	if _, err := manager.Retrieve(""); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound after delete, got %v", err)
	}
	if err := manager.Delete(""); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound on second delete, got %v", err)
	}
}

func TestManagerFallsBack(t *testing.T) {
	clearTokenEnv(t)
	failing := newMemoryStore()
	failing.storeErr = errors.New("locked")
	second := newMemoryStore()
	manager := NewManagerWithStores(failing, second)

	if _, err := manager.Store("prod", testToken); err != nil {
		t.Fatalf("Failed to store token: %v", err)
	}
	if !second.Exists("prod") {
		t.Error("Token should land in the second store")
	}

	t.Setenv("BOT_TOKEN", "999:from-env")
	env := NewManagerWithStores(newMemoryStore(), NewEnvironmentStore())
	token, err := env.Retrieve("")
	if err != nil {
		t.Fatalf("Expected env fallback: %v", err)
	}
	if token.Value != "999:from-env" {
		t.Errorf("Token = %s", token.Value)
	}
	if src := env.Source(""); src != "environment" {
		t.Errorf("Source = %q, want environment", src)
	}
}

func TestManagerRejectsInvalidToken(t *testing.T) {
	manager := NewManagerWithStores(newMemoryStore())

	for _, value := range []string{"", "not-a-token", "abc:defghijklmnopqrstuvwxyz0123456789", "123:short"} {
		if _, err := manager.Store("", value); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Store(%q) error = %v, want ErrInvalidToken", value, err)
		}
	}
}

func TestManagerAllStoresFail(t *testing.T) {
	clearTokenEnv(t)
	manager := NewManagerWithStores(NewEnvironmentStore())
	if _, err := manager.Store("", testToken); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.enc")
	store, err := NewEncryptedFileStoreWithPassphrase(path, "correct horse")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Store(&Token{Profile: "default", Value: testToken}); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}
	if err := store.Store(&Token{Profile: "staging", Value: "1:other"}); err != nil {
		t.Fatalf("Failed to store second profile: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if bytes.Contains(content, []byte(testToken)) {
		t.Error("Token should not appear in plaintext")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("File mode = %v, want 0600", info.Mode().Perm())
	}

	reopened, _ := NewEncryptedFileStoreWithPassphrase(path, "correct horse")
	token, err := reopened.Retrieve("default")
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if token.Value != testToken {
		t.Errorf("Token mismatch: got %s", token.Value)
	}

	wrong, _ := NewEncryptedFileStoreWithPassphrase(path, "wrong")
	if _, err := wrong.Retrieve("default"); err == nil || errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected decryption failure, got %v", err)
	}

	if err := store.Delete("default"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if store.Exists("default") {
		t.Error("default should be gone")
	}
	if !store.Exists("staging") {
		t.Error("staging should survive")
	}
	if err := store.Delete("staging"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("File should be removed once empty")
	}
	if err := store.Delete("staging"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}
}

func TestEncryptedFileStoreRequiresPassphrase(t *testing.T) {
	if _, err := NewEncryptedFileStoreWithPassphrase(filepath.Join(t.TempDir(), "x"), ""); err == nil {
		t.Error("Expected error for empty passphrase")
	}
}

func TestEncryptedFileStorePassphraseFromEnv(t *testing.T) {
	t.Setenv(PassphraseEnv, "from-env")
	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "token.enc"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if store.passphrase != "from-env" {
		t.Errorf("passphrase = %q", store.passphrase)
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("Mock keyring should be available: %v", err)
	}
	if store.Exists("default") {
		t.Error("Nothing stored yet")
	}
	if err := store.Store(&Token{Profile: "default", Value: testToken}); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}

	token, err := store.Retrieve("default")
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if token.Value != testToken {
		t.Errorf("Token mismatch: got %s", token.Value)
	}

	if err := store.Delete("default"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := store.Retrieve("default"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}
	if err := store.Delete("default"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}
}

func TestEnvironmentStore(t *testing.T) {
	clearTokenEnv(t)
	store := NewEnvironmentStore()
	if store.Exists("") {
		t.Error("No env token set")
	}

	t.Setenv("BOT_TOKEN", "1:legacy")
	t.Setenv("SNAPBOT_BOT_TOKEN", "2:preferred")
	token, err := store.Retrieve("default")
	if err != nil {
		t.Fatal(err)
	}
	if token.Value != "2:preferred" {
		t.Errorf("SNAPBOT_BOT_TOKEN should win, got %s", token.Value)
	}
	if err := store.Store(token); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Store should be unsupported, got %v", err)
	}
}

func TestMaskToken(t *testing.T) {
	tests := map[string]string{
		testToken:    "123456789:...2345",
		"short":      "********",
		"abcdefghij": "abcd...ghij",
	}
	for in, want := range tests {
		if got := MaskToken(in); got != want {
			t.Errorf("MaskToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShowTokenGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowTokenGuide(&buf)
	if !strings.Contains(buf.String(), "@BotFather") {
		t.Error("Guide should mention @BotFather")
	}
}
