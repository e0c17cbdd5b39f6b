package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "classfeed"

// Credential keys.
const (
	KeyLMSToken        = "lms-token"
	KeyMailboxPassword = "mailbox-password"
)

// ErrNotFound is returned when a credential is neither in the environment
// nor in the keyring.
var ErrNotFound = errors.New("credential not found")

// EnvVar returns the environment variable that overrides key, e.g.
// CLASSFEED_LMS_TOKEN for "lms-token".
func EnvVar(key string) string {
	return "CLASSFEED_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Vault resolves secrets from the environment first and the system
// keyring second.
type Vault struct {
	ring   keyring.Keyring
	lookup func(string) (string, bool)
}

// NewVault wraps an opened keyring. A nil ring makes the vault
// environment-only.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring, lookup: os.LookupEnv}
}

// Open returns a Vault backed by the platform keyring.
func Open() (*Vault, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return NewVault(ring), nil
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	fileDir := "~/.config/classfeed/credentials"
	if home, err := os.UserHomeDir(); err == nil {
		fileDir = filepath.Join(home, ".config", "classfeed", "credentials")
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("classfeed-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key.
func (v *Vault) Get(key string) (string, error) {
	if value, ok := v.lookup(EnvVar(key)); ok && value != "" {
		return value, nil
	}
	if v.ring == nil {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}

	item, err := v.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the keyring.
func (v *Vault) Set(key string, value string) error {
	if v.ring == nil {
		return fmt.Errorf("setting credential %q: no keyring available", key)
	}

	err := v.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the keyring.
func (v *Vault) Delete(key string) error {
	if v.ring == nil {
		return nil
	}

	err := v.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
