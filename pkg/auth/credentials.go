// Package auth stores Telegram API credentials across a chain of backends:
// the system keychain, an encrypted file and environment variables.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// Credentials holds one Telegram account's API identity
type Credentials struct {
	Phone        string    `json:"phone"`
	APIID        int       `json:"api_id"`
	APIHash      string    `json:"api_hash"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for an account
	Store(creds *Credentials) error

	// Retrieve gets credentials for a phone number
	Retrieve(phone string) (*Credentials, error)

	// List returns all stored accounts
	List() ([]*Credentials, error)

	// Delete removes credentials for a phone number
	Delete(phone string) error

	// Exists checks if credentials exist for a phone number
	Exists(phone string) bool
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the available backends, in
// preference order: keychain, encrypted file, environment.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(creds *Credentials) error {
	if creds.Phone == "" {
		return errors.New("phone number is required")
	}
	if creds.APIID <= 0 {
		return errors.New("api_id is required")
	}
	if creds.APIHash == "" {
		return errors.New("api_hash is required")
	}

	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(creds); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(phone string) (*Credentials, error) {
	for _, store := range m.stores {
		if creds, err := store.Retrieve(phone); err == nil && creds != nil {
			return creds, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for %s", phone)
}

// RetrieveDefault gets credentials for the default account or the first
// available one.
func (m *Manager) RetrieveDefault() (*Credentials, error) {
	// Environment takes precedence so CI and scripted runs stay simple
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if creds, err := envStore.Retrieve(""); err == nil && creds != nil {
			return creds, nil
		}
	}

	accounts, err := m.List()
	if err == nil && len(accounts) > 0 {
		return accounts[0], nil
	}

	return nil, errors.New("no credentials found")
}

// List returns all stored accounts from all stores
func (m *Manager) List() ([]*Credentials, error) {
	byPhone := make(map[string]*Credentials)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, creds := range accounts {
			if existing, ok := byPhone[creds.Phone]; !ok || creds.LastModified.After(existing.LastModified) {
				byPhone[creds.Phone] = creds
			}
		}
	}

	var result []*Credentials
	for _, creds := range byPhone {
		result = append(result, creds)
	}
	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(phone string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(phone); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for %s", phone)
	}
	return nil
}

// Sanitize returns a copy of the credentials with the API hash masked
func Sanitize(creds *Credentials) *Credentials {
	if creds == nil {
		return nil
	}
	return &Credentials{
		Phone:        creds.Phone,
		APIID:        creds.APIID,
		APIHash:      maskString(creds.APIHash),
		LastModified: creds.LastModified,
	}
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "tgexport")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "tgexport")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "tgexport")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "tgexport")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

func parseAPIID(v string) int {
	id, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return id
}
