package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only and mainly serves scripted and CI runs.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(phone string) (*Credentials, error) {
	apiID := parseAPIID(os.Getenv("TGEXPORT_API_ID"))
	apiHash := os.Getenv("TGEXPORT_API_HASH")

	if apiID <= 0 || apiHash == "" {
		return nil, ErrCredentialsNotFound
	}

	if phone == "" {
		phone = os.Getenv("TGEXPORT_PHONE")
	}

	return &Credentials{
		Phone:        phone,
		APIID:        apiID,
		APIHash:      apiHash,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	return []*Credentials{creds}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(phone string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(phone string) bool {
	return parseAPIID(os.Getenv("TGEXPORT_API_ID")) > 0 && os.Getenv("TGEXPORT_API_HASH") != ""
}
