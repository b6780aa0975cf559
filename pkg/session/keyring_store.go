package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "iggrowth"

// KeyringStore persists session credentials in the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed store, verifying the keychain is
// reachable
func NewKeyringStore() (*KeyringStore, error) {
	// Probe availability; some headless environments have no keyring daemon
	probe := keyringService + "-probe"
	if err := keyring.Set(probe, "probe", "probe"); err != nil {
		return nil, fmt.Errorf("keyring unavailable: %w", err)
	}
	_ = keyring.Delete(probe, "probe")
	return &KeyringStore{}, nil
}

// Load retrieves the credential for a username
func (k *KeyringStore) Load(username string) (*Credential, error) {
	data, err := keyring.Get(keyringService, username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("keyring get failed: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to decode stored credential: %w", err)
	}
	return &cred, nil
}

// Save stores the credential for its username
func (k *KeyringStore) Save(cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	if err := keyring.Set(keyringService, cred.Username, string(data)); err != nil {
		return fmt.Errorf("keyring set failed: %w", err)
	}
	return nil
}

// Delete removes the credential for a username
func (k *KeyringStore) Delete(username string) error {
	if err := keyring.Delete(keyringService, username); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("keyring delete failed: %w", err)
	}
	return nil
}
