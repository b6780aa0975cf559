// Package session persists authentication session material so runs can
// restore a live session instead of re-authenticating. Fresh logins are not
// free: login velocity is one of the platform's anti-automation signals.
package session

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no credential is stored for a username
var ErrNotFound = errors.New("session credential not found")

// Credential is the opaque session material for one account: the serialized
// cookie jar plus the device identity the session was established with.
type Credential struct {
	Username   string    `json:"username"`
	UserPK     int64     `json:"user_pk"`
	DeviceID   string    `json:"device_id"`
	CookieBlob []byte    `json:"cookie_blob"`
	SavedAt    time.Time `json:"saved_at"`
}

// Store loads and saves session credentials keyed by username. Save is only
// called on graceful shutdown; a crash forfeits session continuity and forces
// a re-login next run, which is acceptable.
type Store interface {
	Load(username string) (*Credential, error)
	Save(cred *Credential) error
	Delete(username string) error
}

// Manager tries a chain of stores in order: load returns the first hit, save
// writes to the first store that accepts.
type Manager struct {
	stores []Store
}

// NewManager creates a manager over the given stores
func NewManager(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Load returns the credential from the first store that has it
func (m *Manager) Load(username string) (*Credential, error) {
	for _, store := range m.stores {
		cred, err := store.Load(username)
		if err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, ErrNotFound
}

// Save writes the credential to the first store that accepts it
func (m *Manager) Save(cred *Credential) error {
	if cred.Username == "" {
		return errors.New("username is required")
	}
	cred.SavedAt = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Save(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return errors.New("no available session stores")
}

// Delete removes the credential from every store that has it
func (m *Manager) Delete(username string) error {
	var lastErr error
	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if !deleted && lastErr != nil {
		return lastErr
	}
	return nil
}
