package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// FileStore persists session credentials in an AES-GCM encrypted file,
// used as the fallback when no system keychain is available.
type FileStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

// fileContents is the on-disk structure
type fileContents struct {
	Salt      string `json:"salt"`
	Encrypted string `json:"encrypted"`
}

// NewFileStore creates an encrypted file store at path. The passphrase comes
// from IGGROWTH_SESSION_PASSPHRASE or falls back to a machine-local default.
func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	passphrase := os.Getenv("IGGROWTH_SESSION_PASSPHRASE")
	if passphrase == "" {
		host, _ := os.Hostname()
		passphrase = "iggrowth-" + host
	}

	return &FileStore{path: path, passphrase: passphrase}, nil
}

// DefaultPath returns the conventional session file location
func DefaultPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "iggrowth", "sessions.enc"), nil
}

// Load retrieves the credential for a username
func (f *FileStore) Load(username string) (*Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.loadAll()
	if err != nil {
		return nil, err
	}
	cred, ok := creds[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &cred, nil
}

// Save stores the credential for its username
func (f *FileStore) Save(cred *Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.loadAll()
	if err != nil {
		creds = map[string]Credential{}
	}
	creds[cred.Username] = *cred
	return f.saveAll(creds)
}

// Delete removes the credential for a username
func (f *FileStore) Delete(username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.loadAll()
	if err != nil {
		return ErrNotFound
	}
	if _, ok := creds[username]; !ok {
		return ErrNotFound
	}
	delete(creds, username)
	return f.saveAll(creds)
}

func (f *FileStore) loadAll() (map[string]Credential, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Credential{}, nil
		}
		return nil, err
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(contents.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(contents.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	plaintext, err := f.decrypt(ciphertext, salt)
	if err != nil {
		return nil, err
	}

	var creds map[string]Credential
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return creds, nil
}

func (f *FileStore) saveAll(creds map[string]Credential) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	ciphertext, err := f.encrypt(plaintext, salt)
	if err != nil {
		return err
	}

	contents := fileContents{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
	}
	data, err := json.Marshal(contents)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0600)
}

func (f *FileStore) deriveKey(salt []byte) []byte {
	return pbkdf2.Key([]byte(f.passphrase), salt, iterations, keySize, sha256.New)
}

func (f *FileStore) encrypt(plaintext, salt []byte) ([]byte, error) {
	block, err := aes.NewCipher(f.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (f *FileStore) decrypt(ciphertext, salt []byte) ([]byte, error) {
	block, err := aes.NewCipher(f.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session file: %w", err)
	}
	return plaintext, nil
}
