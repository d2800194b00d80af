package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SecurityMethod defines the credential storage method
type SecurityMethod string

const (
	SecurityPlainText SecurityMethod = "plaintext"
	SecuritySSHKey    SecurityMethod = "ssh_key"
)

// Credential names.
const (
	CredentialToken = "token"
	CredentialEmail = "email"
)

// ErrNoToken is returned when no login token is stored.
var ErrNoToken = errors.New("not logged in (run `moochat login`)")

// CredentialStore keeps the backend login on disk, either in a plain TOML
// file or encrypted with a key derived from the user's SSH key.
type CredentialStore struct {
	method     SecurityMethod
	values     map[string]string
	sshKeyPath string
	passphrase string
}

func NewCredentialStore(method SecurityMethod, sshKeyPath string) *CredentialStore {
	return &CredentialStore{
		method:     method,
		values:     make(map[string]string),
		sshKeyPath: sshKeyPath,
	}
}

// SetPassphrase sets the passphrase for an encrypted SSH key.
func (c *CredentialStore) SetPassphrase(passphrase string) {
	c.passphrase = passphrase
}

func (c *CredentialStore) Method() SecurityMethod {
	return c.method
}

// Load reads stored credentials. A missing file is an empty store.
func (c *CredentialStore) Load(dataDir string) error {
	var (
		values map[string]string
		err    error
	)
	switch c.method {
	case SecurityPlainText:
		values, err = loadPlainText(plainTextPath(dataDir))
	case SecuritySSHKey:
		values, err = c.loadEncrypted(encryptedPath(dataDir))
	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
	if err != nil {
		return err
	}
	if values == nil {
		values = make(map[string]string)
	}
	c.values = values
	return nil
}

// Save writes credentials with 0600 permissions.
func (c *CredentialStore) Save(dataDir string) error {
	switch c.method {
	case SecurityPlainText:
		return savePlainText(plainTextPath(dataDir), c.values)
	case SecuritySSHKey:
		return c.saveEncrypted(encryptedPath(dataDir))
	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
}

func (c *CredentialStore) Get(name string) string {
	return c.values[name]
}

func (c *CredentialStore) Set(name, value string) {
	c.values[name] = value
}

func (c *CredentialStore) Delete(name string) {
	delete(c.values, name)
}

// Token returns the stored login token or ErrNoToken.
func (c *CredentialStore) Token() (string, error) {
	tok := c.values[CredentialToken]
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

func plainTextPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.toml")
}

func encryptedPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.enc")
}

type credentialsFile struct {
	Credentials map[string]string `toml:"credentials"`
}

func loadPlainText(path string) (map[string]string, error) {
	if !FileExists(path) {
		return nil, nil
	}
	var cf credentialsFile
	if _, err := toml.DecodeFile(path, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return cf.Credentials, nil
}

func savePlainText(path string, values map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create credentials file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(credentialsFile{Credentials: values}); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return nil
}

func (c *CredentialStore) loadEncrypted(path string) (map[string]string, error) {
	if !FileExists(path) {
		return nil, nil
	}
	s, err := newSSHSealer(c.sshKeyPath, c.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encrypted credentials: %w", err)
	}
	plain, err := s.open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	var values map[string]string
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted credentials: %w", err)
	}
	return values, nil
}

func (c *CredentialStore) saveEncrypted(path string) error {
	s, err := newSSHSealer(c.sshKeyPath, c.passphrase)
	if err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	plain, err := json.Marshal(c.values)
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}
	data, err := s.seal(plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write encrypted credentials: %w", err)
	}
	return nil
}
