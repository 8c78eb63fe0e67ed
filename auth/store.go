package auth

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"
)

const serviceName = "mailsort"

// ErrNotFound is returned when a secret has never been stored.
var ErrNotFound = errors.New("secret not found")

// SecretStore keeps small secrets such as the OAuth token and API keys.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// KeyringStore stores secrets in the system keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring opens the platform keyring, falling back to an encrypted
// file under fileDir.
func OpenKeyring(fileDir string) (*KeyringStore, error) {
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
		FilePasswordFunc:         keyring.FixedStringPrompt("mailsort-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening keyring")
	}
	return &KeyringStore{ring: ring}, nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "getting credential %q", key)
	}
	return string(item.Data), nil
}

func (s *KeyringStore) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{Key: key, Data: []byte(value)})
	return errors.Wrapf(err, "setting credential %q", key)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KeyringStore) Delete(key string) error {
	err := s.ring.Remove(key)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) || os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "deleting credential %q", key)
}

// FileStore keeps each secret in its own 0600 file under Dir. It is the
// plain token.json layout for machines without a usable keyring.
type FileStore struct {
	Dir string
}

func (s FileStore) path(key string) string {
	return filepath.Join(s.Dir, strings.ReplaceAll(key, string(filepath.Separator), "_")+".json")
}

func (s FileStore) Get(key string) (string, error) {
	b, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", s.path(key))
	}
	return string(b), nil
}

func (s FileStore) Set(key, value string) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return errors.Wrap(err, "creating secret dir")
	}
	return errors.Wrapf(os.WriteFile(s.path(key), []byte(value), 0o600), "writing %s", s.path(key))
}

func (s FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "removing %s", s.path(key))
}
