package apiclient

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// TokenKey is where the bearer token lives in persistent storage.
const TokenKey = "auth:token"

const serviceName = "society"

var ErrNoToken = errors.New("not logged in")

type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	ClearToken() error
}

// KeyringStore keeps the token in the OS keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// OpenKeyring opens the system keyring, falling back to an encrypted file
// under dir.
func OpenKeyring(dir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("society-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

func (s *KeyringStore) Token() (string, error) {
	item, err := s.ring.Get(TokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", TokenKey, err)
	}
	return string(item.Data), nil
}

func (s *KeyringStore) SetToken(token string) error {
	err := s.ring.Set(keyring.Item{
		Key:   TokenKey,
		Data:  []byte(token),
		Label: "society API token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", TokenKey, err)
	}
	return nil
}

func (s *KeyringStore) ClearToken() error {
	err := s.ring.Remove(TokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", TokenKey, err)
	}
	return nil
}
