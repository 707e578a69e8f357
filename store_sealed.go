package hopon

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealedStore encrypts values before handing them to an inner Store. Guest
// join tokens are bearer credentials; sealing them keeps a copied state file
// from being replayable on another machine.
type SealedStore struct {
	inner Store
	key   []byte
}

var _ Store = (*SealedStore)(nil)

// ErrSealedValueCorrupt is returned when a stored value fails authentication
var ErrSealedValueCorrupt = errors.New("sealed value corrupt or wrong key")

// NewSealedStore wraps inner with XChaCha20-Poly1305 using a key derived
// from secret. Any secret length works; it is hashed to key size.
func NewSealedStore(inner Store, secret []byte) *SealedStore {
	key := sha256.Sum256(secret)
	return &SealedStore{inner: inner, key: key[:]}
}

func (s *SealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize() {
		return nil, ErrSealedValueCorrupt
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, ErrSealedValueCorrupt
	}

	return plain, nil
}

func (s *SealedStore) Set(ctx context.Context, key string, value []byte) error {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	// Storage key doubles as additional data so values cannot be swapped
	// between keys.
	sealed := aead.Seal(nonce, nonce, value, []byte(key))
	return s.inner.Set(ctx, key, sealed)
}

func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
