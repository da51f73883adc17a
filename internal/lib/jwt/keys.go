package jwt

import (
	"crypto/rand"
	"fmt"
)

const generatedKeySize = 32

// KeyProvider supplies the symmetric key used to sign and verify tokens.
type KeyProvider interface {
	SigningKey() []byte
}

// GeneratedKey is a random key created once at startup. It lives only in
// memory, so a restart invalidates every token signed with it.
type GeneratedKey struct {
	key []byte
}

func NewGeneratedKey() (*GeneratedKey, error) {
	const op = "jwt.NewGeneratedKey"

	key := make([]byte, generatedKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &GeneratedKey{key: key}, nil
}

func (k *GeneratedKey) SigningKey() []byte {
	return k.key
}

// StaticKey is a key taken from configuration.
type StaticKey []byte

func (k StaticKey) SigningKey() []byte {
	return k
}
