package strapi

import (
	"fmt"
	"strings"
)

// Cipher protects tokens held in the credential cache.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(sealed string) (string, error)
}

// NewCipher resolves the configured algorithm. Only "none" exists today.
func NewCipher(algorithm string) (Cipher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", "none":
		return passthroughCipher{}, nil
	default:
		return nil, fmt.Errorf("unsupported encryption algorithm: %s", algorithm)
	}
}

type passthroughCipher struct{}

func (passthroughCipher) Encrypt(plain string) (string, error)  { return plain, nil }
func (passthroughCipher) Decrypt(sealed string) (string, error) { return sealed, nil }
