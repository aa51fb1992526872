package crypto

import (
	"crypto/cipher"
	"errors"
)

var ErrInvalidNonceSize = errors.New("invalid nonce size")

// GCM seals and opens messages under a single key with caller supplied nonces.
type GCM struct {
	cipher cipher.AEAD
}

func NewGCMWithKey(key []byte) (*GCM, error) {
	aead, err := NewGCM(key)
	if err != nil {
		return nil, err
	}
	return &GCM{cipher: aead}, nil
}

func (g *GCM) NonceSize() int {
	return g.cipher.NonceSize()
}

func (g *GCM) EncryptedSize(size int) int {
	// ciphertext is the same length as the message plus the auth tag
	return size + g.cipher.Overhead()
}

// Seal returns ciphertext || tag. The nonce is not prepended.
func (g *GCM) Seal(nonce, msg []byte) ([]byte, error) {
	if len(nonce) != g.cipher.NonceSize() {
		return nil, ErrInvalidNonceSize
	}
	return g.cipher.Seal(nil, nonce, msg, nil), nil
}

func (g *GCM) Open(nonce, cipherText []byte) ([]byte, error) {
	// cipher.AEAD panics on a bad nonce length
	if len(nonce) != g.cipher.NonceSize() {
		return nil, ErrInvalidNonceSize
	}
	return g.cipher.Open(nil, nonce, cipherText, nil)
}
