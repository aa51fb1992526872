package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the size of a key derivation salt in bytes.
	SaltSize = 16
	// NonceSize is the size of an AES-GCM nonce in bytes.
	NonceSize = 12
	// KeySize is the size of an AES-256 key in bytes.
	KeySize = 32
	// TagSize is the size of the AES-GCM authentication tag in bytes.
	TagSize = 16
)

var ErrInvalidKeySize = errors.New("invalid key size")

func GenerateSalt() ([]byte, error) {
	return generateRandom(SaltSize)
}

func GenerateNonce(length int) ([]byte, error) {
	return generateRandom(length)
}

func generateRandom(length int) ([]byte, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func NewGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DeriveKey stretches secret into a KeySize key with PBKDF2-HMAC-SHA256.
func DeriveKey(secret, salt []byte, iterations int) []byte {
	return pbkdf2.Key(secret, salt, iterations, KeySize, sha256.New)
}

// ContentID returns the hex sha256 digest used to address blobs.
func ContentID(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
