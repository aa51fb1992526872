package vault

import (
	tdfCrypto "github.com/opentdf/contextvault/internal/crypto"
)

// NewSalt returns a fresh 16 byte key derivation salt.
func NewSalt() ([]byte, error) {
	return tdfCrypto.GenerateSalt()
}

// NewNonce returns a fresh 96-bit AES-GCM nonce.
func NewNonce() ([]byte, error) {
	return tdfCrypto.GenerateNonce(tdfCrypto.NonceSize)
}

// Encrypt seals plaintext with AES-256-GCM. The returned ciphertext has the
// 16 byte tag appended and does not contain the nonce. A nonce must never be
// used twice with the same key.
func Encrypt(key, nonce, plaintext []byte) ([]byte, error) {
	gcm, err := tdfCrypto.NewGCMWithKey(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, plaintext)
}

// Decrypt opens ciphertext produced by Encrypt. Every failure, whatever the
// cause, is reported as ErrDecryptionFailed.
func Decrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := tdfCrypto.NewGCMWithKey(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nonce, ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
