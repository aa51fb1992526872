package vault

import (
	"encoding/hex"
	"fmt"

	tdfCrypto "github.com/opentdf/contextvault/internal/crypto"
)

// AccessEnvelope is the public record needed to decrypt a stored object.
// It holds no secret: the key is always re-derived from the owner's
// signature and the salt.
type AccessEnvelope struct {
	ContentID     string `json:"contentId"`
	Salt          string `json:"salt"`
	Nonce         string `json:"nonce"`
	OwnerIdentity string `json:"ownerIdentity"`
	// Scheme is the challenge scheme used at encryption time. Empty means
	// SchemeFixed.
	Scheme ChallengeScheme `json:"scheme,omitempty"`
}

// CreateEnvelope builds an envelope. It has no side effects.
func CreateEnvelope(contentID string, salt, nonce []byte, owner string, scheme ChallengeScheme) AccessEnvelope {
	return AccessEnvelope{
		ContentID:     contentID,
		Salt:          hex.EncodeToString(salt),
		Nonce:         hex.EncodeToString(nonce),
		OwnerIdentity: owner,
		Scheme:        scheme,
	}
}

func (e AccessEnvelope) SaltBytes() ([]byte, error) {
	return decodeHexField("salt", e.Salt, tdfCrypto.SaltSize)
}

func (e AccessEnvelope) NonceBytes() ([]byte, error) {
	return decodeHexField("nonce", e.Nonce, tdfCrypto.NonceSize)
}

// ResolveScheme returns the recorded scheme.
func (e AccessEnvelope) ResolveScheme() (ChallengeScheme, error) {
	scheme, err := ParseScheme(string(e.Scheme))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return scheme, nil
}

func (e AccessEnvelope) Validate() error {
	if e.ContentID == "" {
		return fmt.Errorf("%w: missing content id", ErrInvalidEnvelope)
	}
	if _, err := e.SaltBytes(); err != nil {
		return err
	}
	if _, err := e.NonceBytes(); err != nil {
		return err
	}
	_, err := e.ResolveScheme()
	return err
}

func decodeHexField(name, value string, size int) ([]byte, error) {
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not hex: %v", ErrInvalidEnvelope, name, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("%w: %s must be %d bytes, got %d", ErrInvalidEnvelope, name, size, len(b))
	}
	return b, nil
}
