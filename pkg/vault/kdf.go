package vault

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	tdfCrypto "github.com/opentdf/contextvault/internal/crypto"
	"golang.org/x/exp/slices"
)

const (
	// ChallengeMessage is the constant message signed to derive content keys.
	ChallengeMessage = "GhostContext Encryption Key"

	// DefaultIterations is the PBKDF2 iteration count.
	DefaultIterations = 100000
)

// ChallengeScheme selects the message the signer is asked to sign.
type ChallengeScheme string

const (
	// SchemeFixed signs ChallengeMessage for every document. One leaked
	// signature unlocks every document of that signer since salts are public.
	SchemeFixed ChallengeScheme = "fixed"

	// SchemeSalted signs ChallengeMessage followed by a newline and the hex
	// salt, so each document needs its own signature.
	SchemeSalted ChallengeScheme = "salted-v1"
)

var validSchemes = []ChallengeScheme{SchemeFixed, SchemeSalted}

// Signer is the external signing capability, typically a wallet. It must be
// deterministic: the same message always yields the same signature.
type Signer interface {
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, message []byte) ([]byte, error)

func (f SignerFunc) Sign(ctx context.Context, message []byte) ([]byte, error) {
	return f(ctx, message)
}

// KeyDerivation turns a signature over a challenge and a salt into an
// AES-256 key with PBKDF2-HMAC-SHA256.
type KeyDerivation struct {
	Iterations int
	Scheme     ChallengeScheme
}

func DefaultKeyDerivation() KeyDerivation {
	return KeyDerivation{
		Iterations: DefaultIterations,
		Scheme:     SchemeSalted,
	}
}

// ParseScheme maps a configured name to a scheme. Empty selects SchemeFixed,
// the scheme of envelopes written before schemes were recorded.
func ParseScheme(s string) (ChallengeScheme, error) {
	if s == "" {
		return SchemeFixed, nil
	}
	scheme := ChallengeScheme(s)
	if !slices.Contains(validSchemes, scheme) {
		return "", fmt.Errorf("unknown challenge scheme %q", s)
	}
	return scheme, nil
}

// WithScheme returns a copy of kd using scheme.
func (kd KeyDerivation) WithScheme(scheme ChallengeScheme) KeyDerivation {
	kd.Scheme = scheme
	return kd
}

// Challenge returns the message the signer must sign for salt.
func (kd KeyDerivation) Challenge(salt []byte) []byte {
	if kd.Scheme == SchemeSalted {
		return []byte(ChallengeMessage + "\n" + hex.EncodeToString(salt))
	}
	return []byte(ChallengeMessage)
}

// Derive returns the key for signature and salt. It is deterministic.
func (kd KeyDerivation) Derive(signature, salt []byte) ([]byte, error) {
	if len(signature) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrSignerUnavailable)
	}
	if len(salt) != tdfCrypto.SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrInvalidEnvelope, tdfCrypto.SaltSize, len(salt))
	}
	iterations := kd.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return tdfCrypto.DeriveKey(signature, salt, iterations), nil
}

// DeriveWithSigner asks signer for the challenge signature and derives the
// key. Signer failures are reported as ErrSignerUnavailable.
func (kd KeyDerivation) DeriveWithSigner(ctx context.Context, signer Signer, salt []byte) ([]byte, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer configured", ErrSignerUnavailable)
	}
	signature, err := signer.Sign(ctx, kd.Challenge(salt))
	if err != nil {
		return nil, errors.Join(ErrSignerUnavailable, err)
	}
	if len(signature) == 0 {
		return nil, fmt.Errorf("%w: signer returned an empty signature", ErrSignerUnavailable)
	}
	return kd.Derive(signature, salt)
}
