package vault

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fast derivation keeps property tests quick; iteration count does not
// affect determinism
var testKDF = KeyDerivation{Iterations: 1000, Scheme: SchemeSalted}

func ed25519Signer(seed byte) Signer {
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	return SignerFunc(func(_ context.Context, message []byte) ([]byte, error) {
		return ed25519.Sign(key, message), nil
	})
}

func TestDeriveDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sig := rapid.SliceOfN(rapid.Byte(), 1, 128).Draw(t, "signature")
		salt := rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "salt")
		a, err := testKDF.Derive(sig, salt)
		if err != nil {
			t.Fatal(err)
		}
		b, err := testKDF.Derive(sig, salt)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) || len(a) != 32 {
			t.Fatalf("derive not deterministic: %x %x", a, b)
		}
	})
}

func TestDeriveSaltSeparatesKeys(t *testing.T) {
	sig := []byte("signature")
	s1 := bytes.Repeat([]byte{1}, 16)
	s2 := bytes.Repeat([]byte{2}, 16)
	k1, err := testKDF.Derive(sig, s1)
	require.NoError(t, err)
	k2, err := testKDF.Derive(sig, s2)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestDeriveRejectsBadInput(t *testing.T) {
	_, err := testKDF.Derive(nil, make([]byte, 16))
	assert.ErrorIs(t, err, ErrSignerUnavailable)

	_, err = testKDF.Derive([]byte("sig"), make([]byte, 8))
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
}

func TestDefaultKeyDerivation(t *testing.T) {
	kd := DefaultKeyDerivation()
	assert.Equal(t, 100000, kd.Iterations)
	assert.Equal(t, SchemeSalted, kd.Scheme)

	// zero iterations fall back to the default
	sig, salt := []byte("sig"), make([]byte, 16)
	a, err := KeyDerivation{}.Derive(sig, salt)
	require.NoError(t, err)
	b, err := kd.Derive(sig, salt)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestChallenge(t *testing.T) {
	salt := []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}

	fixed := testKDF.WithScheme(SchemeFixed).Challenge(salt)
	assert.Equal(t, "GhostContext Encryption Key", string(fixed))

	salted := testKDF.WithScheme(SchemeSalted).Challenge(salt)
	assert.Equal(t, "GhostContext Encryption Key\ndeadbeef000000000000000000000001", string(salted))
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("")
	require.NoError(t, err)
	assert.Equal(t, SchemeFixed, s)

	s, err = ParseScheme("salted-v1")
	require.NoError(t, err)
	assert.Equal(t, SchemeSalted, s)

	_, err = ParseScheme("salted-v2")
	assert.Error(t, err)
}

func TestDeriveWithSigner(t *testing.T) {
	ctx := context.Background()
	salt := bytes.Repeat([]byte{7}, 16)

	a, err := testKDF.DeriveWithSigner(ctx, ed25519Signer(1), salt)
	require.NoError(t, err)
	b, err := testKDF.DeriveWithSigner(ctx, ed25519Signer(1), salt)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := testKDF.DeriveWithSigner(ctx, ed25519Signer(2), salt)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestDeriveWithSignerFailures(t *testing.T) {
	ctx := context.Background()
	salt := make([]byte, 16)

	tests := []struct {
		name   string
		signer Signer
		cause  error
	}{
		{
			name:   "no signer",
			signer: nil,
		},
		{
			name: "user rejected",
			signer: SignerFunc(func(context.Context, []byte) ([]byte, error) {
				return nil, ErrUserRejected
			}),
			cause: ErrUserRejected,
		},
		{
			name: "transport failure",
			signer: SignerFunc(func(context.Context, []byte) ([]byte, error) {
				return nil, errors.New("wallet disconnected")
			}),
		},
		{
			name: "empty signature",
			signer: SignerFunc(func(context.Context, []byte) ([]byte, error) {
				return []byte{}, nil
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := testKDF.DeriveWithSigner(ctx, tt.signer, salt)
			assert.Nil(t, key)
			assert.ErrorIs(t, err, ErrSignerUnavailable)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestDeriveWithSignerSignsChallenge(t *testing.T) {
	salt := bytes.Repeat([]byte{0xab}, 16)
	var seen []byte
	signer := SignerFunc(func(_ context.Context, message []byte) ([]byte, error) {
		seen = append([]byte(nil), message...)
		return []byte("sig"), nil
	})
	_, err := testKDF.DeriveWithSigner(context.Background(), signer, salt)
	require.NoError(t, err)
	assert.Equal(t, testKDF.Challenge(salt), seen)
}
