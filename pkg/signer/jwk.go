package signer

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

var ErrNondeterministicKey = errors.New("key type does not produce deterministic signatures")

// JWKSigner signs with a private JWK. Only EdDSA and RSA PKCS#1 v1.5 keys are
// accepted; ECDSA signatures are randomized and would derive a different key
// on every call.
type JWKSigner struct {
	key      jwk.Key
	alg      jwa.SignatureAlgorithm
	identity string
}

// LoadJWKSigner reads a private key from a JWK JSON file or a PEM file.
func LoadJWKSigner(path string) (*JWKSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var opts []jwk.ParseOption
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN")) {
		opts = append(opts, jwk.WithPEM(true))
	}
	key, err := jwk.ParseKey(data, opts...)
	if err != nil {
		return nil, errors.Join(err, fmt.Errorf("unable to parse signing key %s", path))
	}
	return NewJWKSigner(key)
}

func NewJWKSigner(key jwk.Key) (*JWKSigner, error) {
	var alg jwa.SignatureAlgorithm
	switch key.(type) {
	case jwk.OKPPrivateKey:
		alg = jwa.EdDSA
	case jwk.RSAPrivateKey:
		alg = jwa.RS256
	case jwk.ECDSAPrivateKey:
		return nil, fmt.Errorf("%w: %s", ErrNondeterministicKey, key.KeyType())
	default:
		return nil, fmt.Errorf("unsupported signing key type %s, a private key is required", key.KeyType())
	}

	thumbprint, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, err
	}
	return &JWKSigner{
		key:      key,
		alg:      alg,
		identity: base64.RawURLEncoding.EncodeToString(thumbprint),
	}, nil
}

// NewEd25519Signer wraps an in-process ed25519 key.
func NewEd25519Signer(priv ed25519.PrivateKey) (*JWKSigner, error) {
	key, err := jwk.FromRaw(priv)
	if err != nil {
		return nil, err
	}
	return NewJWKSigner(key)
}

// GenerateEd25519Signer creates a signer with a fresh key.
func GenerateEd25519Signer() (*JWKSigner, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return NewEd25519Signer(priv)
}

// Sign returns the raw JWS signature over message.
func (s *JWKSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	compact, err := jws.Sign(message, jws.WithKey(s.alg, s.key))
	if err != nil {
		return nil, err
	}
	msg, err := jws.Parse(compact)
	if err != nil {
		return nil, err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return nil, fmt.Errorf("expected one signature, got %d", len(sigs))
	}
	return sigs[0].Signature(), nil
}

// Identity is the base64url SHA-256 JWK thumbprint of the key.
func (s *JWKSigner) Identity() string {
	return s.identity
}

func (s *JWKSigner) Algorithm() jwa.SignatureAlgorithm {
	return s.alg
}

// GenerateJWKFile writes a fresh private key as JWK JSON to path. kty is
// "OKP" (Ed25519) or "RSA" (2048 bit).
func GenerateJWKFile(path string, kty jwa.KeyType) (*JWKSigner, error) {
	var raw any
	switch kty {
	case jwa.OKP:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		raw = priv
	case jwa.RSA:
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, err
		}
		raw = priv
	default:
		return nil, fmt.Errorf("%w: %s", ErrNondeterministicKey, kty)
	}
	key, err := jwk.FromRaw(raw)
	if err != nil {
		return nil, err
	}
	s, err := NewJWKSigner(key)
	if err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyIDKey, s.Identity()); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return s, nil
}
