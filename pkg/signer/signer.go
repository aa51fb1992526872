// Package signer provides deterministic signers for key derivation. Every
// signer here yields the same signature for the same challenge, which is
// what lets a content key be re-derived later.
package signer

import (
	"github.com/opentdf/contextvault/pkg/vault"
)

// IdentitySigner is a vault.Signer that can name the identity it signs as.
// The identity is recorded as the envelope owner.
type IdentitySigner interface {
	vault.Signer
	Identity() string
}
