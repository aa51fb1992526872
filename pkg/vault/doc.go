// Package vault seals chunked documents into AES-256-GCM ciphertext whose key
// is re-derived from a signer's signature, and gates decryption behind
// grants with a bounded number of uses.
//
// The pipeline is
//
//	Serialize -> DeriveWithSigner(signer, salt) -> Encrypt(key, nonce)
//
// on the write side and the reverse on the read side. Only the
// AccessEnvelope (content id, salt, nonce, owner) is persisted; derived keys
// never leave the call that uses them.
//
// Nonces must never repeat under one key. Every encryption therefore draws a
// fresh salt and nonce; since the salt feeds key derivation, each document
// also gets its own key.
package vault
