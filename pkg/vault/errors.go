package vault

import "errors"

var (
	// ErrSignerUnavailable is returned when the signer failed or declined to
	// sign the key derivation challenge. It is never retried automatically.
	ErrSignerUnavailable = errors.New("signer unavailable")

	// ErrUserRejected is returned by signers when the user declined the
	// signature request. Key derivation reports it joined with
	// ErrSignerUnavailable.
	ErrUserRejected = errors.New("user rejected signature request")

	// ErrDecryptionFailed is returned for any authentication failure: wrong
	// key, wrong nonce, tampered or truncated ciphertext.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrDecode is returned when a payload is malformed after successful
	// decryption.
	ErrDecode = errors.New("payload decode error")

	// ErrInvalidPayload is returned when a payload cannot be serialized
	// because it breaks the chunk ordering rules.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrQuotaExhausted is returned when a grant has no remaining uses.
	ErrQuotaExhausted = errors.New("grant quota exhausted")

	// ErrGrantNotFound is returned when a grant or the envelope it references
	// cannot be resolved.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrInvalidGrant is returned when a grant breaks
	// 0 <= remaining <= total.
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrStorageNotFound is returned when blob storage has no object for a
	// content id.
	ErrStorageNotFound = errors.New("content not found in storage")

	// ErrInvalidEnvelope is returned when an envelope carries malformed salt
	// or nonce encodings.
	ErrInvalidEnvelope = errors.New("invalid access envelope")
)
