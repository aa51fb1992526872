package signer

import (
	"context"

	"github.com/opentdf/contextvault/pkg/vault"
)

// ConfirmFunc asks the user whether message may be signed.
type ConfirmFunc func(ctx context.Context, message []byte) (bool, error)

// PromptSigner asks for confirmation before every signature, the way a
// wallet does. A declined request fails with vault.ErrUserRejected.
type PromptSigner struct {
	IdentitySigner
	Confirm ConfirmFunc
}

func (s PromptSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	ok, err := s.Confirm(ctx, message)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, vault.ErrUserRejected
	}
	return s.IdentitySigner.Sign(ctx, message)
}
