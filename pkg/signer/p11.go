package signer

import (
	"context"
	"crypto"

	"github.com/opentdf/contextvault/pkg/p11"
)

// PKCS11Signer signs with an RSA key held in an HSM.
type PKCS11Signer struct {
	session *p11.Pkcs11Session
	key     p11.Pkcs11PrivateKeyRSA
	label   string
}

type PKCS11Config struct {
	Module string
	Pin    string
	Label  string
}

func NewPKCS11Signer(config PKCS11Config) (*PKCS11Signer, error) {
	session, err := p11.OpenSession(config.Module, config.Pin)
	if err != nil {
		return nil, err
	}
	key, err := session.FindPrivateKeyRSA(config.Label)
	if err != nil {
		session.Close()
		return nil, err
	}
	return &PKCS11Signer{session: session, key: key, label: config.Label}, nil
}

func (s *PKCS11Signer) Sign(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.session.SignPKCS1v15(s.key, crypto.SHA256, message)
}

func (s *PKCS11Signer) Identity() string {
	return "pkcs11:" + s.label
}

func (s *PKCS11Signer) Close() error {
	return s.session.Close()
}
