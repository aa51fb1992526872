package p11

import (
	"crypto"
	"errors"
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"
)

// See https://github.com/ThalesIgnite/crypto11/blob/d334790e12893aa2f8a2c454b16003dfd9f7d2de/rsa.go
const (
	ErrUnsupportedRSAOptions = Error("hsm unsupported RSA option value")
	ErrHsmSign               = Error("hsm sign error")
	ErrHsmKeyNotFound        = Error("hsm key not found")
	ErrHsmNoSlot             = Error("hsm has no slot with a token")
)

// Pkcs11Session is a logged in session on the first slot carrying a token.
// A PKCS#11 session handles one operation at a time, so calls are
// serialized.
type Pkcs11Session struct {
	mu     sync.Mutex
	ctx    *pkcs11.Ctx
	handle pkcs11.SessionHandle
}

type Pkcs11PrivateKeyRSA struct {
	handle pkcs11.ObjectHandle
}

// OpenSession loads module, opens a session on the first token slot and logs
// in as the user with pin.
func OpenSession(module, pin string) (*Pkcs11Session, error) {
	ctx := pkcs11.New(module)
	if ctx == nil {
		return nil, fmt.Errorf("unable to load pkcs11 module %s", module)
	}
	if err := ctx.Initialize(); err != nil {
		ctx.Destroy()
		return nil, err
	}
	slots, err := ctx.GetSlotList(true)
	if err != nil {
		return nil, closeOnErr(ctx, err)
	}
	if len(slots) == 0 {
		return nil, closeOnErr(ctx, ErrHsmNoSlot)
	}
	handle, err := ctx.OpenSession(slots[0], pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return nil, closeOnErr(ctx, err)
	}
	if err := ctx.Login(handle, pkcs11.CKU_USER, pin); err != nil {
		ctx.CloseSession(handle)
		return nil, closeOnErr(ctx, err)
	}
	return &Pkcs11Session{ctx: ctx, handle: handle}, nil
}

func closeOnErr(ctx *pkcs11.Ctx, err error) error {
	ctx.Finalize()
	ctx.Destroy()
	return err
}

// FindPrivateKeyRSA looks up the private key object with label.
func (s *Pkcs11Session) FindPrivateKeyRSA(label string) (Pkcs11PrivateKeyRSA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}
	if err := s.ctx.FindObjectsInit(s.handle, template); err != nil {
		return Pkcs11PrivateKeyRSA{}, err
	}
	objects, _, err := s.ctx.FindObjects(s.handle, 1)
	if finalErr := s.ctx.FindObjectsFinal(s.handle); err == nil {
		err = finalErr
	}
	if err != nil {
		return Pkcs11PrivateKeyRSA{}, err
	}
	if len(objects) == 0 {
		return Pkcs11PrivateKeyRSA{}, fmt.Errorf("%w: %s", ErrHsmKeyNotFound, label)
	}
	return Pkcs11PrivateKeyRSA{handle: objects[0]}, nil
}

// SignPKCS1v15 hashes msg on the token and signs the digest with RSASSA
// PKCS#1 v1.5, which is deterministic for a given key and message.
func (s *Pkcs11Session) SignPKCS1v15(key Pkcs11PrivateKeyRSA, hashFunction crypto.Hash, msg []byte) ([]byte, error) {
	mechanism, err := hashToSignMechanism(hashFunction)
	if err != nil {
		return nil, errors.Join(ErrHsmSign, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mech := pkcs11.NewMechanism(mechanism, nil)
	if err := s.ctx.SignInit(s.handle, []*pkcs11.Mechanism{mech}, key.handle); err != nil {
		return nil, errors.Join(ErrHsmSign, err)
	}
	signature, err := s.ctx.Sign(s.handle, msg)
	if err != nil {
		return nil, errors.Join(ErrHsmSign, err)
	}
	return signature, nil
}

func (s *Pkcs11Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := errors.Join(s.ctx.Logout(s.handle), s.ctx.CloseSession(s.handle), s.ctx.Finalize())
	s.ctx.Destroy()
	return err
}

func hashToSignMechanism(hashFunction crypto.Hash) (uint, error) {
	switch hashFunction {
	case crypto.SHA1:
		return pkcs11.CKM_SHA1_RSA_PKCS, nil
	case crypto.SHA224:
		return pkcs11.CKM_SHA224_RSA_PKCS, nil
	case crypto.SHA256:
		return pkcs11.CKM_SHA256_RSA_PKCS, nil
	case crypto.SHA384:
		return pkcs11.CKM_SHA384_RSA_PKCS, nil
	case crypto.SHA512:
		return pkcs11.CKM_SHA512_RSA_PKCS, nil
	default:
		return 0, ErrUnsupportedRSAOptions
	}
}

type Error string

func (e Error) Error() string {
	return string(e)
}
