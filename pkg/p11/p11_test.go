package p11

import (
	"crypto"
	"errors"
	"testing"

	"github.com/miekg/pkcs11"
)

func TestHashToSignMechanism(t *testing.T) {
	tests := []struct {
		hash crypto.Hash
		want uint
	}{
		{crypto.SHA1, pkcs11.CKM_SHA1_RSA_PKCS},
		{crypto.SHA256, pkcs11.CKM_SHA256_RSA_PKCS},
		{crypto.SHA512, pkcs11.CKM_SHA512_RSA_PKCS},
	}
	for _, tt := range tests {
		got, err := hashToSignMechanism(tt.hash)
		if err != nil {
			t.Fatalf("%v: %v", tt.hash, err)
		}
		if got != tt.want {
			t.Errorf("%v: got %#x, want %#x", tt.hash, got, tt.want)
		}
	}

	if _, err := hashToSignMechanism(crypto.MD5); !errors.Is(err, ErrUnsupportedRSAOptions) {
		t.Errorf("md5: got %v", err)
	}
}

func TestOpenSessionMissingModule(t *testing.T) {
	if _, err := OpenSession("/nonexistent/libsofthsm2.so", "1234"); err == nil {
		t.Fatal("expected an error for a missing module")
	}
}
