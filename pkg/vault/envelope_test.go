package vault

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEnvelope(t *testing.T) {
	salt := bytes.Repeat([]byte{0xaa}, 16)
	nonce := bytes.Repeat([]byte{0xbb}, 12)
	env := CreateEnvelope("abc", salt, nonce, "0xowner", SchemeSalted)

	require.NoError(t, env.Validate())
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", env.Salt)
	assert.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbbb", env.Nonce)

	gotSalt, err := env.SaltBytes()
	require.NoError(t, err)
	assert.Equal(t, salt, gotSalt)
	gotNonce, err := env.NonceBytes()
	require.NoError(t, err)
	assert.Equal(t, nonce, gotNonce)
}

func TestEnvelopeValidate(t *testing.T) {
	good := CreateEnvelope("abc", make([]byte, 16), make([]byte, 12), "o", "")

	tests := []struct {
		name   string
		mutate func(*AccessEnvelope)
	}{
		{"missing content id", func(e *AccessEnvelope) { e.ContentID = "" }},
		{"salt not hex", func(e *AccessEnvelope) { e.Salt = "zz" }},
		{"salt too short", func(e *AccessEnvelope) { e.Salt = "00" }},
		{"nonce too long", func(e *AccessEnvelope) { e.Nonce += "00" }},
		{"unknown scheme", func(e *AccessEnvelope) { e.Scheme = "rot13" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := good
			tt.mutate(&env)
			assert.ErrorIs(t, env.Validate(), ErrInvalidEnvelope)
		})
	}
}

func TestEnvelopeLegacyScheme(t *testing.T) {
	env := CreateEnvelope("abc", make([]byte, 16), make([]byte, 12), "o", "")
	scheme, err := env.ResolveScheme()
	require.NoError(t, err)
	assert.Equal(t, SchemeFixed, scheme)
}
