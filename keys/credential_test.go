// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package keys

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"
)

func TestCredentialMode(t *testing.T) {
	r := require.New(t)

	cred, err := Generate(bytes.NewReader(bytes.Repeat([]byte{7}, 64)))
	r.NoError(err)
	r.Equal(AuthModeUnsigned, cred.Mode())
	r.Equal("unsigned", cred.Mode().String())

	signed := cred.WithKeyID("k1")
	r.Equal(AuthModeSigned, signed.Mode())
	r.Equal(AuthModeUnsigned, cred.Mode(), "WithKeyID must not mutate the receiver")

	msg := []byte("hello")
	sig := ed25519.Sign(signed.PrivateKey(), msg)
	r.True(ed25519.Verify(signed.PublicKey(), msg, sig))
}

func TestCredentialJSON(t *testing.T) {
	r := require.New(t)

	cred, err := Generate(nil)
	r.NoError(err)

	unregistered, err := json.Marshal(cred)
	r.NoError(err)
	r.Contains(string(unregistered), `"key_id":null`)

	var back Credential
	r.NoError(json.Unmarshal(unregistered, &back))
	r.Equal(cred, back)

	cred = cred.WithKeyID("dev-42")
	registered, err := json.Marshal(cred)
	r.NoError(err)
	r.Contains(string(registered), `"key_id":"dev-42"`)
	r.Contains(string(registered), cred.PublicKeyBase64())

	back = Credential{}
	r.NoError(json.Unmarshal(registered, &back))
	r.Equal(cred, back)
}

func TestParseCredentialWithComments(t *testing.T) {
	r := require.New(t)

	cred, err := Generate(nil)
	r.NoError(err)
	cred = cred.WithKeyID("abc")

	body, err := json.Marshal(cred)
	r.NoError(err)

	file := "# device key for alice@chat.example\n# do not share\n" + string(body) + "\n"
	parsed, err := ParseCredential(strings.NewReader(file))
	r.NoError(err)
	r.Equal(cred, parsed)
}

func TestCredentialMismatchedHalves(t *testing.T) {
	r := require.New(t)

	a, err := Generate(nil)
	r.NoError(err)
	b, err := Generate(nil)
	r.NoError(err)

	var mixed = map[string]interface{}{
		"public_key":  b.PublicKeyBase64(),
		"private_key": mustMarshalSeed(t, a),
		"key_id":      nil,
	}
	body, err := json.Marshal(mixed)
	r.NoError(err)

	var c Credential
	r.Error(json.Unmarshal(body, &c))
}

func mustMarshalSeed(t *testing.T, c Credential) string {
	var raw map[string]interface{}
	body, err := json.Marshal(c)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &raw))
	return raw["private_key"].(string)
}

func TestFromSeedLength(t *testing.T) {
	_, err := FromSeed([]byte{1, 2, 3}, "")
	require.Error(t, err)
}
