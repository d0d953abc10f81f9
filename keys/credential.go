// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

// Package keys manages the per-device Ed25519 credential and the small JSON
// blob store it is persisted in.
package keys

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"go.cryptoscope.co/nocomment"
	"golang.org/x/crypto/ed25519"
)

// AuthMode says whether requests made with a credential carry a signature.
type AuthMode int

const (
	// AuthModeUnsigned is a key pair the provider has not acknowledged yet.
	AuthModeUnsigned AuthMode = iota
	// AuthModeSigned is a key pair with a provider-issued key id.
	AuthModeSigned
)

func (m AuthMode) String() string {
	switch m {
	case AuthModeSigned:
		return "signed"
	case AuthModeUnsigned:
		return "unsigned"
	}
	return "unknown"
}

// Credential is a device key pair plus the key id a provider issued for it.
// An empty KeyID marks the pair as not yet registered; it must not sign.
type Credential struct {
	Public [ed25519.PublicKeySize]byte
	Seed   [ed25519.SeedSize]byte
	KeyID  string
}

// Generate creates a fresh key pair from r. A nil reader uses crypto/rand.
func Generate(r io.Reader) (Credential, error) {
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return Credential{}, errors.Wrap(err, "keys: failed to generate ed25519 key pair")
	}
	var c Credential
	copy(c.Public[:], pub)
	copy(c.Seed[:], priv.Seed())
	return c, nil
}

// FromSeed derives the credential for a known 32 byte seed.
func FromSeed(seed []byte, keyID string) (Credential, error) {
	if n := len(seed); n != ed25519.SeedSize {
		return Credential{}, errors.Errorf("keys: invalid seed length %d", n)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	var c Credential
	copy(c.Seed[:], seed)
	copy(c.Public[:], priv.Public().(ed25519.PublicKey))
	c.KeyID = keyID
	return c, nil
}

// Mode reports whether this credential signs.
func (c Credential) Mode() AuthMode {
	if c.KeyID == "" {
		return AuthModeUnsigned
	}
	return AuthModeSigned
}

// WithKeyID returns a copy carrying the provider-issued key id.
func (c Credential) WithKeyID(id string) Credential {
	c.KeyID = id
	return c
}

// PublicKey returns the verifying key.
func (c Credential) PublicKey() ed25519.PublicKey {
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pub, c.Public[:])
	return pub
}

// PrivateKey expands the seed into the signing key.
func (c Credential) PrivateKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(c.Seed[:])
}

// PublicKeyBase64 is the form providers expect at registration and login.
func (c Credential) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(c.Public[:])
}

// the on-disk layout, base64 for both halves and null for a missing key id
type credentialJSON struct {
	PublicKey  string  `json:"public_key"`
	PrivateKey string  `json:"private_key"`
	KeyID      *string `json:"key_id"`
}

func (c Credential) MarshalJSON() ([]byte, error) {
	cj := credentialJSON{
		PublicKey:  base64.StdEncoding.EncodeToString(c.Public[:]),
		PrivateKey: base64.StdEncoding.EncodeToString(c.Seed[:]),
	}
	if c.KeyID != "" {
		id := c.KeyID
		cj.KeyID = &id
	}
	return json.Marshal(cj)
}

func (c *Credential) UnmarshalJSON(data []byte) error {
	var cj credentialJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return errors.Wrap(err, "keys: credential json decoding failed")
	}

	seed, err := base64.StdEncoding.DecodeString(cj.PrivateKey)
	if err != nil {
		return errors.Wrap(err, "keys: base64 decode of private key failed")
	}
	pub, err := base64.StdEncoding.DecodeString(cj.PublicKey)
	if err != nil {
		return errors.Wrap(err, "keys: base64 decode of public key failed")
	}

	var keyID string
	if cj.KeyID != nil {
		keyID = *cj.KeyID
	}
	derived, err := FromSeed(seed, keyID)
	if err != nil {
		return err
	}
	if string(derived.Public[:]) != string(pub) {
		return errors.New("keys: public key does not match private key")
	}
	*c = derived
	return nil
}

// ParseCredential json decodes a credential. Lines starting with # are ignored,
// so hand-edited key files can carry a comment header.
func ParseCredential(r io.Reader) (Credential, error) {
	var c Credential
	if err := json.NewDecoder(nocomment.NewReader(r)).Decode(&c); err != nil {
		return Credential{}, errors.Wrap(err, "keys: parse credential")
	}
	return c, nil
}
