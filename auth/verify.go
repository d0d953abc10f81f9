// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package auth

import (
	"encoding/base64"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ed25519"

	"github.com/rorumall/go-ofscp"
)

var identity = edwards25519.NewIdentityPoint()

// checkPublicKey rejects keys that are not canonical curve points or that lie
// in the small-order subgroup, since those verify forged signatures.
func checkPublicKey(pub []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return errors.Errorf("auth: invalid public key length %d", len(pub))
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return errors.Wrap(err, "auth: public key is not a curve point")
	}
	if new(edwards25519.Point).MultByCofactor(p).Equal(identity) == 1 {
		return errors.New("auth: public key has small order")
	}
	return nil
}

// Verify checks sig over message.
func Verify(pub ed25519.PublicKey, message, sig []byte) error {
	if err := checkPublicKey(pub); err != nil {
		return err
	}
	if len(sig) != ed25519.SignatureSize {
		return errors.Wrapf(ofscp.ErrInvalidSignature, "signature length %d", len(sig))
	}
	if !ed25519.Verify(pub, message, sig) {
		return ofscp.ErrInvalidSignature
	}
	return nil
}

// VerifyEncoded is Verify with the key and signature in standard base64.
func VerifyEncoded(pubB64, sigB64 string, message []byte) error {
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return errors.Wrap(err, "auth: public key is not base64")
	}
	sig, err := decodeSignature(sigB64)
	if err != nil {
		return err
	}
	return Verify(pub, message, sig)
}

func decodeSignature(sigB64 string) ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, errors.Wrap(ofscp.ErrInvalidSignature, "signature is not base64")
	}
	return sig, nil
}
