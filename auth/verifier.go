// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package auth

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ed25519"

	"github.com/rorumall/go-ofscp"
)

// KeyResolver looks up the registered public key for an actor's key id.
type KeyResolver func(actor ofscp.Actor, keyID string) (ed25519.PublicKey, error)

// Verifier checks signed requests on the provider side.
type Verifier struct {
	Resolve KeyResolver

	// MaxSkew bounds how far the signed timestamp may be from Now. Zero disables the check.
	MaxSkew time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// VerifyRequest checks the X-OFSCP-* headers of r against body.
func (v Verifier) VerifyRequest(r *http.Request, body []byte) (ofscp.Actor, error) {
	keyID, sig, err := ParseSignatureHeader(r.Header.Get(ofscp.HeaderSignature))
	if err != nil {
		return ofscp.Actor{}, err
	}
	return v.verify(
		r.Header.Get(ofscp.HeaderActor),
		r.Header.Get(ofscp.HeaderTimestamp),
		keyID, sig,
		CanonicalString(r.Method, r.URL.EscapedPath(), r.Header.Get(ofscp.HeaderTimestamp), body),
	)
}

// VerifyHandshake checks the signed query parameters of a WebSocket upgrade.
func (v Verifier) VerifyHandshake(r *http.Request) (ofscp.Actor, error) {
	q := r.URL.Query()
	ts := q.Get(ofscp.QueryTimestamp)
	return v.verify(
		q.Get(ofscp.QueryActor),
		ts,
		q.Get(ofscp.QueryKeyID),
		q.Get(ofscp.QuerySignature),
		CanonicalString(http.MethodGet, r.URL.EscapedPath(), ts, nil),
	)
}

func (v Verifier) verify(actorStr, ts, keyID, sig, canonical string) (ofscp.Actor, error) {
	if v.Resolve == nil {
		return ofscp.Actor{}, errors.New("auth: verifier has no key resolver")
	}
	actor, err := ofscp.ParseActor(actorStr)
	if err != nil {
		return ofscp.Actor{}, err
	}
	if keyID == "" {
		return ofscp.Actor{}, ErrMissingKeyID
	}

	signedAt, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ofscp.Actor{}, errors.Wrapf(err, "auth: bad timestamp %q", ts)
	}
	if v.MaxSkew > 0 {
		now := time.Now
		if v.Now != nil {
			now = v.Now
		}
		d := now().Sub(signedAt)
		if d < 0 {
			d = -d
		}
		if d > v.MaxSkew {
			return ofscp.Actor{}, ofscp.ErrStaleTimestamp{Timestamp: ts}
		}
	}

	pub, err := v.Resolve(actor, keyID)
	if err != nil {
		return ofscp.Actor{}, errors.Wrapf(err, "auth: no key %q for %s", keyID, actor)
	}
	sigBytes, err := decodeSignature(sig)
	if err != nil {
		return ofscp.Actor{}, err
	}
	if err := Verify(pub, []byte(canonical), sigBytes); err != nil {
		return ofscp.Actor{}, err
	}
	return actor, nil
}
