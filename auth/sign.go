// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ed25519"

	"github.com/rorumall/go-ofscp"
	"github.com/rorumall/go-ofscp/keys"
)

// ErrMissingKeyID is returned by Sign for credentials in keys.AuthModeUnsigned.
// Callers decide whether that means "send unauthenticated" or "fail".
var ErrMissingKeyID = ofscp.ErrMissingKeyID

// SignedHeaders is produced fresh for each request. It is never persisted.
type SignedHeaders struct {
	Actor     string
	KeyID     string
	Timestamp string
	Signature string
}

// SignatureHeader renders the X-OFSCP-Signature value.
func (h SignedHeaders) SignatureHeader() string {
	return FormatSignatureHeader(h.KeyID, h.Signature)
}

// Sign signs a request at the current time.
func Sign(method, path string, body []byte, cred keys.Credential, actor ofscp.Actor) (SignedHeaders, error) {
	return SignAt(method, path, body, cred, actor, time.Now())
}

// SignAt signs a request with a fixed timestamp. The result is a pure function of
// its arguments: the same inputs give the same signature.
func SignAt(method, path string, body []byte, cred keys.Credential, actor ofscp.Actor, now time.Time) (SignedHeaders, error) {
	if cred.Mode() != keys.AuthModeSigned {
		return SignedHeaders{}, ErrMissingKeyID
	}

	ts := FormatTimestamp(now)
	canonical := CanonicalString(method, stripQuery(path), ts, body)

	return SignedHeaders{
		Actor:     actor.String(),
		KeyID:     cred.KeyID,
		Timestamp: ts,
		Signature: CreateSignature(cred.PrivateKey(), []byte(canonical)),
	}, nil
}

// CreateSignature signs message and returns the standard base64 encoding.
func CreateSignature(priv ed25519.PrivateKey, message []byte) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, message))
}

// FormatSignatureHeader renders keyId="<id>", signature="<base64>".
func FormatSignatureHeader(keyID, signature string) string {
	return fmt.Sprintf(`keyId="%s", signature="%s"`, keyID, signature)
}

// ParseSignatureHeader is the inverse of FormatSignatureHeader. Parts may come in
// any order; both must be present.
func ParseSignatureHeader(header string) (keyID, signature string, err error) {
	var haveKey, haveSig bool
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, `keyId="`):
			keyID = strings.TrimSuffix(strings.TrimPrefix(part, `keyId="`), `"`)
			haveKey = true
		case strings.HasPrefix(part, `signature="`):
			signature = strings.TrimSuffix(strings.TrimPrefix(part, `signature="`), `"`)
			haveSig = true
		}
	}
	if !haveKey {
		return "", "", errors.Wrap(ofscp.ErrMalformedSignatureHeader, "missing keyId")
	}
	if !haveSig {
		return "", "", errors.Wrap(ofscp.ErrMalformedSignatureHeader, "missing signature")
	}
	return keyID, signature, nil
}
