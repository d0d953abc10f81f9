// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package ofscp

import "github.com/pkg/errors"

var (
	// ErrInvalidActor is returned for strings that are not @handle@domain.
	ErrInvalidActor = errors.New("ofscp: invalid actor")

	// ErrMissingKeyID means the credential was never acknowledged by a provider
	// and cannot produce a signature.
	ErrMissingKeyID = errors.New("ofscp: credential has no key id")

	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("ofscp: invalid signature")

	// ErrMalformedSignatureHeader is returned when X-OFSCP-Signature cannot be parsed.
	ErrMalformedSignatureHeader = errors.New("ofscp: malformed signature header")
)

// ErrStaleTimestamp is returned by a verifier configured with a skew window
// when the signed timestamp falls outside of it.
type ErrStaleTimestamp struct {
	Timestamp string
}

func (e ErrStaleTimestamp) Error() string {
	return "ofscp: signed timestamp outside of accepted window: " + e.Timestamp
}
