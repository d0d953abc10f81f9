// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package auth

import (
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/rorumall/go-ofscp"
	"github.com/rorumall/go-ofscp/keys"
)

// RequestAuthenticator adds the X-OFSCP-* headers to outgoing HTTP requests.
//
// Without a key id the request is left untouched and goes out unauthenticated,
// which is what a device does before its key is registered. Set RequireSigned
// to make that case an error instead.
type RequestAuthenticator struct {
	Credential    keys.Credential
	Actor         ofscp.Actor
	RequireSigned bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Authenticate signs req over body. body must be the exact bytes that will be sent.
// It returns the mode that was applied.
func (ra RequestAuthenticator) Authenticate(req *http.Request, body []byte) (keys.AuthMode, error) {
	if ra.Credential.Mode() != keys.AuthModeSigned {
		if ra.RequireSigned {
			return keys.AuthModeUnsigned, errors.Wrap(ErrMissingKeyID, "auth: refusing to send unsigned request")
		}
		return keys.AuthModeUnsigned, nil
	}

	now := time.Now
	if ra.Now != nil {
		now = ra.Now
	}

	signed, err := SignAt(req.Method, req.URL.EscapedPath(), body, ra.Credential, ra.Actor, now())
	if err != nil {
		return keys.AuthModeUnsigned, err
	}

	req.Header.Set(ofscp.HeaderActor, signed.Actor)
	req.Header.Set(ofscp.HeaderTimestamp, signed.Timestamp)
	req.Header.Set(ofscp.HeaderSignature, signed.SignatureHeader())
	return keys.AuthModeSigned, nil
}
