// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package auth

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rorumall/go-ofscp"
	"github.com/rorumall/go-ofscp/keys"
)

// HandshakeParams are the query values of a signed WebSocket upgrade.
type HandshakeParams struct {
	Actor     string
	Timestamp string
	KeyID     string
	Signature string
}

// Encode renders actor, timestamp, keyId and signature as a percent-encoded query.
func (p HandshakeParams) Encode() string {
	var sb strings.Builder
	pairs := [][2]string{
		{ofscp.QueryActor, p.Actor},
		{ofscp.QueryTimestamp, p.Timestamp},
		{ofscp.QueryKeyID, p.KeyID},
		{ofscp.QuerySignature, p.Signature},
	}
	for i, kv := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(kv[0])
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv[1]))
	}
	return sb.String()
}

// HandshakeAuthenticator signs WebSocket upgrade URLs.
//
// Providers reject stale timestamps, so nothing here is cached: every call to
// URL produces a new timestamp and signature and must be made once per
// connection attempt.
type HandshakeAuthenticator struct {
	Host       string
	Path       string
	Credential keys.Credential
	Actor      ofscp.Actor

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewHandshakeAuthenticator signs for the provider's default websocket path.
func NewHandshakeAuthenticator(host string, cred keys.Credential, actor ofscp.Actor) *HandshakeAuthenticator {
	return &HandshakeAuthenticator{
		Host:       host,
		Path:       ofscp.WebsocketPath,
		Credential: cred,
		Actor:      actor,
	}
}

func (ha *HandshakeAuthenticator) path() string {
	if ha.Path == "" {
		return ofscp.WebsocketPath
	}
	return ha.Path
}

// Params signs GET <path> with an empty body at the current time.
func (ha *HandshakeAuthenticator) Params() (HandshakeParams, error) {
	now := time.Now
	if ha.Now != nil {
		now = ha.Now
	}
	signed, err := SignAt(http.MethodGet, ha.path(), nil, ha.Credential, ha.Actor, now())
	if err != nil {
		return HandshakeParams{}, err
	}
	return HandshakeParams{
		Actor:     signed.Actor,
		Timestamp: signed.Timestamp,
		KeyID:     signed.KeyID,
		Signature: signed.Signature,
	}, nil
}

// URL returns a freshly signed ws:// or wss:// URL.
func (ha *HandshakeAuthenticator) URL() (string, error) {
	params, err := ha.Params()
	if err != nil {
		return "", err
	}
	return ofscp.WebsocketURL(ha.Host, ha.path()) + "?" + params.Encode(), nil
}
