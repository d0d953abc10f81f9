// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

// Package ofscp holds the identity and addressing primitives shared by the
// client packages: actor strings, host normalization and the URL scheme rules
// used to reach a provider over HTTP and WebSocket.
package ofscp

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Header names carried by every signed HTTP request.
const (
	HeaderActor     = "X-OFSCP-Actor"
	HeaderTimestamp = "X-OFSCP-Timestamp"
	HeaderSignature = "X-OFSCP-Signature"
)

// Query parameter names carried by a signed WebSocket handshake.
const (
	QueryActor     = "actor"
	QueryTimestamp = "timestamp"
	QueryKeyID     = "keyId"
	QuerySignature = "signature"
)

// WebsocketPath is the provider's real-time endpoint.
const WebsocketPath = "/api/ws"

// Actor identifies a user on a provider, written as @handle@domain.
type Actor struct {
	Handle string
	Domain string
}

// NewActor builds an actor with its domain already stripped of any scheme.
func NewActor(handle, domain string) Actor {
	return Actor{Handle: handle, Domain: NormalizeDomain(domain)}
}

// String returns the wire form @handle@domain.
func (a Actor) String() string {
	return fmt.Sprintf("@%s@%s", a.Handle, a.Domain)
}

// UserID returns handle@domain, the key used for presence and message authorship.
func (a Actor) UserID() string {
	return a.Handle + "@" + a.Domain
}

// ParseActor parses @handle@domain. A bare handle@domain is accepted too.
func ParseActor(s string) (Actor, error) {
	trimmed := strings.TrimPrefix(s, "@")
	idx := strings.LastIndex(trimmed, "@")
	if idx <= 0 || idx == len(trimmed)-1 {
		return Actor{}, errors.Wrapf(ErrInvalidActor, "parse %q", s)
	}
	return Actor{Handle: trimmed[:idx], Domain: trimmed[idx+1:]}, nil
}

// NormalizeDomain strips a http(s) scheme and trailing slashes. The result is what
// goes into actor strings, so signer and verifier must both use it.
func NormalizeDomain(domain string) string {
	d := strings.TrimPrefix(domain, "http://")
	d = strings.TrimPrefix(d, "https://")
	return strings.TrimRight(d, "/")
}

// NormalizeHost produces the registry key for a provider host. Scheme and trailing
// slashes are dropped and the result is lower-cased, so https://Example.com/ and
// example.com name the same provider. It is idempotent.
func NormalizeHost(host string) string {
	h := strings.TrimSpace(host)
	for _, scheme := range []string{"http://", "https://", "ws://", "wss://"} {
		if len(h) >= len(scheme) && strings.EqualFold(h[:len(scheme)], scheme) {
			h = h[len(scheme):]
			break
		}
	}
	return strings.ToLower(strings.TrimRight(h, "/"))
}

// IsLocalAddress reports whether host (optionally with a port) is a loopback or
// private address that is reached without TLS.
func IsLocalAddress(host string) bool {
	hostPart := host
	if idx := strings.Index(hostPart, ":"); idx >= 0 {
		hostPart = hostPart[:idx]
	}
	switch hostPart {
	case "localhost", "127.0.0.1", "0.0.0.0":
		return true
	}
	return strings.HasPrefix(hostPart, "192.168.") || strings.HasPrefix(hostPart, "10.")
}
