// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

// Package auth implements the OFSCP request signing scheme.
//
// Every authenticated HTTP request and every WebSocket handshake signs the same
// canonical string:
//
//	METHOD "\n" PATH "\n" TIMESTAMP "\n" hex(sha256(BODY))
//
// with the device's Ed25519 key. PATH is the request path without query or
// fragment. HTTP requests carry the result in three X-OFSCP-* headers, handshakes
// carry it as query parameters because the upgrade request headers are not under
// the client's control. Verifier re-derives the identical string on the server side.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// TimestampFormat is RFC3339 in UTC.
const TimestampFormat = time.RFC3339

// BodyHash returns the lowercase hex sha256 of body. A nil body hashes like an empty one.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// CanonicalString builds the exact bytes that get signed.
func CanonicalString(method, path, timestamp string, body []byte) string {
	var sb strings.Builder
	sb.WriteString(method)
	sb.WriteByte('\n')
	sb.WriteString(path)
	sb.WriteByte('\n')
	sb.WriteString(timestamp)
	sb.WriteByte('\n')
	sb.WriteString(BodyHash(body))
	return sb.String()
}

// FormatTimestamp renders t the way it is placed in headers and the canonical string.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// stripQuery drops ?query and #fragment from a path.
func stripQuery(path string) string {
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		return path[:idx]
	}
	return path
}
