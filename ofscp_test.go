// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package ofscp

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHost(t *testing.T) {
	a := assert.New(t)

	variants := []string{
		"https://Example.com/",
		"Example.com",
		"example.com",
		"http://example.com//",
		"wss://EXAMPLE.COM",
	}
	for _, v := range variants {
		a.Equal("example.com", NormalizeHost(v), "input %q", v)
	}

	for _, v := range append(variants, "localhost:8080", "HTTPS://chat.example/") {
		once := NormalizeHost(v)
		a.Equal(once, NormalizeHost(once), "not idempotent for %q", v)
	}

	a.Equal("localhost:8080", NormalizeHost("http://localhost:8080/"))
}

func TestNormalizeDomain(t *testing.T) {
	a := assert.New(t)
	a.Equal("example.com", NormalizeDomain("https://example.com/"))
	a.Equal("localhost:8080", NormalizeDomain("http://localhost:8080"))
	a.Equal("Example.com", NormalizeDomain("Example.com"), "domain case is preserved for actor strings")
}

func TestActor(t *testing.T) {
	r := require.New(t)

	a := NewActor("alice", "https://chat.example/")
	r.Equal("@alice@chat.example", a.String())
	r.Equal("alice@chat.example", a.UserID())

	parsed, err := ParseActor("@alice@chat.example")
	r.NoError(err)
	r.Equal(a, parsed)

	parsed, err = ParseActor("bob@localhost:8080")
	r.NoError(err)
	r.Equal("bob", parsed.Handle)
	r.Equal("localhost:8080", parsed.Domain)

	for _, bad := range []string{"", "@", "alice", "@alice@", "@@chat.example"} {
		_, err := ParseActor(bad)
		r.True(errors.Is(err, ErrInvalidActor), "expected invalid actor for %q", bad)
	}
}

func TestURLs(t *testing.T) {
	a := assert.New(t)

	a.Equal("http://localhost:8080", BaseURL("localhost:8080"))
	a.Equal("http://192.168.1.4", BaseURL("192.168.1.4/"))
	a.Equal("https://chat.example", BaseURL("chat.example"))
	a.Equal("http://chat.example", BaseURL("http://chat.example/"))
	a.Equal("", BaseURL(""))

	a.Equal("https://chat.example/api/me", JoinURL("chat.example", "/api/me"))
	a.Equal("/api/me", JoinURL("", "api/me"))
	a.Equal("https://other.example/x", JoinURL("chat.example", "https://other.example/x"))

	a.Equal("wss://chat.example/api/ws", WebsocketURL("chat.example", WebsocketPath))
	a.Equal("ws://127.0.0.1:9000/api/ws", WebsocketURL("127.0.0.1:9000", WebsocketPath))
	a.Equal("ws://chat.example/api/ws", WebsocketURL("http://chat.example", WebsocketPath))

	a.True(IsLocalAddress("10.0.0.1:80"))
	a.False(IsLocalAddress("chat.example"))
}
