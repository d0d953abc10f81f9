// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package ofscp

import "strings"

// BaseURL returns the HTTP origin of a provider. An explicit scheme is kept,
// local addresses get http:// and everything else https://.
func BaseURL(host string) string {
	h := strings.TrimSpace(host)
	if h == "" {
		return ""
	}
	if strings.Contains(h, "://") {
		return strings.TrimRight(h, "/")
	}
	h = strings.TrimRight(h, "/")
	if IsLocalAddress(h) {
		return "http://" + h
	}
	return "https://" + h
}

// JoinURL appends path to the provider origin. Absolute URLs pass through untouched.
func JoinURL(host, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := BaseURL(host)
	if base == "" {
		return "/" + strings.TrimLeft(path, "/")
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

// WebsocketURL maps the provider origin onto ws:// or wss:// and appends path.
func WebsocketURL(host, path string) string {
	u := JoinURL(host, path)
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
