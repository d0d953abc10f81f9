// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package client

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/rorumall/go-ofscp"
	"github.com/rorumall/go-ofscp/auth"
	"github.com/rorumall/go-ofscp/keys"
)

// Option allows to tune certain aspects of a client
type Option func(*Client) error

// WithLogger sets a different logger.
func WithLogger(l log.Logger) Option {
	return func(c *Client) error {
		c.logger = l
		return nil
	}
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("client: nil http client")
		}
		c.http = hc
		return nil
	}
}

// WithSigning signs every request as actor. Credentials without a key id send
// unsigned requests, unless WithRequireSigned is also given.
func WithSigning(cred keys.Credential, actor ofscp.Actor) Option {
	return func(c *Client) error {
		if actor.Handle == "" || actor.Domain == "" {
			return errors.Errorf("client: incomplete actor %q", actor)
		}
		if c.signer == nil {
			c.signer = &auth.RequestAuthenticator{}
		}
		c.signer.Credential = cred
		c.signer.Actor = actor
		return nil
	}
}

// WithRequireSigned makes requests fail instead of going out unsigned.
func WithRequireSigned() Option {
	return func(c *Client) error {
		if c.signer == nil {
			c.signer = &auth.RequestAuthenticator{}
		}
		c.signer.RequireSigned = true
		return nil
	}
}
