// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

// Package client is the HTTP side of an OFSCP provider connection.
//
// Every request can be signed with the device credential. The signed body is
// exactly the byte slice that goes on the wire.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/rorumall/go-ofscp"
	"github.com/rorumall/go-ofscp/auth"
	"github.com/rorumall/go-ofscp/keys"
	"github.com/rorumall/go-ofscp/message"
)

type Client struct {
	host   string
	http   *http.Client
	signer *auth.RequestAuthenticator

	logger log.Logger
}

// New creates a client for the provider at host. host may carry a scheme,
// see ofscp.BaseURL for the defaults.
func New(host string, opts ...Option) (*Client, error) {
	c := &Client{
		host: host,
		http: http.DefaultClient,
	}

	for i, o := range opts {
		if err := o(c); err != nil {
			return nil, errors.Wrapf(err, "client: option #%d failed", i)
		}
	}

	if c.logger == nil {
		c.logger = log.NewNopLogger()
	}
	c.logger = log.With(c.logger, "unit", "client", "host", host)

	return c, nil
}

// Host returns the provider host this client talks to.
func (c *Client) Host() string { return c.host }

// URL resolves path against the provider origin.
func (c *Client) URL(path string) string {
	return ofscp.JoinURL(c.host, path)
}

// Do sends one request and returns the body of a 2xx response.
// All other outcomes are *APIError, except for signing failures.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), rd)
	if err != nil {
		return nil, errors.Wrapf(err, "client: failed to build %s request", method)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	mode := keys.AuthModeUnsigned
	if c.signer != nil {
		mode, err = c.signer.Authenticate(req, body)
		if err != nil {
			return nil, errors.Wrapf(err, "client: failed to sign %s %s", method, path)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Status: resp.StatusCode, Cause: err}
	}

	level.Debug(c.logger).Log("event", "request", "method", method, "path", req.URL.Path, "auth", mode, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Kind: KindHTTP, Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in interface{}) ([]byte, error) {
	body, err := message.Marshal(in)
	if err != nil {
		return nil, &APIError{Kind: KindDecode, Cause: errors.Wrap(err, "encoding request body")}
	}
	return c.Do(ctx, method, path, body)
}

// GetBytes fetches path without decoding it.
func (c *Client) GetBytes(ctx context.Context, path string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Delete sends a DELETE and ignores the response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil)
	return err
}

// GetJSON fetches path and decodes the response into T.
func GetJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](resp)
}

// PostJSON sends in as JSON and decodes the response into T.
// An empty response body decodes like JSON null.
func PostJSON[T any](ctx context.Context, c *Client, path string, in interface{}) (T, error) {
	return roundtrip[T](ctx, c, http.MethodPost, path, in)
}

// PutJSON is PostJSON with PUT.
func PutJSON[T any](ctx context.Context, c *Client, path string, in interface{}) (T, error) {
	return roundtrip[T](ctx, c, http.MethodPut, path, in)
}

// PatchJSON is PostJSON with PATCH.
func PatchJSON[T any](ctx context.Context, c *Client, path string, in interface{}) (T, error) {
	return roundtrip[T](ctx, c, http.MethodPatch, path, in)
}

func roundtrip[T any](ctx context.Context, c *Client, method, path string, in interface{}) (T, error) {
	resp, err := c.sendJSON(ctx, method, path, in)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(bytes.TrimSpace(resp)) == 0 {
		resp = []byte("null")
	}
	return decode[T](resp)
}

func decode[T any](body []byte) (T, error) {
	var v T
	if err := message.Unmarshal(body, &v); err != nil {
		return v, &APIError{Kind: KindDecode, Body: string(body), Cause: err}
	}
	return v, nil
}
