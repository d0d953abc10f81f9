// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package client

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/rorumall/go-ofscp/message"
)

type ErrorKind uint8

const (
	// KindNetwork is a transport failure, no usable response was received.
	KindNetwork ErrorKind = iota
	// KindHTTP is a response with a non 2xx status.
	KindHTTP
	// KindDecode is a response body that could not be decoded (or a request body that could not be encoded).
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// APIError is returned by all calls that reached the point of sending.
type APIError struct {
	Kind   ErrorKind
	Status int
	Body   string
	Cause  error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("client: HTTP %d: %s", e.Status, e.Body)
	case KindDecode:
		return fmt.Sprintf("client: decode error: %s", e.Cause)
	}
	return fmt.Sprintf("client: network error: %s", e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

// Detail is the most helpful text for a user: the problem detail of an HTTP
// error if the body carries one, otherwise the error text.
func (e *APIError) Detail() string {
	if e.Kind == KindHTTP {
		if d, ok := TryProblemDetail(e.Body); ok {
			return d
		}
	}
	return e.Error()
}

// IsStatus reports whether err is an HTTP error with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == KindHTTP && ae.Status == status
}

// ProblemDetails is an RFC 7807 error body.
type ProblemDetails struct {
	Type     string  `json:"type"`
	Title    string  `json:"title"`
	Status   int     `json:"status"`
	Detail   *string `json:"detail,omitempty"`
	Instance *string `json:"instance,omitempty"`
}

// TryProblemDetail extracts detail, or title if detail is blank, from a problem body.
func TryProblemDetail(body string) (string, bool) {
	var pd ProblemDetails
	if err := message.Unmarshal([]byte(body), &pd); err != nil {
		return "", false
	}
	if pd.Detail != nil && strings.TrimSpace(*pd.Detail) != "" {
		return *pd.Detail, true
	}
	if strings.TrimSpace(pd.Title) != "" {
		return pd.Title, true
	}
	return "", false
}
