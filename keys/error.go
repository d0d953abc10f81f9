// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package keys

import "fmt"

type ErrorCode uint8

const (
	ErrorCodeInternal ErrorCode = iota
	ErrorCodeNoSuchKey
	ErrorCodeInvalidKey
)

func (code ErrorCode) String() string {
	switch code {
	case ErrorCodeInternal:
		return "internal keys error"
	case ErrorCodeNoSuchKey:
		return "no such key"
	case ErrorCodeInvalidKey:
		return "invalid store key"
	default:
		return ""
	}
}

// Error is returned by the Store.
type Error struct {
	Code ErrorCode
	Key  string

	Cause error
}

func (err Error) Error() string {
	if err.Code == ErrorCodeInternal && err.Cause != nil {
		return fmt.Sprintf("keys: %s: %s", err.Key, err.Cause)
	}
	return fmt.Sprintf("keys: %s (%q)", err.Code, err.Key)
}

func (err Error) Unwrap() error { return err.Cause }

// IsNoSuchKey reports whether err says the requested blob does not exist.
func IsNoSuchKey(err error) bool {
	kerr, ok := err.(Error)
	if !ok {
		return false
	}
	return kerr.Code == ErrorCodeNoSuchKey
}
