// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package session

import (
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/rorumall/go-ofscp/client"
	"github.com/rorumall/go-ofscp/keys"
	"github.com/rorumall/go-ofscp/ledger"
	"github.com/rorumall/go-ofscp/message"
	"github.com/rorumall/go-ofscp/network"
)

// Option allows to tune certain aspects of a session
type Option func(*Session) error

// WithLogger sets the logger that is also handed to the connections.
func WithLogger(l log.Logger) Option {
	return func(s *Session) error {
		s.logger = l
		return nil
	}
}

// WithNetwork sets the connection options. Events is owned by the session and overwritten.
func WithNetwork(opts network.Options) Option {
	return func(s *Session) error {
		s.netOpts = opts
		return nil
	}
}

// WithLedgerCapacity bounds the number of messages kept per channel. Zero keeps everything.
func WithLedgerCapacity(n int) Option {
	return func(s *Session) error {
		if n < 0 {
			return errors.Errorf("session: negative ledger capacity %d", n)
		}
		s.capacity = n
		return nil
	}
}

// WithKeyStore makes SignOut also forget the stored credential and session.
func WithKeyStore(ks *keys.Store) Option {
	return func(s *Session) error {
		s.keystore = ks
		return nil
	}
}

// WithClientOptions are passed to the HTTP clients used for history.
func WithClientOptions(opts ...client.Option) Option {
	return func(s *Session) error {
		s.clientOpts = append(s.clientOpts, opts...)
		return nil
	}
}

// WithEventBuffer sets how many undelivered events the connections may queue up before blocking.
func WithEventBuffer(n int) Option {
	return func(s *Session) error {
		if n < 0 {
			return errors.Errorf("session: negative event buffer %d", n)
		}
		s.eventBuffer = n
		return nil
	}
}

// WithMessageHook is called for every live message that was new to the ledger.
func WithMessageHook(fn func(host, channelID string, msg ledger.StoredMessage)) Option {
	return func(s *Session) error {
		s.onMessage = fn
		return nil
	}
}

// WithPresenceHook is called for every presence update.
func WithPresenceHook(fn func(host, userID string, p message.Presence)) Option {
	return func(s *Session) error {
		s.onPresence = fn
		return nil
	}
}
