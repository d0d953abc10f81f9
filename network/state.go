// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package network

import "fmt"

// StateKind enumerates the phases of a Connection.
type StateKind uint8

const (
	Disconnected StateKind = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

func (k StateKind) String() string {
	switch k {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("StateKind(%d)", k)
}

// State is the observable state of a Connection. Attempt is only set for
// Reconnecting and Reason only for Failed.
type State struct {
	Kind    StateKind
	Attempt int
	Reason  string
}

func StateReconnecting(attempt int) State {
	return State{Kind: Reconnecting, Attempt: attempt}
}

func StateFailed(reason string) State {
	return State{Kind: Failed, Reason: reason}
}

func (s State) IsConnected() bool { return s.Kind == Connected }

// IsConnecting is true while a dial is in progress or scheduled.
func (s State) IsConnecting() bool {
	return s.Kind == Connecting || s.Kind == Reconnecting
}

func (s State) String() string {
	switch s.Kind {
	case Reconnecting:
		return fmt.Sprintf("reconnecting (attempt %d)", s.Attempt)
	case Failed:
		return "failed: " + s.Reason
	}
	return s.Kind.String()
}
