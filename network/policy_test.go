// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelayFor(t *testing.T) {
	r := require.New(t)

	p := DefaultReconnectPolicy()
	r.Equal(10, p.MaxAttempts)
	r.Equal(time.Second, p.DelayFor(0))
	r.Equal(1500*time.Millisecond, p.DelayFor(1))
	r.Equal(2250*time.Millisecond, p.DelayFor(2))
	r.Equal(30*time.Second, p.DelayFor(9))
	r.Equal(30*time.Second, p.DelayFor(10000))

	prev := time.Duration(0)
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		d := p.DelayFor(attempt)
		r.True(d >= prev, "attempt %d: %s < %s", attempt, d, prev)
		r.True(d <= p.MaxDelay)
		prev = d
	}
}

func TestExhausted(t *testing.T) {
	r := require.New(t)

	p := ReconnectPolicy{MaxAttempts: 2}
	r.False(p.Exhausted(0))
	r.False(p.Exhausted(1))
	r.True(p.Exhausted(2))

	unlimited := ReconnectPolicy{}
	r.False(unlimited.Exhausted(1 << 20))
}

func TestStateString(t *testing.T) {
	r := require.New(t)

	r.Equal("connecting", State{Kind: Connecting}.String())
	r.Equal("reconnecting (attempt 3)", StateReconnecting(3).String())
	r.Equal("failed: nope", StateFailed("nope").String())
	r.True(StateReconnecting(1).IsConnecting())
	r.False(State{}.IsConnected())
}
