// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package network

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/metrics/generic"
	"github.com/stretchr/testify/require"

	"github.com/rorumall/go-ofscp"
	"github.com/rorumall/go-ofscp/internal/testutils"
	"github.com/rorumall/go-ofscp/keys"
	"github.com/rorumall/go-ofscp/message"
)

const waitFor = 5 * time.Second

var fastPolicy = ReconnectPolicy{
	MaxAttempts:  5,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
}

// stateRecorder collects transitions and signals every time one of kind is reached.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
	reach  map[StateKind]chan struct{}
}

func newStateRecorder() *stateRecorder {
	sr := &stateRecorder{reach: make(map[StateKind]chan struct{})}
	for _, k := range []StateKind{Disconnected, Connecting, Connected, Reconnecting, Failed} {
		sr.reach[k] = make(chan struct{}, 16)
	}
	return sr
}

func (sr *stateRecorder) record(_ string, s State) {
	sr.mu.Lock()
	sr.states = append(sr.states, s)
	sr.mu.Unlock()
	select {
	case sr.reach[s.Kind] <- struct{}{}:
	default:
	}
}

func (sr *stateRecorder) snapshot() []State {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	out := make([]State, len(sr.states))
	copy(out, sr.states)
	return out
}

func (sr *stateRecorder) await(t *testing.T, k StateKind) {
	t.Helper()
	select {
	case <-sr.reach[k]:
	case <-time.After(waitFor):
		t.Fatalf("state %s not reached, got %v", k, sr.snapshot())
	}
}

type fixture struct {
	prov   *testutils.Provider
	cred   keys.Credential
	actor  ofscp.Actor
	states *stateRecorder
	events chan Incoming
	opts   Options
}

func newFixture(t *testing.T) *fixture {
	logger := testutils.NewRelativeTimeLogger(nil)
	prov := testutils.NewProvider(t, logger)

	cred, err := keys.FromSeed(bytes.Repeat([]byte{3}, 32), "key-alice")
	require.NoError(t, err)
	prov.RegisterKey("alice", cred.KeyID, cred.PublicKey())

	f := &fixture{
		prov:   prov,
		cred:   cred,
		actor:  ofscp.NewActor("alice", prov.Host()),
		states: newStateRecorder(),
		events: make(chan Incoming, 16),
	}
	f.opts = Options{
		Logger:  logger,
		Policy:  fastPolicy,
		Events:  f.events,
		OnState: f.states.record,
	}
	return f
}

func (f *fixture) nextEvent(t *testing.T) Incoming {
	t.Helper()
	select {
	case in := <-f.events:
		return in
	case <-time.After(waitFor):
		t.Fatal("no event received")
	}
	return Incoming{}
}

func (f *fixture) nextCommand(t *testing.T) testutils.ReceivedCommand {
	t.Helper()
	select {
	case rc := <-f.prov.Commands():
		return rc
	case <-time.After(waitFor):
		t.Fatal("provider received no command")
	}
	return testutils.ReceivedCommand{}
}

func TestReconnectUntilConnected(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)

	dials, failures := generic.NewCounter("dials"), generic.NewCounter("dial_failures")
	sockets := generic.NewGauge("sockets")
	f.opts.Policy.MaxAttempts = 2
	f.opts.Metrics = Metrics{Dials: dials, DialFailures: failures, Sockets: sockets}

	f.prov.RejectHandshakes(2)

	reg := NewRegistry(f.opts)
	defer reg.ClearAll()
	r.NoError(reg.Connect(f.prov.Host(), f.actor, f.cred))
	f.states.await(t, Connected)

	r.Equal([]State{
		{Kind: Connecting},
		StateReconnecting(1),
		StateReconnecting(2),
		{Kind: Connected},
	}, f.states.snapshot())
	r.Equal(3, f.prov.Handshakes())
	r.Equal(float64(3), dials.Value())
	r.Equal(float64(2), failures.Value())
	r.Equal(float64(1), sockets.Value())

	r.True(reg.State(f.prov.Host()).IsConnected())

	// same host in another spelling is the same entry
	r.NoError(reg.Connect("HTTP://"+strings.ToUpper(f.prov.Host())+"/", f.actor, f.cred))
	r.Equal(uint(1), reg.Count())
	r.Equal(3, f.prov.Handshakes())
}

func TestGiveUpAfterMaxAttempts(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)

	f.opts.Policy.MaxAttempts = 1
	f.prov.RejectHandshakes(100)

	reg := NewRegistry(f.opts)
	defer reg.ClearAll()
	r.NoError(reg.Connect(f.prov.Host(), f.actor, f.cred))
	f.states.await(t, Failed)

	states := f.states.snapshot()
	r.Equal([]State{{Kind: Connecting}, StateReconnecting(1)}, states[:2])
	last := states[len(states)-1]
	r.Equal(Failed, last.Kind)
	r.Contains(last.Reason, "max reconnect attempts (1)")

	h, ok := reg.Handle(f.prov.Host())
	r.True(ok)
	r.Eventually(func() bool {
		return h.Subscribe("c") == ErrClosed
	}, waitFor, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	r.Equal(2, f.prov.Handshakes(), "no third dial")
	r.Equal(Failed, reg.State(f.prov.Host()).Kind)

	// an explicit connect starts over
	f.prov.RejectHandshakes(0)
	r.NoError(reg.Connect(f.prov.Host(), f.actor, f.cred))
	f.states.await(t, Connected)
	r.Equal(3, f.prov.Handshakes())
}

func TestCommandsAndEvents(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)

	reg := NewRegistry(f.opts)
	defer reg.ClearAll()
	r.NoError(reg.Connect(f.prov.Host(), f.actor, f.cred))

	// queued before the socket is up
	h, ok := reg.Handle(f.prov.Host())
	r.True(ok)
	r.NoError(h.Subscribe("chan-1"))
	r.NoError(h.SendWithCorrelation(message.Unsubscribe{ChannelID: "chan-0"}, "corr-1"))

	rc := f.nextCommand(t)
	r.Equal(f.actor, rc.Actor)
	r.Equal(message.Subscribe{ChannelID: "chan-1"}, rc.Envelope.Payload)
	r.Empty(rc.Envelope.CorrelationID)

	rc = f.nextCommand(t)
	r.Equal(message.Unsubscribe{ChannelID: "chan-0"}, rc.Envelope.Payload)
	r.Equal("corr-1", rc.Envelope.CorrelationID)

	// a bad frame is dropped and the socket stays up
	r.NoError(f.prov.BroadcastRaw([]byte(`{"garbage":true}`)))
	r.NoError(f.prov.Broadcast(message.PresenceUpdate{
		UserHandle: "bob",
		UserDomain: f.prov.Host(),
		Presence:   message.Presence{Availability: message.Away},
	}))
	r.NoError(h.SendMessage("chan-1", "hello", "nonce-1"))

	in := f.nextEvent(t)
	r.Equal(ofscp.NormalizeHost(f.prov.Host()), in.Host)
	pu, ok := in.Envelope.Payload.(message.PresenceUpdate)
	r.True(ok, "%T", in.Envelope.Payload)
	r.Equal(message.Away, pu.Presence.Availability)

	rc = f.nextCommand(t)
	mc, ok := rc.Envelope.Payload.(message.MessageCreate)
	r.True(ok)
	r.Equal("nonce-1", mc.Nonce)

	in = f.nextEvent(t)
	r.Equal(message.Ack{Nonce: "nonce-1", MessageID: "msg-1"}, in.Envelope.Payload)

	in = f.nextEvent(t)
	mn, ok := in.Envelope.Payload.(message.MessageNew)
	r.True(ok)
	r.Equal("hello", mn.Message.Content.Text)
	r.Equal(f.actor.UserID(), mn.Message.Author.UserID())

	r.True(reg.State(f.prov.Host()).IsConnected())
}

func TestReconnectAfterDrop(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)

	reg := NewRegistry(f.opts)
	defer reg.ClearAll()
	r.NoError(reg.Connect(f.prov.Host(), f.actor, f.cred))
	f.states.await(t, Connected)
	r.Eventually(func() bool { return f.prov.Sockets() == 1 }, waitFor, time.Millisecond)

	f.prov.DropConnections()
	f.states.await(t, Disconnected)
	f.states.await(t, Connected)

	r.Equal(2, f.prov.Handshakes())
	states := f.states.snapshot()
	r.Equal([]State{
		{Kind: Connecting},
		{Kind: Connected},
		{Kind: Disconnected},
		{Kind: Connecting},
		{Kind: Connected},
	}, states)
}

func TestDisconnectIsFinal(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)

	reg := NewRegistry(f.opts)
	r.NoError(reg.Connect(f.prov.Host(), f.actor, f.cred))
	f.states.await(t, Connected)
	r.Eventually(func() bool { return f.prov.Sockets() == 1 }, waitFor, time.Millisecond)

	h, ok := reg.Handle(f.prov.Host())
	r.True(ok)

	r.NoError(reg.Disconnect(f.prov.Host()))
	r.Equal(uint(0), reg.Count())
	r.Equal(Disconnected, reg.State(f.prov.Host()).Kind)
	r.Equal(ErrClosed, h.Subscribe("x"))

	r.Eventually(func() bool { return f.prov.Sockets() == 0 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	r.Equal(1, f.prov.Handshakes())

	_, ok = reg.Handle(f.prov.Host())
	r.False(ok)
	r.NoError(reg.Disconnect("unknown.example"))
}

func TestBoundedQueue(t *testing.T) {
	r := require.New(t)

	dropped := generic.NewCounter("dropped")
	c := NewConnection("nowhere.example", URLBuilderFunc(func() (string, error) {
		return "ws://127.0.0.1:1/api/ws", nil
	}), Options{QueueSize: 2, Metrics: Metrics{FramesDropped: dropped}})

	h := c.Handle()
	r.NoError(h.Subscribe("a"))
	r.NoError(h.Subscribe("b"))
	r.Equal(ErrQueueFull, h.Subscribe("c"))
	r.Equal(float64(1), dropped.Value())

	r.NoError(c.Close())
	r.Equal(ErrClosed, h.Subscribe("d"))
	r.Equal(Disconnected, c.State().Kind)

	c.Start() // no effect after Close
	r.Equal(Disconnected, c.State().Kind)
}

func TestURLBuilderFailureIsNotAnAttempt(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)

	var mu sync.Mutex
	calls := 0
	urls := URLBuilderFunc(func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= 3 {
			return "", keys.Error{Code: keys.ErrorCodeNoSuchKey, Key: keys.CredentialKey}
		}
		return "ws://" + f.prov.Host() + ofscp.WebsocketPath + "?actor=x", nil
	})

	f.opts.Policy.MaxAttempts = 1
	f.opts.URLRetryDelay = time.Millisecond
	reg := NewRegistry(f.opts)
	defer reg.ClearAll()
	r.NoError(reg.ConnectWith(f.prov.Host(), urls))

	// the provider rejects the unsigned url, so this only fails after two real dials
	f.states.await(t, Failed)
	r.Equal(2, f.prov.Handshakes())

	states := f.states.snapshot()
	r.Equal([]State{
		{Kind: Disconnected},
		{Kind: Disconnected},
		{Kind: Disconnected},
		{Kind: Connecting},
		StateReconnecting(1),
	}, states[:5])
}

func TestInstrumentedTracker(t *testing.T) {
	r := require.New(t)
	f := newFixture(t)

	tracked := generic.NewGauge("tracked")
	tr := NewInstrumentedTracker(NewRegistry(f.opts), tracked)

	r.NoError(tr.Connect(f.prov.Host(), f.actor, f.cred))
	r.Equal(float64(1), tracked.Value())
	f.states.await(t, Connected)

	r.NoError(tr.ClearAll())
	r.Equal(float64(0), tracked.Value())
	r.Equal(uint(0), tr.Count())
}
