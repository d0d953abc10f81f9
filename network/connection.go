// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package network

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/rorumall/go-ofscp/message"
)

// DefaultQueueSize is the number of commands held while no socket is open.
const DefaultQueueSize = 256

// URLBuilder produces the signed websocket URL for one connection attempt.
// auth.HandshakeAuthenticator implements it.
type URLBuilder interface {
	URL() (string, error)
}

// URLBuilderFunc adapts a function to URLBuilder.
type URLBuilderFunc func() (string, error)

func (f URLBuilderFunc) URL() (string, error) { return f() }

// Incoming is an event frame together with the host it was received from.
type Incoming struct {
	Host     string
	Envelope message.Envelope[message.Event]
}

// Options are shared by all connections of a registry.
type Options struct {
	Logger log.Logger

	Policy ReconnectPolicy

	// Events receives every decoded event in arrival order. Frames are
	// dropped when it is nil.
	Events chan<- Incoming

	// QueueSize bounds the outbound command queue. Sends beyond it fail with ErrQueueFull.
	QueueSize int

	Dialer *websocket.Dialer

	// URLRetryDelay is waited after URLBuilder failed. It does not count as an attempt.
	URLRetryDelay time.Duration

	// OnState is called from the connection loop on every transition.
	OnState func(host string, s State)

	Metrics Metrics
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	if o.Policy == (ReconnectPolicy{}) {
		o.Policy = DefaultReconnectPolicy()
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.Dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = 10 * time.Second
		o.Dialer = &d
	}
	if o.URLRetryDelay <= 0 {
		o.URLRetryDelay = time.Second
	}
	o.Metrics = o.Metrics.withDefaults()
	return o
}

// Connection keeps one websocket to a provider host alive.
//
// Its loop dials with a freshly signed URL, runs a read and a write loop for
// the lifetime of each socket and redials with backoff when the socket is
// lost or a dial fails. It gives up in Failed once the policy is exhausted and
// stops in Disconnected after Close.
type Connection struct {
	host string
	urls URLBuilder
	opts Options
	log  log.Logger

	state atomic.Value // State

	queue chan message.Envelope[message.Command]

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	done      chan struct{}
}

// NewConnection prepares a connection. Nothing is dialed before Start.
func NewConnection(host string, urls URLBuilder, opts Options) *Connection {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		host:   host,
		urls:   urls,
		opts:   opts,
		log:    log.With(opts.Logger, "unit", "network", "host", host),
		queue:  make(chan message.Envelope[message.Command], opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.state.Store(State{Kind: Disconnected})
	return c
}

// Start launches the connection loop. Calling it again has no effect.
func (c *Connection) Start() {
	c.startOnce.Do(func() { go c.run() })
}

func (c *Connection) Host() string { return c.host }

// State can be read from any goroutine.
func (c *Connection) State() State {
	return c.state.Load().(State)
}

// Handle returns a sender for this connection.
func (c *Connection) Handle() *Handle {
	return &Handle{conn: c}
}

// Done is closed once the loop ended, after Close or in Failed.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close shuts the connection down without reconnecting. An open socket gets a
// normal closure frame. Close waits for the loop to end.
func (c *Connection) Close() error {
	c.cancel()
	c.startOnce.Do(func() {
		c.setState(State{Kind: Disconnected})
		close(c.done)
	})
	<-c.done
	return nil
}

func (c *Connection) setState(s State) {
	c.state.Store(s)
	level.Debug(c.log).Log("event", "state", "state", s)
	if c.opts.OnState != nil {
		c.opts.OnState(c.host, s)
	}
}

// sleep waits for d and reports false if the connection was closed meanwhile.
func (c *Connection) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Connection) run() {
	defer close(c.done)
	defer func() {
		switch c.State().Kind {
		case Failed, Disconnected:
		default:
			c.setState(State{Kind: Disconnected})
		}
	}()

	attempt := 0
	for c.ctx.Err() == nil {
		u, err := c.urls.URL()
		if err != nil {
			level.Warn(c.log).Log("event", "handshake url unavailable", "err", err)
			c.setState(State{Kind: Disconnected})
			if !c.sleep(c.opts.URLRetryDelay) {
				return
			}
			continue
		}

		if attempt == 0 {
			c.setState(State{Kind: Connecting})
		} else {
			c.setState(StateReconnecting(attempt))
		}

		c.opts.Metrics.Dials.Add(1)
		ws, resp, err := c.opts.Dialer.DialContext(c.ctx, u, nil)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.opts.Metrics.DialFailures.Add(1)
			logDialError(c.log, err, resp)

			if c.opts.Policy.Exhausted(attempt) {
				reason := fmt.Sprintf("max reconnect attempts (%d) exceeded", c.opts.Policy.MaxAttempts)
				level.Error(c.log).Log("event", "giving up", "reason", reason)
				c.setState(StateFailed(reason))
				return
			}

			delay := c.opts.Policy.DelayFor(attempt)
			level.Info(c.log).Log("event", "reconnect scheduled", "in", delay, "attempt", attempt+1)
			if !c.sleep(delay) {
				return
			}
			attempt++
			continue
		}

		attempt = 0
		start := time.Now()
		c.opts.Metrics.Sockets.Add(1)
		c.setState(State{Kind: Connected})
		level.Info(c.log).Log("event", "connected")

		err = c.serve(ws)
		c.opts.Metrics.Sockets.Add(-1)
		c.opts.Metrics.SessionDuration.Observe(time.Since(start).Seconds())

		c.setState(State{Kind: Disconnected})
		if c.ctx.Err() != nil {
			level.Info(c.log).Log("event", "closed")
			return
		}
		level.Info(c.log).Log("event", "connection lost", "err", err)

		// a provider that accepts and drops right away must not be hammered
		if !c.sleep(c.opts.Policy.DelayFor(0)) {
			return
		}
	}
}

func logDialError(l log.Logger, err error, resp *http.Response) {
	if resp != nil {
		level.Warn(l).Log("event", "dial failed", "status", resp.StatusCode, "err", err)
		return
	}
	level.Warn(l).Log("event", "dial failed", "err", err)
}

// serve runs the read and write loop for one socket. Whichever ends first ends both.
func (c *Connection) serve(ws *websocket.Conn) error {
	ctx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		err := c.readLoop(ctx, ws)
		finish(err)
		return err
	})
	g.Go(func() error {
		err := c.writeLoop(ctx, ws)
		finish(err)
		return err
	})

	err := <-done
	cancel()
	if cerr := ws.Close(); cerr != nil {
		level.Debug(c.log).Log("event", "socket close", "err", cerr)
	}
	g.Wait()
	return err
}

func (c *Connection) readLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				level.Info(c.log).Log("event", "close frame received")
				return nil
			}
			return errors.Wrap(err, "network: read failed")
		}
		if mt != websocket.TextMessage {
			continue
		}

		env, err := message.DecodeEvent(data)
		if err != nil {
			c.opts.Metrics.FramesDropped.Add(1)
			level.Warn(c.log).Log("event", "dropping malformed frame", "err", err)
			continue
		}
		c.opts.Metrics.FramesIn.Add(1)

		if c.opts.Events == nil {
			level.Debug(c.log).Log("event", "no event sink", "type", env.Payload.Type())
			continue
		}
		select {
		case c.opts.Events <- Incoming{Host: c.host, Envelope: env}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) writeLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			if c.ctx.Err() != nil {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
					level.Debug(c.log).Log("event", "close frame not sent", "err", err)
				}
			}
			return nil

		case env := <-c.queue:
			b, err := message.EncodeCommand(env)
			if err != nil {
				level.Error(c.log).Log("event", "dropping unencodable command", "err", err)
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return errors.Wrap(err, "network: write failed")
			}
			c.opts.Metrics.FramesOut.Add(1)
			level.Debug(c.log).Log("event", "sent", "type", env.Payload.Type(), "id", env.ID)
		}
	}
}
