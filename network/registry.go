// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package network

import (
	"sort"
	"sync"

	"github.com/go-kit/kit/metrics"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/rorumall/go-ofscp"
	"github.com/rorumall/go-ofscp/auth"
	"github.com/rorumall/go-ofscp/keys"
)

// Tracker is the set of operations the application uses to manage its
// provider connections. Registry implements it.
type Tracker interface {
	// Connect starts a connection to host unless a live one exists.
	Connect(host string, actor ofscp.Actor, cred keys.Credential) error
	Handle(host string) (*Handle, bool)
	State(host string) State
	Disconnect(host string) error
	ClearAll() error
	Count() uint
}

// Registry maps normalized hosts to their connections.
//
// The lock is only held for map operations, never while dialing or closing.
type Registry struct {
	opts Options

	mu    sync.Mutex
	conns map[string]*Connection
}

var _ Tracker = (*Registry)(nil)

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:  opts,
		conns: make(map[string]*Connection),
	}
}

// Connect is idempotent: while a connection for the host is running the call
// does nothing. A connection that gave up (Failed) is replaced by a new one.
func (r *Registry) Connect(host string, actor ofscp.Actor, cred keys.Credential) error {
	key := ofscp.NormalizeHost(host)
	if key == "" {
		return errors.New("network: empty host")
	}
	return r.ConnectWith(key, auth.NewHandshakeAuthenticator(key, cred, actor))
}

// ConnectWith is Connect with a custom URL source.
func (r *Registry) ConnectWith(host string, urls URLBuilder) error {
	key := ofscp.NormalizeHost(host)
	if key == "" {
		return errors.New("network: empty host")
	}

	r.mu.Lock()
	old, has := r.conns[key]
	if has && !isDone(old) {
		r.mu.Unlock()
		return nil
	}
	c := NewConnection(key, urls, r.opts)
	r.conns[key] = c
	r.mu.Unlock()

	if has {
		old.Close()
	}
	c.Start()
	return nil
}

func isDone(c *Connection) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func (r *Registry) lookup(host string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, has := r.conns[ofscp.NormalizeHost(host)]
	return c, has
}

func (r *Registry) Handle(host string) (*Handle, bool) {
	c, has := r.lookup(host)
	if !has {
		return nil, false
	}
	return c.Handle(), true
}

// State returns Disconnected for unknown hosts.
func (r *Registry) State(host string) State {
	c, has := r.lookup(host)
	if !has {
		return State{Kind: Disconnected}
	}
	return c.State()
}

// Disconnect closes and forgets the connection to host.
func (r *Registry) Disconnect(host string) error {
	key := ofscp.NormalizeHost(host)
	r.mu.Lock()
	c, has := r.conns[key]
	delete(r.conns, key)
	r.mu.Unlock()
	if !has {
		return nil
	}
	return c.Close()
}

// ClearAll closes every connection, as done on sign-out.
func (r *Registry) ClearAll() error {
	r.mu.Lock()
	all := r.conns
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	var me *multierror.Error
	for host, c := range all {
		if err := c.Close(); err != nil {
			me = multierror.Append(me, errors.Wrapf(err, "network: failed to close %s", host))
		}
	}
	return me.ErrorOrNil()
}

func (r *Registry) Count() uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint(len(r.conns))
}

// Hosts lists the tracked hosts, sorted.
func (r *Registry) Hosts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	hosts := make([]string, 0, len(r.conns))
	for h := range r.conns {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

type instrumentedTracker struct {
	root Tracker

	count metrics.Gauge
}

// NewInstrumentedTracker reports the number of tracked hosts to count after every change.
func NewInstrumentedTracker(root Tracker, count metrics.Gauge) Tracker {
	return &instrumentedTracker{root: root, count: count}
}

func (it instrumentedTracker) update() {
	it.count.Set(float64(it.root.Count()))
}

func (it instrumentedTracker) Connect(host string, actor ofscp.Actor, cred keys.Credential) error {
	err := it.root.Connect(host, actor, cred)
	it.update()
	return err
}

func (it instrumentedTracker) Handle(host string) (*Handle, bool) {
	return it.root.Handle(host)
}

func (it instrumentedTracker) State(host string) State {
	return it.root.State(host)
}

func (it instrumentedTracker) Disconnect(host string) error {
	err := it.root.Disconnect(host)
	it.update()
	return err
}

func (it instrumentedTracker) ClearAll() error {
	err := it.root.ClearAll()
	it.update()
	return err
}

func (it instrumentedTracker) Count() uint {
	n := it.root.Count()
	it.count.Set(float64(n))
	return n
}
