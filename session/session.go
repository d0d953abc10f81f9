// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

// Package session is what an application holds on to while signed in. It owns
// the connection registry, the message and presence stores and the bookkeeping
// of messages waiting for their ack.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/rorumall/go-ofscp"
	"github.com/rorumall/go-ofscp/client"
	"github.com/rorumall/go-ofscp/keys"
	"github.com/rorumall/go-ofscp/ledger"
	"github.com/rorumall/go-ofscp/message"
	"github.com/rorumall/go-ofscp/network"
)

// ErrNotConnected is returned for hosts without a connection.
var ErrNotConnected = errors.New("session: not connected")

const (
	defaultEventBuffer = 64
	notifyBuffer       = 32
)

// PendingMessage is a sent message the provider has not acknowledged yet.
type PendingMessage struct {
	Nonce     string
	Host      string
	ChannelID string
	Body      string
	SentAt    time.Time

	seq uint64
}

// Acked pairs a pending message with the id the provider gave it.
type Acked struct {
	PendingMessage
	MessageID string
}

// ProviderError is an error event sent by a provider.
type ProviderError struct {
	Host          string
	Code          string
	Message       string
	CorrelationID *string
}

func (pe ProviderError) Error() string {
	if pe.CorrelationID != nil {
		return fmt.Sprintf("session: %s reported %s: %s (correlation %s)", pe.Host, pe.Code, pe.Message, *pe.CorrelationID)
	}
	return fmt.Sprintf("session: %s reported %s: %s", pe.Host, pe.Code, pe.Message)
}

// MessageOptions are the optional parts of a message.
type MessageOptions struct {
	Title       *string
	Type        *message.MessageType
	Attachments []message.Attachment
	// ParentID makes the message a reply.
	ParentID *string
}

type Session struct {
	actor ofscp.Actor
	cred  keys.Credential

	logger      log.Logger
	netOpts     network.Options
	clientOpts  []client.Option
	capacity    int
	eventBuffer int
	keystore    *keys.Store

	onMessage  func(host, channelID string, msg ledger.StoredMessage)
	onPresence func(host, userID string, p message.Presence)

	tracker  network.Tracker
	events   chan network.Incoming
	messages *ledger.Store
	presence *ledger.PresenceBook

	mu      sync.Mutex
	seq     uint64
	pending map[string]PendingMessage

	acks chan Acked
	errs chan ProviderError
}

// New prepares a session for actor signing with cred. Nothing is connected yet.
func New(cred keys.Credential, actor ofscp.Actor, opts ...Option) (*Session, error) {
	s := &Session{
		actor:       actor,
		cred:        cred,
		capacity:    ledger.DefaultCapacity,
		eventBuffer: defaultEventBuffer,
		pending:     make(map[string]PendingMessage),
		acks:        make(chan Acked, notifyBuffer),
		errs:        make(chan ProviderError, notifyBuffer),
	}

	for i, o := range opts {
		if err := o(s); err != nil {
			return nil, errors.Wrapf(err, "session: option #%d failed", i)
		}
	}

	if s.logger == nil {
		s.logger = log.NewNopLogger()
	}
	s.logger = log.With(s.logger, "unit", "session", "actor", actor)

	s.events = make(chan network.Incoming, s.eventBuffer)
	s.messages = ledger.NewStore(s.capacity)
	s.presence = ledger.NewPresenceBook()

	netOpts := s.netOpts
	netOpts.Events = s.events
	if netOpts.Logger == nil {
		netOpts.Logger = s.logger
	}
	var tracker network.Tracker = network.NewRegistry(netOpts)
	if netOpts.Metrics.Tracked != nil {
		tracker = network.NewInstrumentedTracker(tracker, netOpts.Metrics.Tracked)
	}
	s.tracker = tracker

	return s, nil
}

func (s *Session) Actor() ofscp.Actor { return s.actor }

// Tracker gives access to the connections.
func (s *Session) Tracker() network.Tracker { return s.tracker }

// Acks yields acknowledged messages. Acks are dropped when nobody reads them.
func (s *Session) Acks() <-chan Acked { return s.acks }

// Errors yields error events of all providers. They are dropped when nobody reads them.
func (s *Session) Errors() <-chan ProviderError { return s.errs }

// Run applies incoming events to the stores until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-s.events:
			s.handle(in)
		}
	}
}

func (s *Session) handle(in network.Incoming) {
	switch ev := in.Envelope.Payload.(type) {
	case message.MessageNew:
		msg := ledger.FromBaseMessage(ev.Message)
		if s.messages.Add(ev.ChannelID, msg) && s.onMessage != nil {
			s.onMessage(in.Host, ev.ChannelID, msg)
		}

	case message.PresenceUpdate:
		s.presence.Set(ev.UserID(), ev.Presence)
		if s.onPresence != nil {
			s.onPresence(in.Host, ev.UserID(), ev.Presence)
		}

	case message.Ack:
		s.mu.Lock()
		pm, has := s.pending[ev.Nonce]
		delete(s.pending, ev.Nonce)
		s.mu.Unlock()
		if !has {
			level.Debug(s.logger).Log("event", "ack for unknown nonce", "nonce", ev.Nonce, "host", in.Host)
			return
		}
		select {
		case s.acks <- Acked{PendingMessage: pm, MessageID: ev.MessageID}:
		default:
		}

	case message.ErrorEvent:
		pe := ProviderError{
			Host:          in.Host,
			Code:          ev.Code,
			Message:       ev.Message,
			CorrelationID: ev.CorrelationID,
		}
		level.Warn(s.logger).Log("event", "provider error", "host", in.Host, "code", ev.Code, "msg", ev.Message)
		select {
		case s.errs <- pe:
		default:
		}

	default:
		level.Warn(s.logger).Log("event", "unhandled event", "type", fmt.Sprintf("%T", ev))
	}
}

// Connect starts (or keeps) the connection to host.
func (s *Session) Connect(host string) error {
	return s.tracker.Connect(host, s.actor, s.cred)
}

// State of the connection to host.
func (s *Session) State(host string) network.State {
	return s.tracker.State(ofscp.NormalizeHost(host))
}

func (s *Session) handleFor(host string) (*network.Handle, error) {
	h, ok := s.tracker.Handle(ofscp.NormalizeHost(host))
	if !ok {
		return nil, errors.Wrap(ErrNotConnected, host)
	}
	return h, nil
}

func (s *Session) Subscribe(host, channelID string) error {
	h, err := s.handleFor(host)
	if err != nil {
		return err
	}
	return h.Subscribe(channelID)
}

func (s *Session) Unsubscribe(host, channelID string) error {
	h, err := s.handleFor(host)
	if err != nil {
		return err
	}
	return h.Unsubscribe(channelID)
}

// SendMessage sends a plain message and returns the nonce its ack will carry.
func (s *Session) SendMessage(host, channelID, body string) (string, error) {
	return s.SendMessageWithOptions(host, channelID, body, MessageOptions{})
}

func (s *Session) SendMessageWithOptions(host, channelID, body string, mo MessageOptions) (string, error) {
	h, err := s.handleFor(host)
	if err != nil {
		return "", err
	}

	nonce := uuid.New().String()
	s.mu.Lock()
	s.seq++
	s.pending[nonce] = PendingMessage{
		Nonce:     nonce,
		Host:      h.Host(),
		ChannelID: channelID,
		Body:      body,
		SentAt:    time.Now(),
		seq:       s.seq,
	}
	s.mu.Unlock()

	if mo.ParentID != nil {
		err = h.SendReply(channelID, body, nonce, *mo.ParentID, mo.Type, mo.Attachments)
	} else {
		err = h.SendMessageWithOptions(channelID, body, nonce, mo.Title, mo.Type, mo.Attachments)
	}
	if err != nil {
		s.mu.Lock()
		delete(s.pending, nonce)
		s.mu.Unlock()
		return "", err
	}
	return nonce, nil
}

// Pending lists unacknowledged messages, oldest first.
func (s *Session) Pending() []PendingMessage {
	s.mu.Lock()
	out := make([]PendingMessage, 0, len(s.pending))
	for _, pm := range s.pending {
		out = append(out, pm)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// LoadHistory fetches the stored messages of a channel and merges them with
// what was received live.
func (s *Session) LoadHistory(ctx context.Context, host, groupID, channelID string) error {
	opts := append([]client.Option{
		client.WithLogger(s.logger),
		client.WithSigning(s.cred, s.actor),
	}, s.clientOpts...)
	c, err := client.New(host, opts...)
	if err != nil {
		return err
	}

	page, err := c.ChannelMessages(ctx, groupID, channelID)
	if err != nil {
		return errors.Wrapf(err, "session: failed to load history of %s", channelID)
	}

	now := time.Now().UTC()
	msgs := make([]ledger.StoredMessage, len(page.Items))
	for i, cm := range page.Items {
		msgs[i] = ledger.FromChannelMessage(cm, now)
	}
	s.messages.SetHistory(channelID, msgs)
	level.Debug(s.logger).Log("event", "history loaded", "channel", channelID, "count", len(msgs))
	return nil
}

// Messages of a channel in display order.
func (s *Session) Messages(channelID string) []ledger.StoredMessage {
	return s.messages.Messages(channelID)
}

func (s *Session) HistoryLoaded(channelID string) bool {
	return s.messages.IsLoaded(channelID)
}

// Presence of handle@domain, offline if nothing was heard.
func (s *Session) Presence(userID string) message.Presence {
	return s.presence.Get(userID)
}

// SignOut closes all connections and forgets everything the session knew,
// including the stored credential if a key store was given.
func (s *Session) SignOut() error {
	var merr *multierror.Error
	if err := s.tracker.ClearAll(); err != nil {
		merr = multierror.Append(merr, err)
	}

	s.messages.Clear()
	s.presence.Clear()
	s.mu.Lock()
	s.pending = make(map[string]PendingMessage)
	s.mu.Unlock()

	if s.keystore != nil {
		if err := s.keystore.Clear(); err != nil {
			merr = multierror.Append(merr, errors.Wrap(err, "session: failed to clear key store"))
		}
	}
	level.Info(s.logger).Log("event", "signed out")
	return merr.ErrorOrNil()
}

// Close shuts all connections down but keeps the stores.
func (s *Session) Close() error {
	return s.tracker.ClearAll()
}
