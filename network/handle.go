// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package network

import (
	"github.com/pkg/errors"

	"github.com/rorumall/go-ofscp/message"
)

var (
	// ErrQueueFull is returned when the outbound queue is at capacity. The command was not queued.
	ErrQueueFull = errors.New("network: command queue full")

	// ErrClosed is returned for sends on a connection that was closed or gave up.
	ErrClosed = errors.New("network: connection closed")
)

// Handle queues commands for a connection. Commands are written in the order
// they were queued; they wait in the queue while no socket is open.
type Handle struct {
	conn *Connection
}

func (h *Handle) Host() string { return h.conn.host }

func (h *Handle) State() State { return h.conn.State() }

// Send wraps cmd in a new envelope and queues it.
func (h *Handle) Send(cmd message.Command) error {
	return h.enqueue(message.NewEnvelope(cmd))
}

// SendWithCorrelation queues cmd with a correlation id the provider echoes in errors.
func (h *Handle) SendWithCorrelation(cmd message.Command, correlationID string) error {
	return h.enqueue(message.NewEnvelope(cmd).WithCorrelation(correlationID))
}

func (h *Handle) enqueue(env message.Envelope[message.Command]) error {
	c := h.conn
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.queue <- env:
		return nil
	default:
		c.opts.Metrics.FramesDropped.Add(1)
		return ErrQueueFull
	}
}

func (h *Handle) Subscribe(channelID string) error {
	return h.Send(message.Subscribe{ChannelID: channelID})
}

func (h *Handle) Unsubscribe(channelID string) error {
	return h.Send(message.Unsubscribe{ChannelID: channelID})
}

// SendMessage posts a plain message. nonce is matched against the provider's ack.
func (h *Handle) SendMessage(channelID, body, nonce string) error {
	return h.Send(message.MessageCreate{
		ChannelID: channelID,
		Body:      body,
		Nonce:     nonce,
	})
}

func (h *Handle) SendMessageWithOptions(channelID, body, nonce string, title *string, mt *message.MessageType, attachments []message.Attachment) error {
	return h.Send(message.MessageCreate{
		ChannelID:   channelID,
		Body:        body,
		Nonce:       nonce,
		Title:       title,
		MessageType: mt,
		Attachments: attachments,
	})
}

// SendReply posts a message into the thread of parentID.
func (h *Handle) SendReply(channelID, body, nonce, parentID string, mt *message.MessageType, attachments []message.Attachment) error {
	return h.Send(message.MessageCreate{
		ChannelID:   channelID,
		Body:        body,
		Nonce:       nonce,
		ParentID:    &parentID,
		MessageType: mt,
		Attachments: attachments,
	})
}
