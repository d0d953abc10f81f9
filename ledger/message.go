// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

// Package ledger keeps the client side view of channel messages: per channel,
// deduplicated by id and ordered by creation time, no matter whether a message
// came from a history page or a live event.
package ledger

import (
	"time"

	"github.com/rorumall/go-ofscp/message"
)

// StoredMessage is the normalized form of a message. It is not changed after creation.
type StoredMessage struct {
	ID                string
	UserID            string
	Title             *string
	Content           string
	MessageType       message.MessageType
	CreatedAt         time.Time
	ParentID          *string
	ParentMessageType *message.MessageType
	Attachments       []message.Attachment
}

// FromBaseMessage converts a live message.new payload.
func FromBaseMessage(m message.BaseMessage) StoredMessage {
	return StoredMessage{
		ID:                m.ID,
		UserID:            m.Author.UserID(),
		Title:             m.Title,
		Content:           m.Content.Text,
		MessageType:       m.Type,
		CreatedAt:         m.CreatedAt,
		ParentID:          m.ParentID,
		ParentMessageType: m.ParentMessageType,
		Attachments:       m.Attachments,
	}
}

// FromChannelMessage converts a history item. A missing message type means a
// plain message and an unparsable timestamp is replaced by fallback.
func FromChannelMessage(m message.ChannelMessage, fallback time.Time) StoredMessage {
	mt := message.TypeMessage
	if m.MessageType != nil {
		mt = *m.MessageType
	}
	created, err := time.Parse(time.RFC3339, m.CreatedAt)
	if err != nil {
		created = fallback
	}
	return StoredMessage{
		ID:                m.ID,
		UserID:            m.SenderUserID,
		Title:             m.Title,
		Content:           m.Body,
		MessageType:       mt,
		CreatedAt:         created.UTC(),
		ParentID:          m.ParentID,
		ParentMessageType: m.ParentMessageType,
		Attachments:       m.Attachments,
	}
}
