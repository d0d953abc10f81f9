// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

// Package message defines the OFSCP wire vocabulary: the protocol models shared
// with the provider, the Command and Event payloads exchanged over the WebSocket
// and the Envelope that frames them.
package message

import (
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// MessageType is the kind of a posted message.
type MessageType string

const (
	TypeMessage MessageType = "message"
	TypeMemo    MessageType = "memo"
	TypeArticle MessageType = "article"
)

func (mt MessageType) Valid() bool {
	switch mt {
	case TypeMessage, TypeMemo, TypeArticle:
		return true
	}
	return false
}

func (mt *MessageType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "message: message type is not a string")
	}
	if !MessageType(s).Valid() {
		return errors.Errorf("message: unknown message type %q", s)
	}
	*mt = MessageType(s)
	return nil
}

// Availability of a user.
type Availability string

const (
	Online  Availability = "online"
	Away    Availability = "away"
	DND     Availability = "dnd"
	Offline Availability = "offline"
)

func (a *Availability) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "message: availability is not a string")
	}
	switch v := Availability(s); v {
	case Online, Away, DND, Offline:
		*a = v
		return nil
	}
	return errors.Errorf("message: unknown availability %q", s)
}

type MetadataItem struct {
	Schema  string              `json:"schema"`
	Version string              `json:"version"`
	Data    jsoniter.RawMessage `json:"data"`
}

type Metadata []MetadataItem

type Attachment struct {
	ID   string `json:"id"`
	Mime string `json:"mime"`
	URL  string `json:"url"`
	Size uint64 `json:"size"`
}

type Content struct {
	Text string `json:"text"`
	Mime string `json:"mime"`
}

type MessageReference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type Permissions struct {
	EditUntil *time.Time `json:"editUntil"`
}

// UserRef names a message author, either as an ofscp:// URI or a plain handle.
type UserRef string

// UserID resolves ofscp://<domain>/users/<handle> to handle@domain.
// Any other form is returned unchanged.
func (u UserRef) UserID() string {
	s := string(u)
	rest := strings.TrimPrefix(s, "ofscp://")
	if rest == s {
		return s
	}
	parts := strings.Split(rest, "/")
	if len(parts) >= 3 && parts[1] == "users" && parts[0] != "" && parts[2] != "" {
		return parts[2] + "@" + parts[0]
	}
	return s
}

// BaseMessage is a message as pushed by the provider in a message.new event.
type BaseMessage struct {
	ID                string            `json:"id"`
	Author            UserRef           `json:"author"`
	Type              MessageType       `json:"type"`
	Title             *string           `json:"title,omitempty"`
	Content           Content           `json:"content"`
	Attachments       []Attachment      `json:"attachments"`
	Reference         *MessageReference `json:"reference"`
	Tags              []string          `json:"tags"`
	CreatedAt         time.Time         `json:"createdAt"`
	Permissions       *Permissions      `json:"permissions"`
	Metadata          Metadata          `json:"metadata"`
	ParentID          *string           `json:"parentId,omitempty"`
	ParentMessageType *MessageType      `json:"parentMessageType,omitempty"`
}

type Presence struct {
	Availability Availability `json:"availability"`
	Status       *string      `json:"status,omitempty"`
	LastSeen     *time.Time   `json:"lastSeen,omitempty"`
	Metadata     Metadata     `json:"metadata"`
}

// OfflinePresence is what is assumed for users nothing was heard from.
func OfflinePresence() Presence {
	return Presence{Availability: Offline, Metadata: Metadata{}}
}

// ChannelMessage is a message as returned by the history endpoint.
type ChannelMessage struct {
	ID                string       `json:"id"`
	ChannelID         string       `json:"channelId"`
	SenderUserID      string       `json:"senderUserId"`
	Title             *string      `json:"title,omitempty"`
	Body              string       `json:"body"`
	MessageType       *MessageType `json:"messageType,omitempty"`
	CreatedAt         string       `json:"createdAt"`
	ParentID          *string      `json:"parentId,omitempty"`
	ParentMessageType *MessageType `json:"parentMessageType,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`
}

type PageInfo struct {
	NextCursor *string `json:"nextCursor"`
	PrevCursor *string `json:"prevCursor"`
}

// MessagesPage is one page of channel history.
type MessagesPage struct {
	Items []ChannelMessage `json:"items"`
	Page  PageInfo         `json:"page"`
}

type LoginRequest struct {
	Handle          string  `json:"handle"`
	Password        string  `json:"password"`
	DevicePublicKey *string `json:"devicePublicKey"`
	DeviceName      *string `json:"deviceName"`
}

type LoginResponse struct {
	UserID string  `json:"userId"`
	KeyID  *string `json:"keyId"`
}
