// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package message

// Wire tags of the payload variants.
const (
	TypeSubscribe      = "subscribe"
	TypeUnsubscribe    = "unsubscribe"
	TypeMessageCreate  = "message.create"
	TypeMessageNew     = "message.new"
	TypePresenceUpdate = "presence.update"
	TypeAck            = "ack"
	TypeError          = "error"
)

// Payload is anything that can be carried in an Envelope.
type Payload interface {
	// Type returns the wire tag written next to the payload's data.
	Type() string
}

// Command is sent from the client to the provider.
type Command interface {
	Payload
	isCommand()
}

// Event is sent from the provider to the client.
type Event interface {
	Payload
	isEvent()
}

type Subscribe struct {
	ChannelID string `json:"channel_id"`
}

type Unsubscribe struct {
	ChannelID string `json:"channel_id"`
}

// MessageCreate posts a message. Nonce is the idempotency key the provider echoes in its Ack.
type MessageCreate struct {
	ChannelID   string       `json:"channel_id"`
	Body        string       `json:"body"`
	Nonce       string       `json:"nonce"`
	Title       *string      `json:"title,omitempty"`
	MessageType *MessageType `json:"message_type,omitempty"`
	ParentID    *string      `json:"parent_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

func (Subscribe) Type() string     { return TypeSubscribe }
func (Unsubscribe) Type() string   { return TypeUnsubscribe }
func (MessageCreate) Type() string { return TypeMessageCreate }

func (Subscribe) isCommand()     {}
func (Unsubscribe) isCommand()   {}
func (MessageCreate) isCommand() {}

type MessageNew struct {
	ChannelID string      `json:"channel_id"`
	Message   BaseMessage `json:"message"`
}

type PresenceUpdate struct {
	UserHandle string   `json:"user_handle"`
	UserDomain string   `json:"user_domain"`
	Presence   Presence `json:"presence"`
}

// UserID is handle@domain of the user the update is about.
func (pu PresenceUpdate) UserID() string {
	return pu.UserHandle + "@" + pu.UserDomain
}

type Ack struct {
	Nonce     string `json:"nonce"`
	MessageID string `json:"message_id"`
}

// ErrorEvent is an application level error reported by the provider.
type ErrorEvent struct {
	Code          string  `json:"code"`
	Message       string  `json:"message"`
	CorrelationID *string `json:"correlation_id"`
}

func (MessageNew) Type() string     { return TypeMessageNew }
func (PresenceUpdate) Type() string { return TypePresenceUpdate }
func (Ack) Type() string            { return TypeAck }
func (ErrorEvent) Type() string     { return TypeError }

func (MessageNew) isEvent()     {}
func (PresenceUpdate) isEvent() {}
func (Ack) isEvent()            {}
func (ErrorEvent) isEvent()     {}

func decodeAs[P Payload](data []byte) (P, error) {
	var p P
	err := json.Unmarshal(data, &p)
	return p, err
}

func decodeCommand(typ string, data []byte) (Command, error) {
	switch typ {
	case TypeSubscribe:
		return decodeAs[Subscribe](data)
	case TypeUnsubscribe:
		return decodeAs[Unsubscribe](data)
	case TypeMessageCreate:
		return decodeAs[MessageCreate](data)
	}
	return nil, ErrUnknownType{Type: typ}
}

func decodeEvent(typ string, data []byte) (Event, error) {
	switch typ {
	case TypeMessageNew:
		return decodeAs[MessageNew](data)
	case TypePresenceUpdate:
		return decodeAs[PresenceUpdate](data)
	case TypeAck:
		return decodeAs[Ack](data)
	case TypeError:
		return decodeAs[ErrorEvent](data)
	}
	return nil, ErrUnknownType{Type: typ}
}

// ErrUnknownType is returned for payload tags outside of the expected vocabulary.
type ErrUnknownType struct {
	Type string
}

func (e ErrUnknownType) Error() string {
	return "message: unknown payload type " + e.Type
}
