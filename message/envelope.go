// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package message

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Envelope frames a single payload on the wire.
//
//	{"id":"<uuid>","type":"<tag>","data":{...},"ts":"<rfc3339>","correlationId":"..."}
//
// The payload is flattened into type and data. An empty CorrelationID is left
// out of the frame instead of being written as null.
type Envelope[T Payload] struct {
	ID            string
	Payload       T
	TS            time.Time
	CorrelationID string
}

// NewEnvelope wraps p with a fresh id and the current time.
func NewEnvelope[T Payload](p T) Envelope[T] {
	return Envelope[T]{
		ID:      uuid.New().String(),
		Payload: p,
		TS:      time.Now().UTC().Round(0),
	}
}

// WithCorrelation returns a copy that links to the request with the given id.
func (e Envelope[T]) WithCorrelation(id string) Envelope[T] {
	e.CorrelationID = id
	return e
}

type wireEnvelope struct {
	ID            string              `json:"id"`
	Type          string              `json:"type"`
	Data          jsoniter.RawMessage `json:"data"`
	TS            time.Time           `json:"ts"`
	CorrelationID *string             `json:"correlationId,omitempty"`
}

func (e Envelope[T]) MarshalJSON() ([]byte, error) {
	var p Payload = e.Payload
	if p == nil {
		return nil, errors.New("message: envelope without payload")
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, errors.Wrapf(err, "message: failed to encode %s payload", p.Type())
	}
	w := wireEnvelope{
		ID:   e.ID,
		Type: p.Type(),
		Data: data,
		TS:   e.TS,
	}
	if e.CorrelationID != "" {
		cid := e.CorrelationID
		w.CorrelationID = &cid
	}
	return json.Marshal(w)
}

func (e *Envelope[T]) UnmarshalJSON(b []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(b, &w); err != nil {
		return errors.Wrap(err, "message: malformed envelope")
	}
	if w.ID == "" {
		return errors.New("message: envelope without id")
	}
	if w.Type == "" {
		return errors.New("message: envelope without type")
	}

	switch p := any(&e.Payload).(type) {
	case *Command:
		cmd, err := decodeCommand(w.Type, w.Data)
		if err != nil {
			return errors.Wrapf(err, "message: failed to decode %s", w.Type)
		}
		*p = cmd
	case *Event:
		evt, err := decodeEvent(w.Type, w.Data)
		if err != nil {
			return errors.Wrapf(err, "message: failed to decode %s", w.Type)
		}
		*p = evt
	default:
		// concrete payload type, the tag has to match it
		var zero T
		if any(zero) == nil {
			return errors.Errorf("message: cannot decode %s into an open payload type", w.Type)
		}
		if zero.Type() != w.Type {
			return ErrUnknownType{Type: w.Type}
		}
		if err := json.Unmarshal(w.Data, &e.Payload); err != nil {
			return errors.Wrapf(err, "message: failed to decode %s", w.Type)
		}
	}

	e.ID = w.ID
	e.TS = w.TS
	e.CorrelationID = ""
	if w.CorrelationID != nil {
		e.CorrelationID = *w.CorrelationID
	}
	return nil
}

// EncodeCommand renders a command frame.
func EncodeCommand(env Envelope[Command]) ([]byte, error) {
	return json.Marshal(env)
}

// DecodeCommand parses a command frame, as done by a provider.
func DecodeCommand(b []byte) (Envelope[Command], error) {
	var env Envelope[Command]
	err := json.Unmarshal(b, &env)
	return env, err
}

// EncodeEvent renders an event frame, as done by a provider.
func EncodeEvent(env Envelope[Event]) ([]byte, error) {
	return json.Marshal(env)
}

// DecodeEvent parses an event frame.
func DecodeEvent(b []byte) (Envelope[Event], error) {
	var env Envelope[Event]
	err := json.Unmarshal(b, &env)
	return env, err
}
