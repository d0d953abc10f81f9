// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package message

import (
	"strings"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var testTS = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func strptr(s string) *string { return &s }

func TestCommandRoundtrip(t *testing.T) {
	r := require.New(t)

	memo := TypeMemo
	cmd := MessageCreate{
		ChannelID:   "c-1",
		Body:        "hello",
		Nonce:       "n-1",
		Title:       strptr("greeting"),
		MessageType: &memo,
		ParentID:    strptr("m-0"),
	}
	env := Envelope[Command]{ID: "6f1c7c36-0a43-4a4c-9c1e-2b0b3e1f6a10", Payload: cmd, TS: testTS}

	b, err := EncodeCommand(env)
	r.NoError(err)
	r.NotContains(string(b), "correlationId", "absent correlation must be omitted")
	r.NotContains(string(b), "attachments")

	var wire map[string]interface{}
	r.NoError(json.Unmarshal(b, &wire))
	r.Equal("message.create", wire["type"])
	r.Equal("2024-03-01T09:30:00Z", wire["ts"])
	data := wire["data"].(map[string]interface{})
	r.Equal("c-1", data["channel_id"])
	r.Equal("memo", data["message_type"])
	r.Equal("m-0", data["parent_id"])

	got, err := DecodeCommand(b)
	r.NoError(err)
	if diff := pretty.Compare(env, got); diff != "" {
		t.Log(diff)
	}
	r.Equal(env, got)

	env = env.WithCorrelation("corr-9")
	b, err = EncodeCommand(env)
	r.NoError(err)
	r.Contains(string(b), `"correlationId":"corr-9"`)
	got, err = DecodeCommand(b)
	r.NoError(err)
	r.Equal(env, got)
}

func TestSimpleCommands(t *testing.T) {
	r := require.New(t)

	for _, cmd := range []Command{Subscribe{ChannelID: "a"}, Unsubscribe{ChannelID: "b"}} {
		env := NewEnvelope[Command](cmd)
		r.Len(env.ID, 36)

		b, err := EncodeCommand(env)
		r.NoError(err)
		r.Contains(string(b), `"type":"`+cmd.Type()+`"`)
		r.Contains(string(b), `"data":{"channel_id":`)

		got, err := DecodeCommand(b)
		r.NoError(err)
		r.Equal(env, got)
	}
}

func TestDecodeProviderEvents(t *testing.T) {
	r := require.New(t)

	frames := []string{
		`{"id":"e1","type":"message.new","ts":"2024-03-01T09:30:00Z","data":{"channel_id":"c-1","message":{
			"id":"m-1","author":"ofscp://chat.example/users/alice","type":"message",
			"content":{"text":"hi","mime":"text/plain"},"attachments":[],"reference":null,"tags":[],
			"createdAt":"2024-03-01T09:29:59.5Z","permissions":null,"metadata":[]}}}`,
		`{"id":"e2","type":"presence.update","ts":"2024-03-01T09:30:00Z","data":{"user_handle":"bob","user_domain":"chat.example","presence":{"availability":"dnd","metadata":[]}}}`,
		`{"id":"e3","type":"ack","ts":"2024-03-01T09:30:00Z","correlationId":"x","data":{"nonce":"n-1","message_id":"m-2"}}`,
		`{"id":"e4","type":"error","ts":"2024-03-01T09:30:00Z","data":{"code":"forbidden","message":"no","correlation_id":null}}`,
	}

	var got []Event
	for _, f := range frames {
		env, err := DecodeEvent([]byte(f))
		r.NoError(err, f)
		got = append(got, env.Payload)
	}

	mn, ok := got[0].(MessageNew)
	r.True(ok, "%T", got[0])
	r.Equal("c-1", mn.ChannelID)
	r.Equal("alice@chat.example", mn.Message.Author.UserID())
	r.Equal(TypeMessage, mn.Message.Type)
	r.Equal(500*time.Millisecond, mn.Message.CreatedAt.Sub(testTS.Add(-time.Second)))

	pu, ok := got[1].(PresenceUpdate)
	r.True(ok)
	r.Equal(DND, pu.Presence.Availability)
	r.Equal("bob@chat.example", pu.UserID())

	r.Equal(Ack{Nonce: "n-1", MessageID: "m-2"}, got[2])
	r.Equal(ErrorEvent{Code: "forbidden", Message: "no"}, got[3])
}

func TestDecodeBadFrames(t *testing.T) {
	r := require.New(t)

	_, err := DecodeEvent([]byte(`{"id":"e","type":"typing","ts":"2024-03-01T09:30:00Z","data":{}}`))
	var unknown ErrUnknownType
	r.True(errors.As(err, &unknown), "got %v", err)
	r.Equal("typing", unknown.Type)

	_, err = DecodeEvent([]byte(`not json`))
	r.Error(err)

	_, err = DecodeEvent([]byte(`{"type":"ack","ts":"2024-03-01T09:30:00Z","data":{}}`))
	r.Error(err)

	_, err = DecodeEvent([]byte(`{"id":"e","type":"presence.update","ts":"2024-03-01T09:30:00Z","data":{"presence":{"availability":"busy"}}}`))
	r.Error(err)

	// commands are not events
	_, err = DecodeEvent([]byte(`{"id":"e","type":"subscribe","ts":"2024-03-01T09:30:00Z","data":{"channel_id":"x"}}`))
	r.Error(err)

	_, err = EncodeCommand(Envelope[Command]{ID: "x"})
	r.Error(err)
}

func TestConcreteEnvelope(t *testing.T) {
	r := require.New(t)

	b, err := Marshal(Envelope[Ack]{ID: "a", Payload: Ack{Nonce: "n"}, TS: testTS})
	r.NoError(err)

	var ack Envelope[Ack]
	r.NoError(Unmarshal(b, &ack))
	r.Equal("n", ack.Payload.Nonce)

	var sub Envelope[Subscribe]
	r.Error(Unmarshal(b, &sub))
}

func TestUserRef(t *testing.T) {
	r := require.New(t)

	r.Equal("alice@chat.example", UserRef("ofscp://chat.example/users/alice").UserID())
	r.Equal("alice@chat.example", UserRef("alice@chat.example").UserID())
	r.Equal("ofscp://chat.example/groups/g", UserRef("ofscp://chat.example/groups/g").UserID())
	r.True(strings.HasPrefix(string(UserRef("ofscp://x")), "ofscp://"))
	r.Equal("ofscp://x", UserRef("ofscp://x").UserID())
}
