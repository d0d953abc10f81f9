// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rorumall/go-ofscp/message"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(id string, sec int) StoredMessage {
	return StoredMessage{ID: id, CreatedAt: epoch.Add(time.Duration(sec) * time.Second)}
}

func ids(msgs []StoredMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestAddOrdersByTime(t *testing.T) {
	r := require.New(t)

	cl := NewChannelLedger(0)
	r.True(cl.Add(at("t3", 3)))
	r.True(cl.Add(at("t1", 1)))
	r.True(cl.Add(at("t2", 2)))
	r.Equal([]string{"t1", "t2", "t3"}, ids(cl.Messages()))
	r.False(cl.Loaded())
}

func TestAddIsIdempotent(t *testing.T) {
	r := require.New(t)

	cl := NewChannelLedger(0)
	cl.Add(at("a", 1))
	cl.Add(at("b", 2))
	before := cl.Messages()

	r.False(cl.Add(at("a", 1)))
	// same id with another timestamp is still the same message
	r.False(cl.Add(at("b", 0)))
	r.Equal(before, cl.Messages())
}

func TestEqualTimestampsKeepInsertionOrder(t *testing.T) {
	r := require.New(t)

	cl := NewChannelLedger(0)
	cl.Add(at("first", 5))
	cl.Add(at("second", 5))
	cl.Add(at("early", 1))
	cl.Add(at("third", 5))
	r.Equal([]string{"early", "first", "second", "third"}, ids(cl.Messages()))
}

func TestSetHistoryThenAdd(t *testing.T) {
	r := require.New(t)

	cl := NewChannelLedger(0)
	cl.Add(at("stale", 100))

	cl.SetHistory([]StoredMessage{at("t5", 5), at("t2", 2), at("t5", 5)})
	r.True(cl.Loaded())
	r.Equal([]string{"t2", "t5"}, ids(cl.Messages()))
	r.False(cl.Has("stale"))

	r.True(cl.Add(at("t8", 8)))
	r.Equal([]string{"t2", "t5", "t8"}, ids(cl.Messages()))

	r.True(cl.Add(at("t3", 3)))
	r.False(cl.Add(at("t5", 5)))
	r.Equal([]string{"t2", "t3", "t5", "t8"}, ids(cl.Messages()))
}

func TestCapacityEvictsOldest(t *testing.T) {
	r := require.New(t)

	cl := NewChannelLedger(3)
	for i := 1; i <= 3; i++ {
		r.True(cl.Add(at(fmt.Sprint(i), i)))
	}
	r.True(cl.Add(at("4", 4)))
	r.Equal([]string{"2", "3", "4"}, ids(cl.Messages()))
	r.False(cl.Has("1"))

	// older than anything held in a full ledger
	r.False(cl.Add(at("0", 0)))
	r.Equal([]string{"2", "3", "4"}, ids(cl.Messages()))

	// an evicted id can come back once it fits
	r.True(cl.Add(at("1b", 3)))
	r.Equal([]string{"3", "1b", "4"}, ids(cl.Messages()))

	cl.SetHistory([]StoredMessage{at("a", 1), at("b", 2), at("c", 3), at("d", 4), at("e", 5)})
	r.Equal([]string{"c", "d", "e"}, ids(cl.Messages()))
	r.Equal(3, cl.Len())
}

func TestConversions(t *testing.T) {
	a := assert.New(t)

	memo := message.TypeMemo
	title := "t"
	live := FromBaseMessage(message.BaseMessage{
		ID:        "m1",
		Author:    "ofscp://chat.example/users/alice",
		Type:      message.TypeArticle,
		Title:     &title,
		Content:   message.Content{Text: "body", Mime: "text/plain"},
		CreatedAt: epoch,
	})
	a.Equal("alice@chat.example", live.UserID)
	a.Equal("body", live.Content)
	a.Equal(message.TypeArticle, live.MessageType)
	a.Equal(&title, live.Title)

	fallback := epoch.Add(time.Hour)
	hist := FromChannelMessage(message.ChannelMessage{
		ID:           "m2",
		SenderUserID: "bob@chat.example",
		Body:         "hi",
		CreatedAt:    "2024-01-01T02:00:00+02:00",
	}, fallback)
	a.Equal(message.TypeMessage, hist.MessageType)
	a.True(epoch.Equal(hist.CreatedAt), hist.CreatedAt)

	hist = FromChannelMessage(message.ChannelMessage{ID: "m3", CreatedAt: "yesterday", MessageType: &memo}, fallback)
	a.Equal(fallback, hist.CreatedAt)
	a.Equal(message.TypeMemo, hist.MessageType)
}

func TestStoreConcurrentAdds(t *testing.T) {
	r := require.New(t)

	s := NewStore(DefaultCapacity)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				// every worker adds the same ids, only one copy survives
				s.Add("c", at(fmt.Sprintf("m%03d", i), 50-i))
			}
		}(w)
	}
	wg.Wait()

	msgs := s.Messages("c")
	r.Len(msgs, 50)
	for i := 1; i < len(msgs); i++ {
		r.False(msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}
	r.Equal("m049", msgs[0].ID)
	r.False(s.IsLoaded("c"))
	r.Nil(s.Messages("unknown"))

	s.SetHistory("d", nil)
	r.True(s.IsLoaded("d"))
	r.Equal([]string{"c", "d"}, s.Channels())

	s.Clear()
	r.Empty(s.Channels())
}

func TestPresenceBook(t *testing.T) {
	r := require.New(t)

	pb := NewPresenceBook()
	r.Equal(message.Offline, pb.Get("alice@chat.example").Availability)

	pb.Set("alice@chat.example", message.Presence{Availability: message.Away})
	r.Equal(message.Away, pb.Get("alice@chat.example").Availability)

	pb.Clear()
	r.Equal(message.Offline, pb.Get("alice@chat.example").Availability)
}
