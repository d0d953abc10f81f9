// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package ledger

import "sort"

// DefaultCapacity bounds a channel ledger unless configured otherwise.
const DefaultCapacity = 5000

// ChannelLedger holds the messages of one channel.
//
// No two entries share an id and entries are sorted ascending by CreatedAt.
// Messages with equal timestamps keep their insertion order. When more than
// Capacity messages are held the oldest ones are dropped. It is not safe for
// concurrent use, Store provides the locking.
type ChannelLedger struct {
	capacity int
	loaded   bool
	messages []StoredMessage
	ids      map[string]struct{}
}

// NewChannelLedger returns an empty ledger. A capacity of 0 means unbounded.
func NewChannelLedger(capacity int) *ChannelLedger {
	return &ChannelLedger{
		capacity: capacity,
		ids:      make(map[string]struct{}),
	}
}

// Add inserts msg at its place in time order. It reports whether msg is held
// afterwards: known ids are ignored, and a message older than everything in a
// full ledger is evicted right away.
func (cl *ChannelLedger) Add(msg StoredMessage) bool {
	if _, has := cl.ids[msg.ID]; has {
		return false
	}

	idx := sort.Search(len(cl.messages), func(i int) bool {
		return cl.messages[i].CreatedAt.After(msg.CreatedAt)
	})
	cl.messages = append(cl.messages, StoredMessage{})
	copy(cl.messages[idx+1:], cl.messages[idx:])
	cl.messages[idx] = msg
	cl.ids[msg.ID] = struct{}{}

	evicted := cl.evict()
	return idx >= evicted
}

// SetHistory replaces the contents with msgs and marks the channel as loaded.
// Duplicate ids in msgs keep their first occurrence.
func (cl *ChannelLedger) SetHistory(msgs []StoredMessage) {
	cl.messages = make([]StoredMessage, 0, len(msgs))
	cl.ids = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, has := cl.ids[m.ID]; has {
			continue
		}
		cl.ids[m.ID] = struct{}{}
		cl.messages = append(cl.messages, m)
	}
	sort.SliceStable(cl.messages, func(i, j int) bool {
		return cl.messages[i].CreatedAt.Before(cl.messages[j].CreatedAt)
	})
	cl.evict()
	cl.loaded = true
}

// evict drops the oldest entries above capacity and returns how many were dropped.
func (cl *ChannelLedger) evict() int {
	if cl.capacity <= 0 || len(cl.messages) <= cl.capacity {
		return 0
	}
	n := len(cl.messages) - cl.capacity
	for _, m := range cl.messages[:n] {
		delete(cl.ids, m.ID)
	}
	cl.messages = append(cl.messages[:0], cl.messages[n:]...)
	return n
}

// Messages returns a copy of the ordered contents.
func (cl *ChannelLedger) Messages() []StoredMessage {
	out := make([]StoredMessage, len(cl.messages))
	copy(out, cl.messages)
	return out
}

func (cl *ChannelLedger) Len() int { return len(cl.messages) }

// Loaded reports whether a history page was applied.
func (cl *ChannelLedger) Loaded() bool { return cl.loaded }

func (cl *ChannelLedger) Has(id string) bool {
	_, has := cl.ids[id]
	return has
}
