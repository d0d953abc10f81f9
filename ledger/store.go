// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package ledger

import (
	"sort"
	"sync"

	"github.com/rorumall/go-ofscp/message"
)

// Store maps channel ids to their ledgers.
type Store struct {
	mu       sync.Mutex
	capacity int
	channels map[string]*ChannelLedger
}

// NewStore creates ledgers with the given capacity on first use.
func NewStore(capacity int) *Store {
	return &Store{
		capacity: capacity,
		channels: make(map[string]*ChannelLedger),
	}
}

func (s *Store) ledger(channelID string) *ChannelLedger {
	cl, has := s.channels[channelID]
	if !has {
		cl = NewChannelLedger(s.capacity)
		s.channels[channelID] = cl
	}
	return cl
}

// Add stores a live message. See ChannelLedger.Add.
func (s *Store) Add(channelID string, msg StoredMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger(channelID).Add(msg)
}

// SetHistory applies a history page to the channel.
func (s *Store) SetHistory(channelID string, msgs []StoredMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger(channelID).SetHistory(msgs)
}

// Messages returns the ordered messages of a channel, nil if none are known.
func (s *Store) Messages(channelID string) []StoredMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl, has := s.channels[channelID]
	if !has {
		return nil
	}
	return cl.Messages()
}

func (s *Store) IsLoaded(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl, has := s.channels[channelID]
	return has && cl.Loaded()
}

// Channels lists the known channel ids, sorted.
func (s *Store) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear forgets all channels.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[string]*ChannelLedger)
}

// PresenceBook tracks the last known presence per handle@domain.
type PresenceBook struct {
	mu    sync.RWMutex
	users map[string]message.Presence
}

func NewPresenceBook() *PresenceBook {
	return &PresenceBook{users: make(map[string]message.Presence)}
}

func (pb *PresenceBook) Set(userID string, p message.Presence) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.users[userID] = p
}

// Get returns the presence of userID, offline if nothing is known.
func (pb *PresenceBook) Get(userID string) message.Presence {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	p, has := pb.users[userID]
	if !has {
		return message.OfflinePresence()
	}
	return p
}

func (pb *PresenceBook) Clear() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.users = make(map[string]message.Presence)
}
