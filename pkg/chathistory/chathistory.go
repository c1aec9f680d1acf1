// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chathistory stores and retrieves the per-session chat transcript
// the query agent conditions on and the memory maintainer summarizes.
package chathistory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderLLM  Sender = "llm"
)

// Message is one turn of a chat session.
type Message struct {
	SessionID string
	UserID    string
	RepoID    string
	Content   string
	Sender    Sender
	Timestamp time.Time
}

// Store appends and retrieves chat messages.
type Store interface {
	// Append records a new message.
	Append(ctx context.Context, msg Message) error

	// ListBySession returns every message for a session/repo pair ordered
	// by timestamp ascending, the shape the chat history endpoint returns
	// to the client.
	ListBySession(ctx context.Context, sessionID, repoID string) ([]Message, error)

	// ListByUserRepo returns every message a user has exchanged about a
	// repo, ordered by timestamp ascending. If after is non-nil, only
	// messages strictly later than it are returned — the incremental mode
	// the repo-summary task uses so it never resummarizes what it already
	// folded in.
	ListByUserRepo(ctx context.Context, userID, repoID string, after *time.Time) ([]Message, error)

	// ListByUser returns every message a user has ever sent, across all
	// repos, ordered by timestamp ascending. The user-facts task always
	// reads the full history: personal facts aren't repo-scoped.
	ListByUser(ctx context.Context, userID string) ([]Message, error)
}

// MemStore is an in-memory Store for tests and for the single-process
// embedded deployment.
type MemStore struct {
	mu       sync.RWMutex
	messages []Message
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

var _ Store = (*MemStore)(nil)

// Append records msg.
func (m *MemStore) Append(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// ListBySession returns session/repo messages ordered by timestamp.
func (m *MemStore) ListBySession(_ context.Context, sessionID, repoID string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID && msg.RepoID == repoID {
			out = append(out, msg)
		}
	}
	sortByTimestamp(out)
	return out, nil
}

// ListByUserRepo returns a user's messages about a repo, optionally only
// those after a given timestamp.
func (m *MemStore) ListByUserRepo(_ context.Context, userID, repoID string, after *time.Time) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Message
	for _, msg := range m.messages {
		if msg.UserID != userID || msg.RepoID != repoID {
			continue
		}
		if after != nil && !msg.Timestamp.After(*after) {
			continue
		}
		out = append(out, msg)
	}
	sortByTimestamp(out)
	return out, nil
}

// ListByUser returns every message a user has sent, across all repos.
func (m *MemStore) ListByUser(_ context.Context, userID string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Message
	for _, msg := range m.messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	sortByTimestamp(out)
	return out, nil
}

func sortByTimestamp(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
