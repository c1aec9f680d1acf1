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

package memory

import (
	"context"
	"sync"
)

// MemSummaryStore is an in-memory SummaryStore for tests and the embedded
// deployment.
type MemSummaryStore struct {
	mu        sync.RWMutex
	summaries map[string]RepoSummary // key: userID + "\x00" + repoID
}

// NewMemSummaryStore returns an empty MemSummaryStore.
func NewMemSummaryStore() *MemSummaryStore {
	return &MemSummaryStore{summaries: make(map[string]RepoSummary)}
}

var _ SummaryStore = (*MemSummaryStore)(nil)

func summaryKey(userID, repoID string) string { return userID + "\x00" + repoID }

// Get returns the summary for a user/repo pair, if one exists.
func (m *MemSummaryStore) Get(_ context.Context, userID, repoID string) (RepoSummary, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[summaryKey(userID, repoID)]
	return s, ok, nil
}

// Upsert stores or replaces a user/repo summary.
func (m *MemSummaryStore) Upsert(_ context.Context, s RepoSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summaryKey(s.UserID, s.RepoID)] = s
	return nil
}

// MemFactStore is an in-memory FactStore for tests and the embedded
// deployment.
type MemFactStore struct {
	mu    sync.RWMutex
	facts map[string]UserFact // key: userID + "\x00" + key
}

// NewMemFactStore returns an empty MemFactStore.
func NewMemFactStore() *MemFactStore {
	return &MemFactStore{facts: make(map[string]UserFact)}
}

var _ FactStore = (*MemFactStore)(nil)

func factKey(userID, key string) string { return userID + "\x00" + key }

// Get returns a single fact for a user, if one exists.
func (m *MemFactStore) Get(_ context.Context, userID, key string) (UserFact, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.facts[factKey(userID, key)]
	return f, ok, nil
}

// Upsert stores or replaces a user fact.
func (m *MemFactStore) Upsert(_ context.Context, f UserFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[factKey(f.UserID, f.Key)] = f
	return nil
}

// List returns every fact known about userID.
func (m *MemFactStore) List(_ context.Context, userID string) ([]UserFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []UserFact
	for _, f := range m.facts {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}
