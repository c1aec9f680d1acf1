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
	"encoding/json"
	"testing"
	"time"

	"github.com/kraklabs/cie/pkg/chathistory"
	"github.com/kraklabs/cie/pkg/jobqueue"
	"github.com/kraklabs/cie/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleJobRunsRepoSummaryTask(t *testing.T) {
	history := chathistory.NewMemStore()
	require.NoError(t, history.Append(context.Background(), chathistory.Message{
		UserID: "u1", RepoID: "r1", Sender: chathistory.SenderUser, Content: "hi", Timestamp: time.Now(),
	}))
	provider := &llm.MockProvider{
		ChatStructuredFunc: func(context.Context, llm.ChatRequest, json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"summary": "a summary"}`), nil
		},
	}
	m := NewMaintainer(provider, history, NewMemSummaryStore(), NewMemFactStore(), "m", nil)

	m.HandleJob(context.Background(), jobqueue.MemoryJob{Kind: jobqueue.MemoryJobRepoSummary, UserID: "u1", RepoID: "r1"})

	stored, found, err := m.Summaries.Get(context.Background(), "u1", "r1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a summary", stored.SummaryText)
}

func TestHandleJobRunsUserFactsTask(t *testing.T) {
	history := chathistory.NewMemStore()
	require.NoError(t, history.Append(context.Background(), chathistory.Message{
		UserID: "u1", RepoID: "r1", Sender: chathistory.SenderUser, Content: "I'm Dana", Timestamp: time.Now(),
	}))
	provider := &llm.MockProvider{
		ChatStructuredFunc: func(context.Context, llm.ChatRequest, json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"facts": [{"key": "name", "value": "Dana"}]}`), nil
		},
	}
	m := NewMaintainer(provider, history, NewMemSummaryStore(), NewMemFactStore(), "m", nil)

	m.HandleJob(context.Background(), jobqueue.MemoryJob{Kind: jobqueue.MemoryJobUserFacts, UserID: "u1"})

	stored, found, err := m.Facts.Get(context.Background(), "u1", "name")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Dana", stored.Value)
}

func TestHandleJobHonorsRunAtDelay(t *testing.T) {
	history := chathistory.NewMemStore()
	provider := &llm.MockProvider{}
	m := NewMaintainer(provider, history, NewMemSummaryStore(), NewMemFactStore(), "m", nil)

	start := time.Now()
	m.HandleJob(context.Background(), jobqueue.MemoryJob{
		Kind: jobqueue.MemoryJobRepoSummary, UserID: "u1", RepoID: "r1", RunAt: start.Add(50 * time.Millisecond),
	})
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestHandleJobReturnsEarlyOnCanceledContext(t *testing.T) {
	m := NewMaintainer(&llm.MockProvider{}, chathistory.NewMemStore(), NewMemSummaryStore(), NewMemFactStore(), "m", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		m.HandleJob(ctx, jobqueue.MemoryJob{Kind: jobqueue.MemoryJobRepoSummary, RunAt: time.Now().Add(time.Hour)})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleJob did not return promptly on a canceled context")
	}
}
