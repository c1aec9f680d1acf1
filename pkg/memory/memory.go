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

// Package memory is the background memory maintainer (C8): it folds a
// user's chat history into two durable layers the query agent conditions
// on at the start of a conversation — a rolling per-repo summary, and a
// set of repo-independent facts about the user. Both tasks run out of
// band, dispatched through pkg/jobqueue.MemoryJob rather than inline with
// a chat request.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/cie/pkg/chathistory"
	"github.com/kraklabs/cie/pkg/llm"
)

// RepoSummary is the rolling, bounded summary of a user's conversation
// about a single repository.
type RepoSummary struct {
	UserID              string
	RepoID              string
	SummaryText         string
	LastMessageTimestamp time.Time
}

// UserFact is one durable, repo-independent fact the maintainer has
// learned about a user (name, role, preferred tools, and similar).
type UserFact struct {
	UserID string
	Key    string
	Value  string
}

// SummaryStore persists the rolling per-repo summary.
type SummaryStore interface {
	Get(ctx context.Context, userID, repoID string) (RepoSummary, bool, error)
	Upsert(ctx context.Context, s RepoSummary) error
}

// FactStore persists the user-fact set.
type FactStore interface {
	Get(ctx context.Context, userID, key string) (UserFact, bool, error)
	Upsert(ctx context.Context, f UserFact) error

	// List returns every known fact about userID, in no particular
	// order — the shape the chat handler needs to build the long-term
	// memory layer of its system prompt.
	List(ctx context.Context, userID string) ([]UserFact, error)
}

const (
	summaryMaxWords = 200

	summarySystemPrompt = `You maintain a running summary of a user's conversation about a codebase. Given the existing summary (if any) and new chat messages, produce an updated summary of at most 200 words covering the key questions asked, answers given, decisions made, and knowledge gained about the codebase. If no codebase or technical discussion has happened yet, say so plainly instead of inventing content.

Respond with a JSON object: {"summary": "..."}`

	factsSystemPrompt = `You extract durable, repo-independent facts about a user from their chat messages: their name, role, organization, preferred tools or languages, and similar lasting personal details. Ignore greetings, pleasantries, and anything specific to a single codebase question. If no such facts are present, return an empty list.

Respond with a JSON object: {"facts": [{"key": "...", "value": "..."}]}`
)

var summarySchema = json.RawMessage(`{
	"type": "object",
	"required": ["summary"],
	"properties": {"summary": {"type": "string"}}
}`)

var factsSchema = json.RawMessage(`{
	"type": "object",
	"required": ["facts"],
	"properties": {
		"facts": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["key", "value"],
				"properties": {"key": {"type": "string"}, "value": {"type": "string"}}
			}
		}
	}
}`)

type summaryOutput struct {
	Summary string `json:"summary"`
}

type factsOutput struct {
	Facts []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"facts"`
}

// Maintainer runs the two memory-maintenance tasks.
type Maintainer struct {
	Provider  llm.Provider
	History   chathistory.Store
	Summaries SummaryStore
	Facts     FactStore
	logger    *slog.Logger

	// ModelID selects the utility model the maintainer uses for both
	// tasks, distinct from whatever model a user picked for their chat.
	ModelID string
}

// NewMaintainer builds a Maintainer. A nil logger falls back to
// slog.Default().
func NewMaintainer(provider llm.Provider, history chathistory.Store, summaries SummaryStore, facts FactStore, modelID string, logger *slog.Logger) *Maintainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintainer{
		Provider:  provider,
		History:   history,
		Summaries: summaries,
		Facts:     facts,
		ModelID:   modelID,
		logger:    logger,
	}
}

// RefreshRepoSummary folds any chat messages newer than the existing
// summary's watermark into an updated, still-bounded summary. If there are
// no new messages to fold in, the existing summary is returned unchanged
// without an LLM call — mirroring the original task's own short-circuit.
func (m *Maintainer) RefreshRepoSummary(ctx context.Context, userID, repoID string) (RepoSummary, error) {
	existing, found, err := m.Summaries.Get(ctx, userID, repoID)
	if err != nil {
		return RepoSummary{}, fmt.Errorf("memory: load existing summary: %w", err)
	}

	var after *time.Time
	if found {
		after = &existing.LastMessageTimestamp
	}

	msgs, err := m.History.ListByUserRepo(ctx, userID, repoID, after)
	if err != nil {
		return RepoSummary{}, fmt.Errorf("memory: load chat history: %w", err)
	}
	if len(msgs) == 0 {
		return existing, nil
	}

	req := llm.ChatRequest{
		Model:    m.ModelID,
		Messages: buildSummaryMessages(existing, msgs),
	}

	raw, err := m.Provider.ChatStructured(ctx, req, summarySchema)
	if err != nil {
		return RepoSummary{}, fmt.Errorf("memory: summarize: %w", err)
	}

	var out summaryOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return RepoSummary{}, fmt.Errorf("memory: decode summary: %w", err)
	}

	updated := RepoSummary{
		UserID:               userID,
		RepoID:               repoID,
		SummaryText:          out.Summary,
		LastMessageTimestamp: msgs[len(msgs)-1].Timestamp,
	}
	if err := m.Summaries.Upsert(ctx, updated); err != nil {
		return RepoSummary{}, fmt.Errorf("memory: persist summary: %w", err)
	}
	return updated, nil
}

func buildSummaryMessages(existing RepoSummary, msgs []chathistory.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs)+2)
	out = append(out, llm.Message{Role: "system", Content: summarySystemPrompt})
	if existing.SummaryText != "" {
		out = append(out, llm.Message{Role: "system", Content: "Existing summary:\n" + existing.SummaryText})
	}
	for _, msg := range msgs {
		out = append(out, chatMessageToLLM(msg))
	}
	return out
}

// ExtractUserFacts re-derives the user's fact set from their entire chat
// history (across every repo, not just one), upserting only the facts
// that changed — the task always looks at full history rather than an
// incremental window, since a fact stated once may not be restated.
func (m *Maintainer) ExtractUserFacts(ctx context.Context, userID string) ([]UserFact, error) {
	msgs, err := m.History.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("memory: load chat history: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	req := llm.ChatRequest{
		Model: m.ModelID,
		Messages: append([]llm.Message{
			{Role: "system", Content: factsSystemPrompt},
		}, messagesToLLM(msgs)...),
	}

	raw, err := m.Provider.ChatStructured(ctx, req, factsSchema)
	if err != nil {
		return nil, fmt.Errorf("memory: extract facts: %w", err)
	}

	var out factsOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("memory: decode facts: %w", err)
	}

	facts := make([]UserFact, 0, len(out.Facts))
	for _, f := range out.Facts {
		fact := UserFact{UserID: userID, Key: f.Key, Value: f.Value}

		existing, found, err := m.Facts.Get(ctx, userID, f.Key)
		if err != nil {
			return nil, fmt.Errorf("memory: load existing fact %q: %w", f.Key, err)
		}
		if found && existing.Value == fact.Value {
			facts = append(facts, fact)
			continue
		}
		if err := m.Facts.Upsert(ctx, fact); err != nil {
			return nil, fmt.Errorf("memory: persist fact %q: %w", f.Key, err)
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

func messagesToLLM(msgs []chathistory.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, chatMessageToLLM(msg))
	}
	return out
}

func chatMessageToLLM(msg chathistory.Message) llm.Message {
	role := "assistant"
	if msg.Sender == chathistory.SenderUser {
		role = "user"
	}
	return llm.Message{Role: role, Content: msg.Content}
}
