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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kraklabs/cie/internal/agentgraph"
	"github.com/kraklabs/cie/pkg/chathistory"
	"github.com/kraklabs/cie/pkg/llm"
)

type chatRequest struct {
	Query        string `json:"query"`
	Model        string `json:"model"`
	DataSourceID string `json:"data_source_id"`
	SessionID    string `json:"session_id"`
}

// handleChat is the core query endpoint. It saves the user's message,
// assembles the three memory layers (session history, repo summary, user
// facts) into a system+history prompt, runs the query agent, and streams
// the final answer back as a single SSE chunk before saving the response
// and dispatching the background memory-maintenance tasks — exactly the
// sequencing the original /api/chat/ route used.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, errMissingInput("malformed request body"))
		return
	}
	if strings.TrimSpace(req.Query) == "" || req.Model == "" || req.DataSourceID == "" || req.SessionID == "" {
		writeAPIError(w, errMissingInput("query, model, data_source_id, and session_id are all required"))
		return
	}

	ctx := r.Context()
	user := userID(r)

	model, found, err := s.Models.Get(ctx, req.Model)
	if err != nil {
		writeAPIError(w, errUpstreamUnavailable("failed to resolve model"))
		return
	}
	if !found || !model.IsActive {
		writeAPIError(w, errUnknownModel(fmt.Sprintf("unknown model: %s", req.Model)))
		return
	}

	var apiKey string
	if model.APIKeyName != "" {
		apiKey, err = s.Secrets.Get(ctx, model.APIKeyName)
		if err != nil {
			writeAPIError(w, errNotConfigured(fmt.Sprintf("no usable credential for model %s", req.Model)))
			return
		}
	}

	if _, err := s.Sources.Get(ctx, req.DataSourceID); err != nil {
		writeAPIError(w, errNotFound(fmt.Sprintf("no such data source: %s", req.DataSourceID)))
		return
	}

	now := time.Now()
	if err := s.History.Append(ctx, chathistory.Message{
		SessionID: req.SessionID, UserID: user, RepoID: req.DataSourceID,
		Content: req.Query, Sender: chathistory.SenderUser, Timestamp: now,
	}); err != nil {
		writeAPIError(w, errUpstreamUnavailable("failed to save message"))
		return
	}

	history, err := s.buildChatHistory(ctx, user, req.SessionID, req.DataSourceID)
	if err != nil {
		writeAPIError(w, errUpstreamUnavailable("failed to load conversation memory"))
		return
	}

	result, err := s.Agent.Run(ctx, agentgraph.State{
		OriginalQuery: req.Query,
		RepoID:        req.DataSourceID,
		SessionID:     req.SessionID,
		ChatHistory:   history,
		APIKey:        apiKey,
		ModelID:       req.Model,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "agent run failed", "error", err)
	}
	if result.FinalAnswer == "" {
		result.FinalAnswer = "I apologize, but I was unable to answer your question."
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, errUpstreamUnavailable("streaming not supported"))
		return
	}

	writeSSEChunk(w, map[string]string{"chunk": result.FinalAnswer})
	flusher.Flush()
	writeSSEDone(w)
	flusher.Flush()

	if err := s.History.Append(ctx, chathistory.Message{
		SessionID: req.SessionID, UserID: user, RepoID: req.DataSourceID,
		Content: result.FinalAnswer, Sender: chathistory.SenderLLM, Timestamp: time.Now(),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to save assistant message", "error", err)
	}

	s.dispatchMemoryJobs(ctx, user, req.DataSourceID)
}

// buildChatHistory assembles the combined system+history prompt: a system
// message carrying the long-term (user facts) and mid-term (repo summary)
// memory layers, followed by the short-term session transcript.
func (s *Server) buildChatHistory(ctx context.Context, userID, sessionID, repoID string) ([]llm.Message, error) {
	var systemParts []string

	if s.Memory != nil {
		summary, found, err := s.Memory.Summaries.Get(ctx, userID, repoID)
		if err != nil {
			return nil, err
		}
		if found && summary.SummaryText != "" {
			systemParts = append(systemParts, "Repository conversation summary:\n"+summary.SummaryText)
		}

		facts, err := s.Memory.Facts.List(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(facts) > 0 {
			var b strings.Builder
			b.WriteString("Known facts about the user:\n")
			for _, f := range facts {
				fmt.Fprintf(&b, "- %s: %s\n", f.Key, f.Value)
			}
			systemParts = append(systemParts, b.String())
		}
	}

	session, err := s.History.ListBySession(ctx, sessionID, repoID)
	if err != nil {
		return nil, err
	}

	out := make([]llm.Message, 0, len(systemParts)+len(session))
	for _, part := range systemParts {
		out = append(out, llm.Message{Role: "system", Content: part})
	}
	for _, msg := range session {
		role := "assistant"
		if msg.Sender == chathistory.SenderUser {
			role = "user"
		}
		out = append(out, llm.Message{Role: role, Content: msg.Content})
	}
	return out, nil
}

func writeSSEChunk(w http.ResponseWriter, payload map[string]string) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeSSEDone(w http.ResponseWriter) {
	fmt.Fprint(w, `data: {"status": "done"}`+"\n\n")
}
