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

// Package main implements the CIE chat API: the HTTP surface in front of
// the query agent (internal/agentgraph), chat history, data sources, and
// the memory maintainer. Mirrors the shape of the original Flask chat
// blueprint, but as a plain net/http server.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/kraklabs/cie/internal/agentgraph"
	"github.com/kraklabs/cie/pkg/chathistory"
	"github.com/kraklabs/cie/pkg/datasource"
	"github.com/kraklabs/cie/pkg/jobqueue"
	"github.com/kraklabs/cie/pkg/memory"
	"github.com/kraklabs/cie/pkg/secretstore"

	"log/slog"
)

// repoSummaryDelay and userFactsDelay are the countdowns the original
// backend dispatched its two memory-maintenance Celery tasks with,
// chosen so the chat-history commit those tasks read is visible by the
// time they run.
const (
	repoSummaryDelay = 5 * time.Second
	userFactsDelay   = 10 * time.Second
)

// defaultUserID is used when no caller identity is attached to the
// request. Real auth/session handling is out of scope for the core (it
// depends on it only through this seam); a deployment that needs
// multi-user auth plugs a middleware in front that sets the
// X-User-ID header.
const defaultUserID = "local-user"

// Server holds every collaborator the chat API depends on.
type Server struct {
	Agent     *agentgraph.Agent
	History   chathistory.Store
	Sources   datasource.Store
	Models    ModelRegistry
	Secrets   secretstore.Store
	Memory    *memory.Maintainer
	Jobs      *jobqueue.Queue
	DefaultModelID string
	logger    *slog.Logger
}

// NewServer wires the chat API's dependencies together.
func NewServer(agent *agentgraph.Agent, history chathistory.Store, sources datasource.Store, models ModelRegistry, secrets secretstore.Store, mem *memory.Maintainer, jobs *jobqueue.Queue, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Agent:   agent,
		History: history,
		Sources: sources,
		Models:  models,
		Secrets: secrets,
		Memory:  mem,
		Jobs:    jobs,
		logger:  logger,
	}
}

// Handler builds the full routed HTTP handler for the chat API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/available-models/", s.handleAvailableModels)
	mux.HandleFunc("GET /api/chat/history/{session_id}/", s.handleChatHistory)
	mux.HandleFunc("POST /api/chat/", s.handleChat)
	mux.HandleFunc("GET /api/data-sources/", s.handleListDataSources)
	mux.HandleFunc("POST /api/data-sources/", s.handleCreateDataSource)
	mux.HandleFunc("DELETE /api/data-sources/{id}", s.handleDeleteDataSource)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return corsMiddleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userID resolves the caller identity for a request. Real authentication
// is out of scope for the core; this reads whatever a front-door
// middleware has already set.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return defaultUserID
}

// dispatchMemoryJobs enqueues the repo-summary and user-facts tasks with
// their original countdowns, run in the request's background so they
// never block the response the client is waiting on.
func (s *Server) dispatchMemoryJobs(ctx context.Context, userID, repoID string) {
	if s.Jobs == nil {
		return
	}
	now := time.Now()
	if err := s.Jobs.PublishMemory(ctx, jobqueue.MemoryJob{
		Kind: jobqueue.MemoryJobRepoSummary, UserID: userID, RepoID: repoID, RunAt: now.Add(repoSummaryDelay),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue repo summary task", "error", err)
	}
	if err := s.Jobs.PublishMemory(ctx, jobqueue.MemoryJob{
		Kind: jobqueue.MemoryJobUserFacts, UserID: userID, RunAt: now.Add(userFactsDelay),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue user facts task", "error", err)
	}
}
