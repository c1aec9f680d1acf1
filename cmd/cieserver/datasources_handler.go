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
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kraklabs/cie/pkg/datasource"
	"github.com/kraklabs/cie/pkg/ingestion"
	"github.com/kraklabs/cie/pkg/jobqueue"
)

type dataSourceRegistry interface {
	datasource.Store
	Add(userID string, ds datasource.DataSource)
}

// handleListDataSources lists the repositories registered to the caller.
func (s *Server) handleListDataSources(w http.ResponseWriter, r *http.Request) {
	out, err := s.Sources.List(r.Context(), userID(r))
	if err != nil {
		writeAPIError(w, errUpstreamUnavailable("failed to list data sources"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

type createDataSourceRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// handleCreateDataSource registers a new repository and enqueues its
// initial ingestion job; the background ingestion pipeline (C6) performs
// the actual clone/parse/index work.
func (s *Server) handleCreateDataSource(w http.ResponseWriter, r *http.Request) {
	var req createDataSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Source) == "" {
		writeAPIError(w, errMissingInput("name and source are required"))
		return
	}

	registry, ok := s.Sources.(dataSourceRegistry)
	if !ok {
		writeAPIError(w, errUpstreamUnavailable("data source registration not supported by this store"))
		return
	}

	ds := datasource.DataSource{ID: newID(), Name: req.Name}
	registry.Add(userID(r), ds)

	if s.Jobs != nil {
		if err := s.Jobs.PublishIngest(r.Context(), jobqueue.IngestJob{RepoID: ds.ID, Source: req.Source}); err != nil {
			s.logger.ErrorContext(r.Context(), "failed to enqueue ingestion job", "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(ds)
}

// handleDeleteDataSource deregisters a repository and cascades the delete
// into the graph and vector stores so no node or vector scoped to its
// repo_id survives the request.
func (s *Server) handleDeleteDataSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeAPIError(w, errMissingInput("data source id is required"))
		return
	}
	if _, err := s.Sources.Get(r.Context(), id); err != nil {
		writeAPIError(w, errNotFound("no such data source: "+id))
		return
	}

	if s.Agent != nil && s.Agent.Executor != nil && s.Agent.Executor.Tools != nil {
		tools := s.Agent.Executor.Tools
		if tools.Graph != nil && tools.Vectors != nil {
			if err := ingestion.WipeRepoData(r.Context(), tools.Graph, tools.Vectors, id); err != nil {
				s.logger.ErrorContext(r.Context(), "failed to cascade delete data source", "data_source_id", id, "error", err)
				writeAPIError(w, errUpstreamUnavailable("failed to delete data source"))
				return
			}
		}
	}

	w.WriteHeader(http.StatusAccepted)
}

func newID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
