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
	"encoding/json"
	"net/http"
	"time"
)

type chatHistoryMessage struct {
	Content   string `json:"message_content"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// handleChatHistory returns a session's transcript ordered by timestamp
// ascending, scoped to the repo given in ?repo_id=.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	repoID := r.URL.Query().Get("repo_id")
	if sessionID == "" || repoID == "" {
		writeAPIError(w, errMissingInput("session_id and repo_id are required"))
		return
	}

	msgs, err := s.History.ListBySession(r.Context(), sessionID, repoID)
	if err != nil {
		writeAPIError(w, errUpstreamUnavailable("failed to load chat history"))
		return
	}

	out := make([]chatHistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chatHistoryMessage{
			Content:   m.Content,
			Sender:    string(m.Sender),
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
