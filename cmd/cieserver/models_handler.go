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
)

type availableModel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Notes    string `json:"notes"`
}

// handleAvailableModels lists active models whose credential is present
// (or that require none), the same filter the original endpoint applied
// before showing a model as selectable.
func (s *Server) handleAvailableModels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	models, err := s.Models.List(ctx)
	if err != nil {
		writeAPIError(w, errUpstreamUnavailable("failed to list models"))
		return
	}

	out := make([]availableModel, 0, len(models))
	for _, m := range models {
		if !m.IsActive {
			continue
		}
		if m.APIKeyName != "" {
			if _, err := s.Secrets.Get(ctx, m.APIKeyName); err != nil {
				continue
			}
		}
		out = append(out, availableModel{ID: m.ID, Name: m.Name, Provider: m.Provider, Notes: m.Notes})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
