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

	cieerrors "github.com/kraklabs/cie/internal/errors"
)

// statusForExitCode maps internal/errors' CLI exit-code taxonomy onto the
// HTTP status codes spec.md §7 assigns to each error kind. cmd/cieserver
// is the one caller that turns a *UserError into a status code rather
// than a process exit.
func statusForExitCode(code int) int {
	switch code {
	case cieerrors.ExitInput:
		return http.StatusBadRequest
	case cieerrors.ExitNotConfigured:
		return http.StatusServiceUnavailable
	case cieerrors.ExitNotFound:
		return http.StatusNotFound
	case cieerrors.ExitUnauthorized:
		return http.StatusUnauthorized
	case cieerrors.ExitUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errMissingInput(msg string) *cieerrors.UserError {
	return cieerrors.NewInputError(msg, "", "")
}

func errUnknownModel(msg string) *cieerrors.UserError {
	return cieerrors.NewInputError(msg, "the requested model is not configured or is inactive", "call GET /api/chat/available-models/ for the usable set")
}

func errNotConfigured(msg string) *cieerrors.UserError {
	return cieerrors.NewNotConfiguredError(msg, "", "", nil)
}

func errNotFound(msg string) *cieerrors.UserError {
	return cieerrors.NewNotFoundError(msg, "", "")
}

func errUnauthorized(msg string) *cieerrors.UserError {
	return cieerrors.NewUnauthorizedError(msg, "", "")
}

func errUpstreamUnavailable(msg string) *cieerrors.UserError {
	return cieerrors.NewUpstreamError(msg, "", "", nil)
}

// writeAPIError renders a *UserError as a JSON error response at the
// status its exit code maps to.
func writeAPIError(w http.ResponseWriter, e *cieerrors.UserError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForExitCode(e.ExitCode))
	json.NewEncoder(w).Encode(map[string]string{"error": e.Message})
}
