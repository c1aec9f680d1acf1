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

// Package vectorstore provides the Qdrant-backed vector index and its
// embedded (in-process) fallback for offline CLI use.
//
// Example:
//
//	store, err := vectorstore.New("localhost:6334", "cie_functions")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.EnsureCollection(ctx, 1536); err != nil {
//		log.Fatal(err)
//	}
//	err = store.Upsert(ctx, repoID, []vectorstore.Record{
//		{ID: "main.go:handleRequest", Vector: embedding, Metadata: map[string]any{
//			"function_name": "handleRequest",
//			"file_path":     "main.go",
//		}},
//	})
package vectorstore
