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

package storage

// EnsureGraphSchema creates the CozoDB tables backing the offline,
// embedded implementation of the property-graph Store (pkg/graphstore's
// EmbeddedStore). These tables are distinct from the cie_function/cie_type
// ingestion tables created by EnsureSchema: they model the Directory,
// Class, and edge shapes the ingestion schema never needed, each scoped
// by repo_id so one embedded database can hold more than one repository.
func (b *EmbeddedBackend) EnsureGraphSchema() error {
	tables := []string{
		`:create cie_graph_directory { id: String => repo_id: String, path: String, summary: String }`,
		`:create cie_graph_file { id: String => repo_id: String, path: String, summary: String }`,
		`:create cie_graph_contains { id: String => repo_id: String, parent_path: String, child_path: String, child_kind: String }`,
		`:create cie_graph_class { id: String => repo_id: String, name: String, file_path: String, summary: String }`,
		`:create cie_graph_function { id: String => repo_id: String, name: String, file_path: String, class_name: String, summary: String }`,
		`:create cie_graph_inherits { id: String => repo_id: String, class_name: String, file_path: String, base_name: String }`,
		`:create cie_graph_calls { id: String => repo_id: String, caller_name: String, caller_file: String, callee_name: String }`,
		`:create cie_graph_module { name: String => }`,
		`:create cie_graph_imports { id: String => repo_id: String, file_path: String, module_name: String }`,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, table := range tables {
		if _, err := b.db.Run(table, nil); err != nil {
			// Ignore "already exists" errors, matching EnsureSchema's behavior.
			continue
		}
	}

	return nil
}
