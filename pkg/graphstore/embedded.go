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

package graphstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/kraklabs/cie/pkg/storage"
)

// EmbeddedStore implements Store against the teacher's embedded CozoDB
// backend (pkg/storage.EmbeddedBackend), so a single repository can be
// indexed and queried offline without a running Neo4j instance. It
// expresses the same Directory/File/Class/Function node-and-edge model
// the Neo4j-backed Store uses, over tables created by
// storage.EmbeddedBackend.EnsureGraphSchema, written with CozoScript's
// `:put` upsert mutations in place of Cypher's MERGE.
//
// RunQuery on this Store runs its cypher argument as CozoScript, not
// Cypher; callers that need to work against either backend interchangeably
// should route through the higher-level query agent tools rather than
// hand-writing query text.
type EmbeddedStore struct {
	backend *storage.EmbeddedBackend
}

// NewEmbeddedStore wraps an already-initialized embedded backend. Callers
// must call backend.EnsureGraphSchema() once before first use.
func NewEmbeddedStore(backend *storage.EmbeddedBackend) *EmbeddedStore {
	return &EmbeddedStore{backend: backend}
}

var _ Store = (*EmbeddedStore)(nil)

func graphRowID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}

func (s *EmbeddedStore) UpsertDirectory(ctx context.Context, repoID, path string) error {
	id := graphRowID("dir", repoID, path)
	datalog := fmt.Sprintf(
		":put cie_graph_directory { id => repo_id, path, summary }\n%s, %s, %s, %s\n",
		cozoStr(id), cozoStr(repoID), cozoStr(path), cozoStr(""),
	)
	return s.backend.Execute(ctx, datalog)
}

func (s *EmbeddedStore) UpsertFile(ctx context.Context, repoID, path string) error {
	id := graphRowID("file", repoID, path)
	datalog := fmt.Sprintf(
		":put cie_graph_file { id => repo_id, path, summary }\n%s, %s, %s, %s\n",
		cozoStr(id), cozoStr(repoID), cozoStr(path), cozoStr(""),
	)
	return s.backend.Execute(ctx, datalog)
}

func (s *EmbeddedStore) LinkContains(ctx context.Context, repoID, parentPath, childPath, childKind string) error {
	if childKind != ChildKindFile && childKind != ChildKindDirectory {
		return fmt.Errorf("graphstore: invalid child kind %q, must be %q or %q", childKind, ChildKindFile, ChildKindDirectory)
	}
	id := graphRowID("contains", repoID, parentPath, childPath)
	datalog := fmt.Sprintf(
		":put cie_graph_contains { id => repo_id, parent_path, child_path, child_kind }\n%s, %s, %s, %s, %s\n",
		cozoStr(id), cozoStr(repoID), cozoStr(parentPath), cozoStr(childPath), cozoStr(childKind),
	)
	return s.backend.Execute(ctx, datalog)
}

func (s *EmbeddedStore) UpsertClass(ctx context.Context, repoID, filePath, name, docstring string, baseClassNames []string) error {
	id := graphRowID("class", repoID, filePath, name)
	datalog := fmt.Sprintf(
		":put cie_graph_class { id => repo_id, name, file_path, summary }\n%s, %s, %s, %s, %s\n",
		cozoStr(id), cozoStr(repoID), cozoStr(name), cozoStr(filePath), cozoStr(docstring),
	)
	if err := s.backend.Execute(ctx, datalog); err != nil {
		return err
	}
	if len(baseClassNames) == 0 {
		return nil
	}
	return s.AddInherits(ctx, repoID, name, filePath, baseClassNames)
}

// AddInherits only writes an edge for base names that already resolve to a
// Class row in the same repo; unlike Cypher's MATCH, CozoScript :put has
// no built-in existence guard, so the check is a query run before the write.
func (s *EmbeddedStore) AddInherits(ctx context.Context, repoID, className, filePath string, baseNames []string) error {
	if len(baseNames) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`?[name] := *cie_graph_class { repo_id, name }, repo_id = %s`,
		cozoStr(repoID),
	)
	result, err := s.backend.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("graphstore: resolve base classes: %w", err)
	}
	existing := make(map[string]bool, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) > 0 {
			if name, ok := row[0].(string); ok {
				existing[name] = true
			}
		}
	}

	var sb strings.Builder
	wrote := false
	for _, base := range baseNames {
		if !existing[base] {
			continue
		}
		if !wrote {
			sb.WriteString(":put cie_graph_inherits { id => repo_id, class_name, file_path, base_name }\n")
			wrote = true
		}
		id := graphRowID("inherits", repoID, filePath, className, base)
		fmt.Fprintf(&sb, "%s, %s, %s, %s, %s\n", cozoStr(id), cozoStr(repoID), cozoStr(className), cozoStr(filePath), cozoStr(base))
	}
	if !wrote {
		return nil
	}
	return s.backend.Execute(ctx, sb.String())
}

func (s *EmbeddedStore) UpsertFunction(ctx context.Context, repoID, filePath, name, docstring, className string) error {
	id := graphRowID("function", repoID, filePath, className, name)
	datalog := fmt.Sprintf(
		":put cie_graph_function { id => repo_id, name, file_path, class_name, summary }\n%s, %s, %s, %s, %s, %s\n",
		cozoStr(id), cozoStr(repoID), cozoStr(name), cozoStr(filePath), cozoStr(className), cozoStr(docstring),
	)
	return s.backend.Execute(ctx, datalog)
}

func (s *EmbeddedStore) AddCall(ctx context.Context, repoID, callerName, callerFile, calleeName string) error {
	id := graphRowID("call", repoID, callerFile, callerName, calleeName)
	datalog := fmt.Sprintf(
		":put cie_graph_calls { id => repo_id, caller_name, caller_file, callee_name }\n%s, %s, %s, %s, %s\n",
		cozoStr(id), cozoStr(repoID), cozoStr(callerName), cozoStr(callerFile), cozoStr(calleeName),
	)
	return s.backend.Execute(ctx, datalog)
}

func (s *EmbeddedStore) AddImport(ctx context.Context, repoID, filePath, moduleName string) error {
	var sb strings.Builder
	sb.WriteString(":put cie_graph_module { name => }\n")
	fmt.Fprintf(&sb, "%s\n", cozoStr(moduleName))
	if err := s.backend.Execute(ctx, sb.String()); err != nil {
		return err
	}

	id := graphRowID("import", repoID, filePath, moduleName)
	datalog := fmt.Sprintf(
		":put cie_graph_imports { id => repo_id, file_path, module_name }\n%s, %s, %s, %s\n",
		cozoStr(id), cozoStr(repoID), cozoStr(filePath), cozoStr(moduleName),
	)
	return s.backend.Execute(ctx, datalog)
}

// RunQuery executes the given text as a read-only CozoScript query
// against the embedded backend and flattens each row into a map keyed by
// the query's column headers.
func (s *EmbeddedStore) RunQuery(ctx context.Context, query string, _ map[string]any) ([]map[string]any, error) {
	result, err := s.backend.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("graphstore: run query: %w", err)
	}

	records := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		rec := make(map[string]any, len(result.Headers))
		for i, header := range result.Headers {
			if i < len(row) {
				rec[header] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *EmbeddedStore) SchemaDescription() string {
	var b strings.Builder
	b.WriteString("Tables:\n")
	b.WriteString("  cie_graph_directory {id, repo_id, path, summary}\n")
	b.WriteString("  cie_graph_file {id, repo_id, path, summary}\n")
	b.WriteString("  cie_graph_class {id, repo_id, name, file_path, summary}\n")
	b.WriteString("  cie_graph_function {id, repo_id, name, file_path, class_name, summary}\n")
	b.WriteString("  cie_graph_module {name}\n")
	b.WriteString("Edges:\n")
	b.WriteString("  cie_graph_contains {parent_path, child_path, child_kind}\n")
	b.WriteString("  cie_graph_inherits {class_name, file_path, base_name}\n")
	b.WriteString("  cie_graph_calls {caller_name, caller_file, callee_name}\n")
	b.WriteString("  cie_graph_imports {file_path, module_name}\n")
	return b.String()
}

// CascadeDelete removes every row scoped to repoID across all graph
// tables. CozoScript has no DETACH DELETE; each table is cleared with its
// own rule-driven removal.
func (s *EmbeddedStore) CascadeDelete(ctx context.Context, repoID string) error {
	tables := []string{
		"cie_graph_directory", "cie_graph_file", "cie_graph_contains",
		"cie_graph_class", "cie_graph_function", "cie_graph_inherits",
		"cie_graph_calls", "cie_graph_imports",
	}
	for _, table := range tables {
		datalog := fmt.Sprintf(
			"?[id] := *%s { id, repo_id }, repo_id = %s\n:rm %s { id }",
			table, cozoStr(repoID), table,
		)
		if err := s.backend.Execute(ctx, datalog); err != nil {
			return fmt.Errorf("graphstore: cascade delete %s: %w", table, err)
		}
	}
	return nil
}

func (s *EmbeddedStore) Close(ctx context.Context) error {
	return s.backend.Close()
}

func cozoStr(s string) string {
	return strconv.Quote(s)
}
