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

// Package graphstore provides the typed property-graph abstraction for CIE.
//
// It models a repository as Directory, File, Class, and Function nodes
// connected by CONTAINS, DEFINES_CLASS, DEFINES_FUNCTION, HAS_METHOD,
// INHERITS_FROM, CALLS, and IMPORTS relationships, scoped by a repo_id
// property that every node carries. All write operations use Neo4j's
// MERGE semantics so re-ingesting a repository is idempotent, and every
// query is parameterized rather than string-interpolated.
package graphstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Store is the graph-store contract consumed by the ingestion pipeline and
// the query agent's graph tool. Every method is scoped by repoID so that
// distinct repositories never leak nodes or edges into one another.
type Store interface {
	UpsertDirectory(ctx context.Context, repoID, path string) error
	LinkContains(ctx context.Context, repoID, parentPath, childPath, childKind string) error
	UpsertFile(ctx context.Context, repoID, path string) error
	UpsertClass(ctx context.Context, repoID, filePath, name, docstring string, baseClassNames []string) error
	UpsertFunction(ctx context.Context, repoID, filePath, name, docstring, className string) error
	AddCall(ctx context.Context, repoID, callerName, callerFile, calleeName string) error
	AddImport(ctx context.Context, repoID, filePath, moduleName string) error
	AddInherits(ctx context.Context, repoID, className, filePath string, baseNames []string) error
	RunQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	SchemaDescription() string
	CascadeDelete(ctx context.Context, repoID string) error
	Close(ctx context.Context) error
}

// ChildKind enumerates the node labels LinkContains accepts as a child.
const (
	ChildKindFile      = "File"
	ChildKindDirectory = "Directory"
)

// Neo4jStore implements Store against a Neo4j database using the official
// Go driver. Every write runs in its own auto-commit session; the store
// does not hold connections open across calls beyond the driver's own
// pool, matching how the original Python knowledge-graph manager opened a
// fresh session per query.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jStore wraps an already-constructed driver. Callers are
// responsible for driver lifecycle (typically created once at process
// startup via neo4j.NewDriverWithContext and passed in here).
func NewNeo4jStore(driver neo4j.DriverWithContext) *Neo4jStore {
	return &Neo4jStore{driver: driver}
}

var _ Store = (*Neo4jStore)(nil)

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{})
}

// run executes a single Cypher statement against its own session and
// discards the result stream, surfacing only the execution error.
func (s *Neo4jStore) run(ctx context.Context, cypher string, params map[string]any) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, cypher, params)
	return err
}

func (s *Neo4jStore) UpsertDirectory(ctx context.Context, repoID, path string) error {
	cypher := "MERGE (d:Directory {path: $path, repo_id: $repo_id}) " +
		"ON CREATE SET d.summary = '' " +
		"RETURN d"
	return s.run(ctx, cypher, map[string]any{"path": path, "repo_id": repoID})
}

func (s *Neo4jStore) UpsertFile(ctx context.Context, repoID, path string) error {
	cypher := "MERGE (f:File {path: $path, repo_id: $repo_id}) " +
		"ON CREATE SET f.summary = '' " +
		"RETURN f"
	return s.run(ctx, cypher, map[string]any{"path": path, "repo_id": repoID})
}

// LinkContains connects a parent Directory to a child File or Directory.
// childKind must be ChildKindFile or ChildKindDirectory.
func (s *Neo4jStore) LinkContains(ctx context.Context, repoID, parentPath, childPath, childKind string) error {
	if childKind != ChildKindFile && childKind != ChildKindDirectory {
		return fmt.Errorf("graphstore: invalid child kind %q, must be %q or %q", childKind, ChildKindFile, ChildKindDirectory)
	}
	cypher := fmt.Sprintf(
		"MATCH (parent:Directory {path: $parent_path, repo_id: $repo_id}) "+
			"MATCH (child:%s {path: $child_path, repo_id: $repo_id}) "+
			"MERGE (parent)-[:CONTAINS]->(child)",
		childKind,
	)
	params := map[string]any{
		"parent_path": parentPath,
		"child_path":  childPath,
		"repo_id":     repoID,
	}
	return s.run(ctx, cypher, params)
}

// UpsertClass merges a Class node, setting its summary only on first
// creation, then links it to any base classes already present in the
// same repository. Unresolved base-class names are silently skipped.
func (s *Neo4jStore) UpsertClass(ctx context.Context, repoID, filePath, name, docstring string, baseClassNames []string) error {
	cypher := "MERGE (file:File {path: $file_path, repo_id: $repo_id}) " +
		"MERGE (class:Class {name: $name, file_path: $file_path, repo_id: $repo_id}) " +
		"ON CREATE SET class.summary = $docstring " +
		"MERGE (file)-[:DEFINES_CLASS]->(class)"
	params := map[string]any{
		"file_path": filePath,
		"name":      name,
		"docstring": docstring,
		"repo_id":   repoID,
	}
	if err := s.run(ctx, cypher, params); err != nil {
		return err
	}
	if len(baseClassNames) == 0 {
		return nil
	}
	return s.AddInherits(ctx, repoID, name, filePath, baseClassNames)
}

// AddInherits links a Class to its base classes. An edge is only created
// when a Class node with the base's name already exists in the same
// repository; bases that resolve to nothing (external libraries, classes
// not yet ingested) are silently skipped, matching the original's
// same-repo inheritance assumption.
func (s *Neo4jStore) AddInherits(ctx context.Context, repoID, className, filePath string, baseNames []string) error {
	if len(baseNames) == 0 {
		return nil
	}
	cypher := "MATCH (class:Class {name: $name, file_path: $file_path, repo_id: $repo_id}) " +
		"UNWIND $base_names AS base_name " +
		"MATCH (base:Class {name: base_name, repo_id: $repo_id}) " +
		"MERGE (class)-[:INHERITS_FROM]->(base)"
	params := map[string]any{
		"name":       className,
		"file_path":  filePath,
		"repo_id":    repoID,
		"base_names": baseNames,
	}
	return s.run(ctx, cypher, params)
}

// UpsertFunction merges a Function node and links it either to its
// containing Class (HAS_METHOD, when className is non-empty) or its
// containing File (DEFINES_FUNCTION). The summary is set only on create.
func (s *Neo4jStore) UpsertFunction(ctx context.Context, repoID, filePath, name, docstring, className string) error {
	if className != "" {
		cypher := "MATCH (class:Class {name: $class_name, file_path: $file_path, repo_id: $repo_id}) " +
			"MERGE (fn:Function {name: $name, file_path: $file_path, repo_id: $repo_id}) " +
			"ON CREATE SET fn.summary = $docstring " +
			"MERGE (class)-[:HAS_METHOD]->(fn)"
		params := map[string]any{
			"class_name": className,
			"name":       name,
			"file_path":  filePath,
			"docstring":  docstring,
			"repo_id":    repoID,
		}
		return s.run(ctx, cypher, params)
	}

	cypher := "MATCH (file:File {path: $file_path, repo_id: $repo_id}) " +
		"MERGE (fn:Function {name: $name, file_path: $file_path, repo_id: $repo_id}) " +
		"ON CREATE SET fn.summary = $docstring " +
		"MERGE (file)-[:DEFINES_FUNCTION]->(fn)"
	params := map[string]any{
		"name":      name,
		"file_path": filePath,
		"docstring": docstring,
		"repo_id":   repoID,
	}
	return s.run(ctx, cypher, params)
}

// AddCall links a caller Function to a callee Function by name. The
// callee is matched only by {name, repo_id}, so if multiple functions
// share a name within a repository every matching edge is created; this
// is an intentional overapproximation rather than a resolution bug.
func (s *Neo4jStore) AddCall(ctx context.Context, repoID, callerName, callerFile, calleeName string) error {
	cypher := "MATCH (caller:Function {name: $caller_name, file_path: $caller_file, repo_id: $repo_id}) " +
		"MATCH (callee:Function {name: $callee_name, repo_id: $repo_id}) " +
		"MERGE (caller)-[:CALLS]->(callee)"
	params := map[string]any{
		"caller_name": callerName,
		"caller_file": callerFile,
		"callee_name": calleeName,
		"repo_id":     repoID,
	}
	return s.run(ctx, cypher, params)
}

// AddImport links a File to a Module node by name. Module nodes are
// global (not scoped by repo_id) since the same module can be imported
// by files in many repositories.
func (s *Neo4jStore) AddImport(ctx context.Context, repoID, filePath, moduleName string) error {
	cypher := "MERGE (file:File {path: $file_path, repo_id: $repo_id}) " +
		"MERGE (mod:Module {name: $module_name}) " +
		"MERGE (file)-[:IMPORTS]->(mod)"
	params := map[string]any{
		"file_path":   filePath,
		"module_name": moduleName,
		"repo_id":     repoID,
	}
	return s.run(ctx, cypher, params)
}

// RunQuery executes a read-only Cypher statement and flattens each
// record into a plain map, so the agent's graph tool can serialize
// results without depending on driver-specific record types.
func (s *Neo4jStore) RunQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("graphstore: run query: %w", err)
	}

	var records []map[string]any
	for result.Next(ctx) {
		rec := result.Record()
		row := make(map[string]any, len(rec.Keys))
		for i, key := range rec.Keys {
			row[key] = unwrapValue(rec.Values[i])
		}
		records = append(records, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graphstore: iterate results: %w", err)
	}
	return records, nil
}

// unwrapValue converts driver-native node/relationship types into plain
// maps of properties so query results can be marshaled as JSON for the
// agent without importing dbtype at the call site.
func unwrapValue(v any) any {
	switch val := v.(type) {
	case dbtype.Node:
		props := make(map[string]any, len(val.Props)+1)
		for k, p := range val.Props {
			props[k] = p
		}
		props["_labels"] = val.Labels
		return props
	case dbtype.Relationship:
		props := make(map[string]any, len(val.Props)+1)
		for k, p := range val.Props {
			props[k] = p
		}
		props["_type"] = val.Type
		return props
	default:
		return v
	}
}

// CascadeDelete removes every node (and its relationships) carrying the
// given repo_id. This is the only operation that wipes data outright and
// is meant to run once at the start of re-ingestion.
func (s *Neo4jStore) CascadeDelete(ctx context.Context, repoID string) error {
	cypher := "MATCH (n {repo_id: $repo_id}) DETACH DELETE n"
	return s.run(ctx, cypher, map[string]any{"repo_id": repoID})
}

// Close releases the underlying driver. Call it once at process
// shutdown, not after each Store method.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// SchemaDescription renders the fixed node/relationship schema as text
// for prompt construction. Unlike the original, which introspected a
// live langchain Neo4jGraph.schema property, the label and relationship
// set here is fixed by design, so a static renderer avoids pulling in a
// live-introspection dependency for information that never changes.
func (s *Neo4jStore) SchemaDescription() string {
	var b strings.Builder
	b.WriteString("Node labels:\n")
	b.WriteString("  Directory {path, repo_id, summary}\n")
	b.WriteString("  File {path, repo_id, summary}\n")
	b.WriteString("  Class {name, file_path, repo_id, summary}\n")
	b.WriteString("  Function {name, file_path, repo_id, summary}\n")
	b.WriteString("  Module {name}\n")
	b.WriteString("Relationships:\n")
	b.WriteString("  (Directory)-[:CONTAINS]->(Directory|File)\n")
	b.WriteString("  (File)-[:DEFINES_CLASS]->(Class)\n")
	b.WriteString("  (File)-[:DEFINES_FUNCTION]->(Function)\n")
	b.WriteString("  (Class)-[:HAS_METHOD]->(Function)\n")
	b.WriteString("  (Class)-[:INHERITS_FROM]->(Class)\n")
	b.WriteString("  (Function)-[:CALLS]->(Function)\n")
	b.WriteString("  (File)-[:IMPORTS]->(Module)\n")
	return b.String()
}
