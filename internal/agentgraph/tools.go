// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package agentgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kraklabs/cie/pkg/graphstore"
	"github.com/kraklabs/cie/pkg/ingestion"
	"github.com/kraklabs/cie/pkg/vectorstore"
)

// Tool names, matched by substring against the lowercased plan-step text,
// mirroring the original executor's dispatch logic.
const (
	ToolKnowledgeGraphSearch = "knowledge_graph_search"
	ToolSemanticCodeSearch   = "semantic_code_search"
	ToolFileReader           = "file_reader_tool"
	toolNoOp                 = "no_op"
)

// semanticTopK bounds how many vector matches the semantic search tool
// folds into its result string.
const semanticTopK = 5

// FileReader reads a single file's contents out of a repository's working
// tree, keyed by repo ID and a path relative to the repository root.
type FileReader interface {
	ReadFile(ctx context.Context, repoID, path string) (string, error)
}

// Tools bundles the collaborators the Executor dispatches plan steps to.
type Tools struct {
	Graph      graphstore.Store
	Vectors    vectorstore.Store
	Embeddings ingestion.EmbeddingProvider
	Files      FileReader
}

// runKnowledgeGraphQuery executes an already-generated cypher query against
// the graph and renders the rows as a JSON string. cypher == "" is the
// caller's signal that cypher generation itself declined (an empty or
// SCHEMA_UNHELPFUL reply), in which case no query runs.
func (t *Tools) runKnowledgeGraphQuery(ctx context.Context, s State, cypher string) string {
	if cypher == "" {
		return "Could not generate a relevant Cypher query."
	}

	rows, err := t.Graph.RunQuery(ctx, cypher, map[string]any{"repo_id": s.RepoID})
	if err != nil {
		return fmt.Sprintf("Error executing knowledge graph query: %v", err)
	}

	encoded, err := json.Marshal(rows)
	if err != nil {
		return fmt.Sprintf("Error encoding knowledge graph results: %v", err)
	}
	result := string(encoded)
	if result == "null" || result == "[]" {
		return "The query returned no results."
	}
	return result
}

// semanticCodeSearch embeds query, searches the vector index namespaced by
// repo ID, and renders the top matches as a JSON string.
func (t *Tools) semanticCodeSearch(ctx context.Context, s State, query string) string {
	vec, err := t.Embeddings.Embed(ctx, query)
	if err != nil {
		return fmt.Sprintf("Error embedding search query: %v", err)
	}

	matches, err := t.Vectors.Query(ctx, s.RepoID, vec, semanticTopK)
	if err != nil {
		return fmt.Sprintf("Error querying vector store: %v", err)
	}
	if len(matches) == 0 {
		return "No semantically similar code was found."
	}

	encoded, err := json.Marshal(matches)
	if err != nil {
		return fmt.Sprintf("Error encoding semantic search results: %v", err)
	}
	return string(encoded)
}

// fileReaderTool reads path out of the repository. path is whatever the
// executor extracted from the plan step's explicit file: "<path>" token; an
// empty path means the planner never named one, which is reported rather
// than guessed at.
func (t *Tools) fileReaderTool(ctx context.Context, s State, path string) string {
	if path == "" {
		return "No file path was named in the plan step; expected a file: \"<path>\" token."
	}
	content, err := t.Files.ReadFile(ctx, s.RepoID, path)
	if err != nil {
		return fmt.Sprintf("Error reading file %q: %v", path, err)
	}
	return content
}

// dispatchTool picks a tool name by substring-matching the lowercased step
// text, the same heuristic the original executor used instead of a
// structured tool-call format.
func dispatchTool(step string) string {
	lower := strings.ToLower(step)
	switch {
	case strings.Contains(lower, ToolKnowledgeGraphSearch):
		return ToolKnowledgeGraphSearch
	case strings.Contains(lower, ToolSemanticCodeSearch):
		return ToolSemanticCodeSearch
	case strings.Contains(lower, ToolFileReader):
		return ToolFileReader
	default:
		return toolNoOp
	}
}
