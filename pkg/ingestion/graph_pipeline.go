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

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/cie/pkg/graphstore"
	"github.com/kraklabs/cie/pkg/vectorstore"
)

// GraphPipeline is the graph/vector-store counterpart to LocalPipeline: it
// clones or reads a repository, parses it, and writes the result into a
// shared Neo4j-backed graph store and Qdrant-backed vector store instead of
// the embedded CozoDB backend LocalPipeline targets. It is the Go rendition
// of the original backend's process_data_source_for_ai Celery task.
type GraphPipeline struct {
	config       Config
	logger       *slog.Logger
	repoLoader   *RepoLoader
	parser       CodeParser
	embeddingGen *EmbeddingGenerator
	graph        graphstore.Store
	vectors      vectorstore.Store
}

// NewGraphPipeline wires a GraphPipeline from an already-connected graph
// store, vector store, and embedding provider.
func NewGraphPipeline(config Config, graph graphstore.Store, vectors vectorstore.Store, embeddingProvider EmbeddingProvider, logger *slog.Logger) *GraphPipeline {
	if logger == nil {
		logger = slog.Default()
	}

	parser := NewTreeSitterParser(logger)
	if config.IngestionConfig.MaxCodeTextBytes > 0 {
		parser.SetMaxCodeTextSize(config.IngestionConfig.MaxCodeTextBytes)
	}

	workers := config.IngestionConfig.Concurrency.EmbedWorkers
	embeddingGen := NewEmbeddingGenerator(embeddingProvider, workers, logger)

	return &GraphPipeline{
		config:       config,
		logger:       logger,
		repoLoader:   NewRepoLoader(logger),
		parser:       parser,
		embeddingGen: embeddingGen,
		graph:        graph,
		vectors:      vectors,
	}
}

// Close releases the repo loader's temporary clone directories.
func (p *GraphPipeline) Close() error {
	if p.repoLoader == nil {
		return nil
	}
	return p.repoLoader.Close()
}

// GraphIngestionResult summarizes one Run.
type GraphIngestionResult struct {
	RepoID             string
	FilesProcessed     int
	FunctionsExtracted int
	TypesExtracted     int
	CallsLinked        int
	ChunksEmbedded     int
	ParseErrors        int
	Duration           time.Duration
}

// chunk is one Phase E semantic-search unit: a function or method rendered
// as the same text block the original Celery task embedded, alongside the
// metadata recorded next to it in the vector store.
type chunk struct {
	id       string
	text     string
	metadata map[string]any
}

// Run executes Phase A-E of repository ingestion: wipe any prior data for
// repoID, load the repository, parse every file, populate the graph in two
// passes (nodes, then relationships), and chunk/embed/upsert every
// function and method into the vector store. Phase F (marking the
// data-source row indexed/failed) is the caller's responsibility, since it
// owns the data-source record this pipeline has no handle on.
func (p *GraphPipeline) Run(ctx context.Context, repoID string, source RepoSource) (*GraphIngestionResult, error) {
	start := time.Now()
	p.logger.Info("graph.ingestion.start", "repo_id", repoID)

	if err := WipeRepoData(ctx, p.graph, p.vectors, repoID); err != nil {
		return nil, fmt.Errorf("wipe existing data: %w", err)
	}

	loadResult, err := p.repoLoader.LoadRepository(source, p.config.IngestionConfig.ExcludeGlobs, p.config.IngestionConfig.MaxFileSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}
	sort.Slice(loadResult.Files, func(i, j int) bool { return loadResult.Files[i].Path < loadResult.Files[j].Path })

	parseErrors := 0
	results := make([]*ParseResult, 0, len(loadResult.Files))
	for _, f := range loadResult.Files {
		pr, perr := p.parser.ParseFile(f)
		if perr != nil {
			parseErrors++
			p.logger.Warn("graph.ingestion.parse.error", "repo_id", repoID, "path", f.Path, "err", perr)
			continue
		}
		results = append(results, pr)
	}
	p.logger.Info("graph.ingestion.parsed", "repo_id", repoID, "files", len(results), "parse_errors", parseErrors)

	if err := p.populateDirectories(ctx, repoID, loadResult.Files); err != nil {
		return nil, fmt.Errorf("populate directories: %w", err)
	}

	funcsByID, functionCount, typeCount, err := p.populateNodes(ctx, repoID, results)
	if err != nil {
		return nil, fmt.Errorf("populate nodes: %w", err)
	}

	callsLinked, err := p.populateRelationships(ctx, repoID, results, funcsByID)
	if err != nil {
		return nil, fmt.Errorf("populate relationships: %w", err)
	}

	chunksEmbedded, err := p.embedAndUpsert(ctx, repoID, results)
	if err != nil {
		return nil, fmt.Errorf("embed and upsert: %w", err)
	}

	result := &GraphIngestionResult{
		RepoID:             repoID,
		FilesProcessed:     len(results),
		FunctionsExtracted: functionCount,
		TypesExtracted:     typeCount,
		CallsLinked:        callsLinked,
		ChunksEmbedded:     chunksEmbedded,
		ParseErrors:        parseErrors,
		Duration:           time.Since(start),
	}
	p.logger.Info("graph.ingestion.complete",
		"repo_id", repoID,
		"files", result.FilesProcessed,
		"functions", result.FunctionsExtracted,
		"types", result.TypesExtracted,
		"calls", result.CallsLinked,
		"chunks", result.ChunksEmbedded,
		"parse_errors", result.ParseErrors,
		"duration", result.Duration,
	)
	return result, nil
}

// populateDirectories walks every directory implied by the loaded files'
// paths and writes Directory/File nodes plus CONTAINS edges, mirroring the
// original os.walk(topdown=True) pass that built the directory graph before
// any code-level entities existed.
func (p *GraphPipeline) populateDirectories(ctx context.Context, repoID string, files []FileInfo) error {
	dirs := map[string]bool{".": true}
	for _, f := range files {
		dir := toSlashDir(f.Path)
		for dir != "." && !dirs[dir] {
			dirs[dir] = true
			dir = toSlashDir(dir)
		}
	}

	sorted := make([]string, 0, len(dirs))
	for d := range dirs {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	for _, d := range sorted {
		if err := p.graph.UpsertDirectory(ctx, repoID, d); err != nil {
			return fmt.Errorf("upsert directory %q: %w", d, err)
		}
		if d == "." {
			continue
		}
		parent := toSlashDir(d)
		if err := p.graph.LinkContains(ctx, repoID, parent, d, graphstore.ChildKindDirectory); err != nil {
			return fmt.Errorf("link directory %q under %q: %w", d, parent, err)
		}
	}

	for _, f := range files {
		if err := p.graph.UpsertFile(ctx, repoID, f.Path); err != nil {
			return fmt.Errorf("upsert file %q: %w", f.Path, err)
		}
		dir := toSlashDir(f.Path)
		if err := p.graph.LinkContains(ctx, repoID, dir, f.Path, graphstore.ChildKindFile); err != nil {
			return fmt.Errorf("link file %q under %q: %w", f.Path, dir, err)
		}
	}
	return nil
}

// toSlashDir returns path's parent directory, forward-slashed, with the
// repo root rendered as "." rather than "".
func toSlashDir(path string) string {
	dir := filepath.ToSlash(filepath.Dir(path))
	if dir == "" {
		return "."
	}
	return dir
}

// populateNodes is Pass 1 of Phase D: create every Class and Function node.
// UpsertClass already links base classes internally, so base names are
// handed to it directly rather than followed by a separate AddInherits
// call. The returned map lets Pass 2 turn a CallsEdge.CallerID back into the
// (name, file) pair AddCall needs.
func (p *GraphPipeline) populateNodes(ctx context.Context, repoID string, results []*ParseResult) (map[string]FunctionEntity, int, int, error) {
	funcsByID := make(map[string]FunctionEntity)
	functionCount, typeCount := 0, 0

	for _, pr := range results {
		for _, t := range pr.Types {
			if err := p.graph.UpsertClass(ctx, repoID, t.FilePath, t.Name, t.Docstring, t.BaseNames); err != nil {
				return nil, 0, 0, fmt.Errorf("upsert class %s: %w", t.Name, err)
			}
			typeCount++
		}
		for _, fn := range pr.Functions {
			if err := p.graph.UpsertFunction(ctx, repoID, fn.FilePath, fn.Name, fn.Docstring, fn.ClassName); err != nil {
				return nil, 0, 0, fmt.Errorf("upsert function %s: %w", fn.Name, err)
			}
			funcsByID[fn.ID] = fn
			functionCount++
		}
	}
	return funcsByID, functionCount, typeCount, nil
}

// populateRelationships is Pass 2 of Phase D: imports and calls.
// CalleeID is plain-name for languages like Python (see parser_python.go)
// but a generated function ID for Go, where same-package calls are
// pre-resolved; resolving against funcsByID first and falling back to the
// raw value as a name handles both without needing the Go-specific
// CallResolver or the ID-based ValidateEntities, neither of which assumes a
// plain-name callee. AddCall's own Cypher MATCH silently no-ops when a
// callee name doesn't resolve to any Function node in the repo, so an
// unresolved call is simply dropped rather than erroring the whole pass.
func (p *GraphPipeline) populateRelationships(ctx context.Context, repoID string, results []*ParseResult, funcsByID map[string]FunctionEntity) (int, error) {
	linked := 0
	for _, pr := range results {
		for _, imp := range pr.Imports {
			if err := p.graph.AddImport(ctx, repoID, imp.FilePath, imp.ImportPath); err != nil {
				return linked, fmt.Errorf("add import %s: %w", imp.ImportPath, err)
			}
		}
		for _, call := range pr.Calls {
			caller, ok := funcsByID[call.CallerID]
			if !ok {
				continue
			}
			calleeName := call.CalleeID
			if callee, ok := funcsByID[call.CalleeID]; ok {
				calleeName = callee.Name
			}
			if err := p.graph.AddCall(ctx, repoID, caller.Name, caller.FilePath, calleeName); err != nil {
				return linked, fmt.Errorf("add call %s -> %s: %w", caller.Name, calleeName, err)
			}
			linked++
		}
	}
	return linked, nil
}

// buildChunks renders every standalone function and class method into the
// same "Function: .../Method: ..." text block the original task built, for
// Phase E embedding. The record ID is "<file>:<name>" (or
// "<file>:<class>.<method>" for methods), matching the stable-ID
// convention vectorstore.QdrantStore.PointID relies on so re-ingesting the
// same function overwrites its vector rather than duplicating it.
func (p *GraphPipeline) buildChunks(results []*ParseResult) []chunk {
	var chunks []chunk
	for _, pr := range results {
		for _, fn := range pr.Functions {
			args := formatArguments(fn.Signature)
			if fn.ClassName == "" {
				chunks = append(chunks, chunk{
					id:   fn.FilePath + ":" + fn.Name,
					text: fmt.Sprintf("Function: %s\nFile: %s\nArguments: %s\nDocumentation:\n%s", fn.Name, fn.FilePath, args, fn.Docstring),
					metadata: map[string]any{
						"file_path":     fn.FilePath,
						"function_name": fn.Name,
						"type":          "function",
					},
				})
				continue
			}
			chunks = append(chunks, chunk{
				id:   fn.FilePath + ":" + fn.ClassName + "." + fn.Name,
				text: fmt.Sprintf("Method: %s.%s\nFile: %s\nArguments: %s\nDocumentation:\n%s", fn.ClassName, fn.Name, fn.FilePath, args, fn.Docstring),
				metadata: map[string]any{
					"file_path":     fn.FilePath,
					"function_name": fn.Name,
					"type":          "method",
					"class_name":    fn.ClassName,
				},
			})
		}
	}
	return chunks
}

// formatArguments extracts the comma-separated argument list from a
// "def name(args) -> ret"-shaped signature, rendering the same
// ", ".join(args) or "None" text the original built from the Python AST's
// argument list.
func formatArguments(signature string) string {
	open := strings.Index(signature, "(")
	if open < 0 {
		return "None"
	}
	depth := 0
	closeIdx := -1
	for i := open; i < len(signature); i++ {
		switch signature[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closeIdx = i
			}
		}
		if closeIdx >= 0 {
			break
		}
	}
	if closeIdx < 0 {
		return "None"
	}
	inner := strings.TrimSpace(signature[open+1 : closeIdx])
	if inner == "" {
		return "None"
	}
	parts := strings.Split(inner, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

// embedAndUpsert is Phase E. Embedding and the vector upsert are skipped
// entirely when there are no chunks, matching the original's
// `if text_chunks_for_embedding:` guard.
func (p *GraphPipeline) embedAndUpsert(ctx context.Context, repoID string, results []*ParseResult) (int, error) {
	chunks := p.buildChunks(results)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
	}
	embeddings, err := p.embeddingGen.EmbedChunks(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	records := make([]vectorstore.Record, 0, len(chunks))
	for i, c := range chunks {
		if len(embeddings[i]) == 0 {
			continue
		}
		records = append(records, vectorstore.Record{ID: c.id, Vector: embeddings[i], Metadata: c.metadata})
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := p.vectors.Upsert(ctx, repoID, records); err != nil {
		return 0, fmt.Errorf("upsert vectors: %w", err)
	}
	return len(records), nil
}

// SourceFromString classifies a raw source string, as submitted through the
// data-source creation API, into a RepoSource. It recognizes the same URL
// prefixes cloneGitRepo does; anything else is treated as a local
// filesystem path.
func SourceFromString(value string) RepoSource {
	switch {
	case strings.HasPrefix(value, "http://"),
		strings.HasPrefix(value, "https://"),
		strings.HasPrefix(value, "git@"),
		strings.HasPrefix(value, "ssh://"),
		strings.HasPrefix(value, "file://"):
		return RepoSource{Type: "git_url", Value: value}
	default:
		return RepoSource{Type: "local_path", Value: value}
	}
}

// WipeRepoData deletes every graph node and vector record scoped to
// repoID. It backs both Phase A's idempotent re-ingestion wipe and the
// data-source delete endpoint's cascade-delete invariant, so a repository
// removed via the API leaves no graph or vector residue behind.
func WipeRepoData(ctx context.Context, graph graphstore.Store, vectors vectorstore.Store, repoID string) error {
	if err := graph.CascadeDelete(ctx, repoID); err != nil {
		return fmt.Errorf("cascade delete graph data: %w", err)
	}
	if err := vectors.DeleteNamespace(ctx, repoID); err != nil {
		return fmt.Errorf("delete vector namespace: %w", err)
	}
	return nil
}
