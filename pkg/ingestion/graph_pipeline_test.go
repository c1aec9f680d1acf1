// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package ingestion

import (
	"context"
	"testing"

	"github.com/kraklabs/cie/pkg/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	op   string
	args []any
}

// fakeGraphStore records every call it receives instead of touching Neo4j.
type fakeGraphStore struct {
	calls          []recordedCall
	cascadeDeleted []string
}

func (f *fakeGraphStore) UpsertDirectory(_ context.Context, repoID, path string) error {
	f.calls = append(f.calls, recordedCall{"UpsertDirectory", []any{repoID, path}})
	return nil
}

func (f *fakeGraphStore) LinkContains(_ context.Context, repoID, parentPath, childPath, childKind string) error {
	f.calls = append(f.calls, recordedCall{"LinkContains", []any{repoID, parentPath, childPath, childKind}})
	return nil
}

func (f *fakeGraphStore) UpsertFile(_ context.Context, repoID, path string) error {
	f.calls = append(f.calls, recordedCall{"UpsertFile", []any{repoID, path}})
	return nil
}

func (f *fakeGraphStore) UpsertClass(_ context.Context, repoID, filePath, name, docstring string, baseClassNames []string) error {
	f.calls = append(f.calls, recordedCall{"UpsertClass", []any{repoID, filePath, name, docstring, baseClassNames}})
	return nil
}

func (f *fakeGraphStore) UpsertFunction(_ context.Context, repoID, filePath, name, docstring, className string) error {
	f.calls = append(f.calls, recordedCall{"UpsertFunction", []any{repoID, filePath, name, docstring, className}})
	return nil
}

func (f *fakeGraphStore) AddCall(_ context.Context, repoID, callerName, callerFile, calleeName string) error {
	f.calls = append(f.calls, recordedCall{"AddCall", []any{repoID, callerName, callerFile, calleeName}})
	return nil
}

func (f *fakeGraphStore) AddImport(_ context.Context, repoID, filePath, moduleName string) error {
	f.calls = append(f.calls, recordedCall{"AddImport", []any{repoID, filePath, moduleName}})
	return nil
}

func (f *fakeGraphStore) AddInherits(_ context.Context, repoID, className, filePath string, baseNames []string) error {
	f.calls = append(f.calls, recordedCall{"AddInherits", []any{repoID, className, filePath, baseNames}})
	return nil
}

func (f *fakeGraphStore) RunQuery(_ context.Context, _ string, _ map[string]any) ([]map[string]any, error) {
	return nil, nil
}

func (f *fakeGraphStore) SchemaDescription() string { return "" }

func (f *fakeGraphStore) CascadeDelete(_ context.Context, repoID string) error {
	f.cascadeDeleted = append(f.cascadeDeleted, repoID)
	return nil
}

func (f *fakeGraphStore) Close(_ context.Context) error { return nil }

// fakeVectorStore records Upsert/DeleteNamespace calls instead of talking
// to Qdrant.
type fakeVectorStore struct {
	upserted         []vectorstore.Record
	deletedNamespace []string
}

func (f *fakeVectorStore) Upsert(_ context.Context, _ string, records []vectorstore.Record) error {
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *fakeVectorStore) Query(_ context.Context, _ string, _ []float32, _ int) ([]vectorstore.Match, error) {
	return nil, nil
}

func (f *fakeVectorStore) DeleteNamespace(_ context.Context, namespace string) error {
	f.deletedNamespace = append(f.deletedNamespace, namespace)
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

func TestFormatArgumentsExtractsCommaSeparatedList(t *testing.T) {
	assert.Equal(t, "a, b", formatArguments("def foo(a, b) -> None"))
}

func TestFormatArgumentsReturnsNoneWhenEmpty(t *testing.T) {
	assert.Equal(t, "None", formatArguments("def foo()"))
}

func TestFormatArgumentsReturnsNoneWithoutParens(t *testing.T) {
	assert.Equal(t, "None", formatArguments("not a signature"))
}

func TestSourceFromStringClassifiesGitURLs(t *testing.T) {
	assert.Equal(t, "git_url", SourceFromString("https://github.com/acme/widgets.git").Type)
	assert.Equal(t, "git_url", SourceFromString("git@github.com:acme/widgets.git").Type)
	assert.Equal(t, "local_path", SourceFromString("/srv/repos/widgets").Type)
}

func TestBuildChunksRendersFunctionAndMethodChunks(t *testing.T) {
	p := &GraphPipeline{}
	results := []*ParseResult{
		{
			Functions: []FunctionEntity{
				{Name: "connect", FilePath: "net.py", Signature: "def connect(host, port)", Docstring: "Open a socket."},
				{Name: "send", ClassName: "Client", FilePath: "net.py", Signature: "def send(self, data)", Docstring: "Write bytes."},
			},
		},
	}

	chunks := p.buildChunks(results)
	require.Len(t, chunks, 2)

	assert.Equal(t, "net.py:connect", chunks[0].id)
	assert.Contains(t, chunks[0].text, "Function: connect")
	assert.Contains(t, chunks[0].text, "Arguments: host, port")
	assert.Equal(t, "function", chunks[0].metadata["type"])

	assert.Equal(t, "net.py:Client.send", chunks[1].id)
	assert.Contains(t, chunks[1].text, "Method: Client.send")
	assert.Equal(t, "method", chunks[1].metadata["type"])
	assert.Equal(t, "Client", chunks[1].metadata["class_name"])
}

func TestBuildChunksSkipsEmptyResults(t *testing.T) {
	p := &GraphPipeline{}
	assert.Empty(t, p.buildChunks(nil))
}

func TestPopulateNodesThenRelationshipsLinksCallsByName(t *testing.T) {
	graph := &fakeGraphStore{}
	p := &GraphPipeline{graph: graph}

	results := []*ParseResult{
		{
			Functions: []FunctionEntity{
				{ID: "f1", Name: "main", FilePath: "main.py"},
			},
			Calls: []CallsEdge{
				{CallerID: "f1", CalleeID: "helper"}, // plain-name callee, as Python produces
			},
		},
	}

	funcsByID, functionCount, typeCount, err := p.populateNodes(context.Background(), "repo1", results)
	require.NoError(t, err)
	assert.Equal(t, 1, functionCount)
	assert.Equal(t, 0, typeCount)

	linked, err := p.populateRelationships(context.Background(), "repo1", results, funcsByID)
	require.NoError(t, err)
	assert.Equal(t, 1, linked)

	require.Len(t, graph.calls, 2) // UpsertFunction, then AddCall
	assert.Equal(t, "AddCall", graph.calls[1].op)
	assert.Equal(t, []any{"repo1", "main", "main.py", "helper"}, graph.calls[1].args)
}

func TestPopulateRelationshipsDropsCallsWithUnknownCaller(t *testing.T) {
	graph := &fakeGraphStore{}
	p := &GraphPipeline{graph: graph}

	results := []*ParseResult{
		{Calls: []CallsEdge{{CallerID: "missing", CalleeID: "helper"}}},
	}

	linked, err := p.populateRelationships(context.Background(), "repo1", results, map[string]FunctionEntity{})
	require.NoError(t, err)
	assert.Equal(t, 0, linked)
	assert.Empty(t, graph.calls)
}

func TestPopulateDirectoriesLinksNestedPaths(t *testing.T) {
	graph := &fakeGraphStore{}
	p := &GraphPipeline{graph: graph}

	files := []FileInfo{{Path: "pkg/util/helpers.go"}}
	require.NoError(t, p.populateDirectories(context.Background(), "repo1", files))

	var dirsUpserted []string
	for _, c := range graph.calls {
		if c.op == "UpsertDirectory" {
			dirsUpserted = append(dirsUpserted, c.args[1].(string))
		}
	}
	assert.ElementsMatch(t, []string{".", "pkg", "pkg/util"}, dirsUpserted)
}

func TestWipeRepoDataCallsBothStores(t *testing.T) {
	graph := &fakeGraphStore{}
	vectors := &fakeVectorStore{}

	require.NoError(t, WipeRepoData(context.Background(), graph, vectors, "repo1"))
	assert.Equal(t, []string{"repo1"}, graph.cascadeDeleted)
	assert.Equal(t, []string{"repo1"}, vectors.deletedNamespace)
}
