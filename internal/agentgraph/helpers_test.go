// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package agentgraph

import (
	"context"
	"fmt"

	"github.com/kraklabs/cie/pkg/graphstore"
	"github.com/kraklabs/cie/pkg/vectorstore"
)

type stubGraphStore struct {
	schema      string
	queryResult []map[string]any
	// queryResultsSeq, when non-nil, overrides queryResult: the Nth call to
	// RunQuery returns queryResultsSeq[N-1] (or queryErr, once exhausted).
	queryResultsSeq [][]map[string]any
	queryErr        error
	lastCypher      string
	lastParams      map[string]any
	calledCyphers   []string
}

var _ graphstore.Store = (*stubGraphStore)(nil)

func (s *stubGraphStore) UpsertDirectory(context.Context, string, string) error { return nil }
func (s *stubGraphStore) LinkContains(context.Context, string, string, string, string) error {
	return nil
}
func (s *stubGraphStore) UpsertFile(context.Context, string, string) error { return nil }
func (s *stubGraphStore) UpsertClass(context.Context, string, string, string, string, []string) error {
	return nil
}
func (s *stubGraphStore) UpsertFunction(context.Context, string, string, string, string, string) error {
	return nil
}
func (s *stubGraphStore) AddCall(context.Context, string, string, string, string) error { return nil }
func (s *stubGraphStore) AddImport(context.Context, string, string, string) error       { return nil }
func (s *stubGraphStore) AddInherits(context.Context, string, string, string, []string) error {
	return nil
}
func (s *stubGraphStore) RunQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	s.lastCypher = cypher
	s.lastParams = params
	s.calledCyphers = append(s.calledCyphers, cypher)
	if s.queryResultsSeq != nil {
		idx := len(s.calledCyphers) - 1
		if idx >= len(s.queryResultsSeq) {
			return nil, s.queryErr
		}
		return s.queryResultsSeq[idx], s.queryErr
	}
	return s.queryResult, s.queryErr
}
func (s *stubGraphStore) SchemaDescription() string             { return s.schema }
func (s *stubGraphStore) CascadeDelete(context.Context, string) error { return nil }
func (s *stubGraphStore) Close(context.Context) error                 { return nil }

type stubVectorStore struct {
	matches []vectorstore.Match
	err     error
}

var _ vectorstore.Store = (*stubVectorStore)(nil)

func (s *stubVectorStore) Upsert(context.Context, string, []vectorstore.Record) error { return nil }
func (s *stubVectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	return s.matches, s.err
}
func (s *stubVectorStore) DeleteNamespace(context.Context, string) error { return nil }
func (s *stubVectorStore) Close() error                                 { return nil }

type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.vec != nil {
		return e.vec, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubFileReader struct {
	content string
	err     error
}

func (f *stubFileReader) ReadFile(ctx context.Context, repoID, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.content != "" {
		return f.content, nil
	}
	return fmt.Sprintf("contents of %s in %s", path, repoID), nil
}
