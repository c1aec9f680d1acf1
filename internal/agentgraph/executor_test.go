// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package agentgraph

import (
	"context"
	"fmt"
	"testing"

	"github.com/kraklabs/cie/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteNextStepIsNoOpWhenPlanComplete(t *testing.T) {
	e := &Executor{Provider: &llm.MockProvider{}, Tools: &Tools{}}
	in := State{Plan: []string{"one step"}, IntermediateSteps: []Step{{Tool: ToolSemanticCodeSearch, Result: "done"}}}

	out, err := e.ExecuteNextStep(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestExecuteNextStepRunsSemanticSearch(t *testing.T) {
	e := &Executor{
		Provider: &llm.MockProvider{},
		Tools: &Tools{
			Vectors:    &stubVectorStore{},
			Embeddings: &stubEmbedder{},
		},
	}
	out, err := e.ExecuteNextStep(context.Background(), State{
		DecomposedQuery: "retry logic",
		Plan:            []string{"Run semantic_code_search for retry logic"},
	})
	require.NoError(t, err)
	require.Len(t, out.IntermediateSteps, 1)
	assert.Equal(t, ToolSemanticCodeSearch, out.IntermediateSteps[0].Tool)
}

func TestExecuteNextStepRunsKnowledgeGraphSearch(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{Message: llm.Message{Content: "MATCH (f:File {repo_id: $repo_id}) RETURN f"}}, nil
		},
	}
	e := &Executor{
		Provider: provider,
		Tools:    &Tools{Graph: &stubGraphStore{queryResult: []map[string]any{{"path": "main.go"}}}},
	}
	out, err := e.ExecuteNextStep(context.Background(), State{
		DecomposedQuery: "list files",
		Plan:            []string{"Use knowledge_graph_search to list files"},
	})
	require.NoError(t, err)
	require.Len(t, out.IntermediateSteps, 1)
	assert.Equal(t, ToolKnowledgeGraphSearch, out.IntermediateSteps[0].Tool)
	assert.Contains(t, out.IntermediateSteps[0].Result, "main.go")
}

func TestExecuteNextStepRunsFileReader(t *testing.T) {
	e := &Executor{
		Provider: &llm.MockProvider{},
		Tools:    &Tools{Files: &stubFileReader{content: "file contents"}},
	}
	out, err := e.ExecuteNextStep(context.Background(), State{
		Plan: []string{`Use file_reader_tool to read the entrypoint, file: "main.py"`},
	})
	require.NoError(t, err)
	require.Len(t, out.IntermediateSteps, 1)
	assert.Equal(t, ToolFileReader, out.IntermediateSteps[0].Tool)
	assert.Equal(t, "file contents", out.IntermediateSteps[0].Result)
}

func TestExecuteNextStepFileReaderWithoutFileTokenReportsMissingPath(t *testing.T) {
	e := &Executor{
		Provider: &llm.MockProvider{},
		Tools:    &Tools{Files: &stubFileReader{content: "file contents"}},
	}
	out, err := e.ExecuteNextStep(context.Background(), State{
		Plan: []string{"Use file_reader_tool to read the entrypoint"},
	})
	require.NoError(t, err)
	require.Len(t, out.IntermediateSteps, 1)
	assert.Contains(t, out.IntermediateSteps[0].Result, "No file path was named")
}

func TestExtractFilePathHandlesUnquotedToken(t *testing.T) {
	assert.Equal(t, "src/main.py", extractFilePath(`Use file_reader_tool, file: src/main.py`))
}

func TestExecuteNextStepGatheringLoopExitsOnEmptySecondResult(t *testing.T) {
	calls := 0
	provider := &llm.MockProvider{
		ChatFunc: func(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
			calls++
			return &llm.ChatResponse{Message: llm.Message{
				Content: fmt.Sprintf("MATCH (f:File {repo_id: $repo_id}) WHERE f.attempt = %d RETURN f", calls),
			}}, nil
		},
	}
	graph := &stubGraphStore{
		queryResultsSeq: [][]map[string]any{
			{{"path": "main.go"}},
			{},
		},
	}
	e := &Executor{Provider: provider, Tools: &Tools{Graph: graph}}

	out, err := e.ExecuteNextStep(context.Background(), State{
		DecomposedQuery: "list files",
		Plan:            []string{"Use knowledge_graph_search to list files"},
	})
	require.NoError(t, err)
	require.Len(t, out.IntermediateSteps, 1)
	assert.Equal(t, ToolKnowledgeGraphSearch, out.IntermediateSteps[0].Tool)
	assert.Equal(t, 2, calls, "expected exactly two attempted queries")
	assert.Len(t, graph.calledCyphers, 2)
	assert.Contains(t, out.IntermediateSteps[0].Result, "main.go")
}

func TestExecuteNextStepGatheringLoopStopsAfterThreeAttempts(t *testing.T) {
	calls := 0
	provider := &llm.MockProvider{
		ChatFunc: func(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
			calls++
			return &llm.ChatResponse{Message: llm.Message{
				Content: fmt.Sprintf("MATCH (f:File {repo_id: $repo_id}) WHERE f.attempt = %d RETURN f", calls),
			}}, nil
		},
	}
	graph := &stubGraphStore{
		queryResultsSeq: [][]map[string]any{
			{{"path": "a.go"}},
			{{"path": "b.go"}},
			{{"path": "c.go"}},
		},
	}
	e := &Executor{Provider: provider, Tools: &Tools{Graph: graph}}

	out, err := e.ExecuteNextStep(context.Background(), State{
		DecomposedQuery: "list files",
		Plan:            []string{"Use knowledge_graph_search to list files"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "the loop must not exceed N=3 attempts")
	assert.Contains(t, out.IntermediateSteps[0].Result, "a.go")
	assert.Contains(t, out.IntermediateSteps[0].Result, "c.go")
}

func TestExecuteNextStepFallsBackToNoOpTool(t *testing.T) {
	e := &Executor{Provider: &llm.MockProvider{}, Tools: &Tools{}}
	out, err := e.ExecuteNextStep(context.Background(), State{
		Plan: []string{"Think carefully"},
	})
	require.NoError(t, err)
	require.Len(t, out.IntermediateSteps, 1)
	assert.Equal(t, toolNoOp, out.IntermediateSteps[0].Tool)
}
