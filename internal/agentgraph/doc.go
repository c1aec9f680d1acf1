// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package agentgraph implements the query-answering pipeline: Planner,
// Executor, Grader, Synthesizer, and Critic.
//
// # Flow
//
// Planner decomposes the caller's question into a standalone query plus an
// ordered plan naming knowledge_graph_search, semantic_code_search, and/or
// file_reader_tool steps. Executor runs one step per call, dispatched by
// matching the tool name as a substring of the step text; Agent.Run loops
// it until every plan step has a recorded result. Grader then judges
// whether the gathered context is relevant, Synthesizer turns it into a
// Markdown answer (or a canned apology if no context was gathered at all),
// and Critic passes the answer through unchanged.
//
// # Usage
//
//	tools := &agentgraph.Tools{Graph: graph, Vectors: vectors, Embeddings: embedder, Files: reader}
//	agent := agentgraph.New(provider, tools)
//	result, err := agent.Run(ctx, agentgraph.State{
//	    OriginalQuery: "how does the retry logic work?",
//	    RepoID:        "repo-123",
//	    ModelID:       "gpt-4o-mini",
//	})
//	fmt.Println(result.FinalAnswer)
package agentgraph
