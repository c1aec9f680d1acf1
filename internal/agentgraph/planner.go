// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package agentgraph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kraklabs/cie/pkg/llm"
)

const plannerSystemPrompt = `You are an expert software engineer and planner. Given a user's question about a codebase, do two things:

1. Rewrite the question as a single, standalone query optimized for retrieval (resolve pronouns, add implied context).
2. Produce a short, ordered plan of steps to gather the context needed to answer it. Each step must name exactly one of these tools:
   - knowledge_graph_search: structural questions (who calls what, class hierarchies, what a file defines)
   - semantic_code_search: conceptual or "how does X work" questions
   - file_reader_tool: reading the full contents of a specific file

Respond with a JSON object of the form:
{"decomposed_query": "...", "plan": ["step one naming a tool", "step two naming a tool"]}`

var plannerSchema = json.RawMessage(`{
	"type": "object",
	"required": ["decomposed_query", "plan"],
	"properties": {
		"decomposed_query": {"type": "string"},
		"plan": {"type": "array", "items": {"type": "string"}}
	}
}`)

type plannerOutput struct {
	DecomposedQuery string   `json:"decomposed_query"`
	Plan            []string `json:"plan"`
}

// Planner decomposes the user's original query into a standalone question
// and a step-by-step retrieval plan, the first stage of the agent pipeline.
type Planner struct {
	Provider llm.Provider
}

// Plan calls the LLM to populate State.DecomposedQuery and State.Plan. A
// failed call or an undecodable reply degrades to an empty plan (with
// DecomposedQuery set to "Failed to parse plan.") and the error is
// returned alongside that state, mirroring the original's own
// parse-failure fallback.
func (p *Planner) Plan(ctx context.Context, s State) (State, error) {
	req := llm.ChatRequest{
		Model: s.ModelID,
		APIKey: s.APIKey,
		Messages: []llm.Message{
			{Role: "system", Content: plannerSystemPrompt},
			{Role: "user", Content: s.OriginalQuery},
		},
	}

	raw, err := p.Provider.ChatStructured(ctx, req, plannerSchema)
	if err != nil {
		s.DecomposedQuery = "Failed to parse plan."
		s.Plan = nil
		return s, fmt.Errorf("agentgraph: planner: %w", err)
	}

	var out plannerOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		s.DecomposedQuery = "Failed to parse plan."
		s.Plan = nil
		return s, fmt.Errorf("agentgraph: planner: decode plan: %w", err)
	}

	s.DecomposedQuery = out.DecomposedQuery
	s.Plan = out.Plan
	return s, nil
}
