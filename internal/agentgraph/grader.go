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

// No retrieval_grader source file exists anywhere in the original project;
// graph.py imports it but the module itself was never part of the
// retrieved sources. This Grader is therefore a reconstruction: it asks
// the LLM a direct yes/no relevance question over the gathered context,
// using the same ChatStructured contract the Planner already relies on,
// rather than inventing a heuristic with no grounding at all.
const graderSystemPrompt = `You are grading whether retrieved context is sufficient to answer a question.

Given the question and the context gathered so far, respond with a JSON object:
{"context_is_relevant": true or false}

Answer false only if the context is empty, clearly off-topic, or contains nothing but tool error messages.`

var graderSchema = json.RawMessage(`{
	"type": "object",
	"required": ["context_is_relevant"],
	"properties": {
		"context_is_relevant": {"type": "boolean"}
	}
}`)

type graderOutput struct {
	ContextIsRelevant bool `json:"context_is_relevant"`
}

// Grader sets State.ContextIsRelevant from the gathered intermediate steps.
type Grader struct {
	Provider llm.Provider
}

// Grade asks the LLM whether the intermediate steps are sufficient context
// for the decomposed query. An empty IntermediateSteps list short-circuits
// to false without a call, since there is nothing to grade.
func (g *Grader) Grade(ctx context.Context, s State) (State, error) {
	if len(s.IntermediateSteps) == 0 {
		s.ContextIsRelevant = false
		return s, nil
	}

	req := llm.ChatRequest{
		Model:  s.ModelID,
		APIKey: s.APIKey,
		Messages: []llm.Message{
			{Role: "system", Content: graderSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Question: %s\n\nContext:\n%s", s.DecomposedQuery, buildContext(s))},
		},
	}

	raw, err := g.Provider.ChatStructured(ctx, req, graderSchema)
	if err != nil {
		// A failed grade call degrades to "relevant", letting the
		// Synthesizer attempt an answer from whatever context exists
		// rather than discarding it outright.
		s.ContextIsRelevant = true
		return s, fmt.Errorf("agentgraph: grader: %w", err)
	}

	var out graderOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		s.ContextIsRelevant = true
		return s, fmt.Errorf("agentgraph: grader: decode verdict: %w", err)
	}

	s.ContextIsRelevant = out.ContextIsRelevant
	return s, nil
}
