// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package agentgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/kraklabs/cie/pkg/llm"
)

const noContextAnswer = "I apologize, but I was unable to retrieve any context to answer your question."

const insufficientContextAnswer = "I don't have sufficient information in the retrieved context to answer your question."

const synthesizerSystemPrompt = `You are a senior software engineer answering questions about a codebase. Answer strictly from the provided context; do not invent facts about the code. Format the answer as Markdown. If the context is insufficient to fully answer, say so explicitly rather than guessing.`

// Synthesizer turns the gathered intermediate steps into a final answer.
type Synthesizer struct {
	Provider llm.Provider
}

// Synthesize builds a context string from every completed step and asks
// the LLM for a final answer grounded in it. An empty context short-
// circuits to a canned apology without calling the LLM at all, matching
// the original's behavior exactly. A non-empty context that the Grader
// marked as not relevant short-circuits the same way, to a canned
// insufficient-information answer.
func (sy *Synthesizer) Synthesize(ctx context.Context, s State) (State, error) {
	context := buildContext(s)
	if strings.TrimSpace(context) == "" {
		s.FinalAnswer = noContextAnswer
		return s, nil
	}
	if !s.ContextIsRelevant {
		s.FinalAnswer = insufficientContextAnswer
		return s, nil
	}

	resp, err := sy.Provider.Chat(ctx, llm.ChatRequest{
		Model:  s.ModelID,
		APIKey: s.APIKey,
		Messages: []llm.Message{
			{Role: "system", Content: synthesizerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Question: %s\n\nContext:\n%s", s.DecomposedQuery, context)},
		},
	})
	if err != nil {
		return s, fmt.Errorf("agentgraph: synthesizer: %w", err)
	}

	s.FinalAnswer = resp.Message.Content
	return s, nil
}

// buildContext renders every completed step as a "Tool: name\nResult:\n..."
// block, joined by blank lines.
func buildContext(s State) string {
	blocks := make([]string, len(s.IntermediateSteps))
	for i, step := range s.IntermediateSteps {
		blocks[i] = fmt.Sprintf("Tool: %s\nResult:\n%s", step.Tool, step.Result)
	}
	return strings.Join(blocks, "\n\n")
}
