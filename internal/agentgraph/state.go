// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package agentgraph implements the query agent: a Planner, a gathering-loop
// Executor, a relevance Grader, a Synthesizer, and a pass-through Critic,
// composed as a pkg/fn pipeline over a single, append-only State.
package agentgraph

import "github.com/kraklabs/cie/pkg/llm"

// Step records one tool invocation made by the Executor.
type Step struct {
	Tool   string `json:"tool"`
	Result string `json:"result"`
}

// State is the whiteboard threaded through every stage of the agent. Each
// stage reads what earlier stages produced and appends its own output; no
// stage mutates a field another stage owns.
type State struct {
	// Inputs, set once before the pipeline runs.
	OriginalQuery string
	RepoID        string
	SessionID     string
	ChatHistory   []llm.Message
	APIKey        string
	ModelID       string

	// Planner output.
	DecomposedQuery string
	Plan            []string

	// Executor output, one entry per completed plan step.
	IntermediateSteps []Step

	// Grader output.
	ContextIsRelevant bool

	// Synthesizer/Critic output.
	FinalAnswer string
}

// nextStepIndex returns the index of the plan step the Executor should run
// next, i.e. how many steps have already completed.
func (s State) nextStepIndex() int {
	return len(s.IntermediateSteps)
}

// planComplete reports whether every plan step has a recorded result.
func (s State) planComplete() bool {
	return s.nextStepIndex() >= len(s.Plan)
}
