// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package agentgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/kraklabs/cie/pkg/llm"
)

// maxGraphSearchAttempts bounds the Information Gathering Loop: the
// tool-executor asks the LLM for at most this many successive graph
// queries before giving up on a single knowledge_graph_search step.
const maxGraphSearchAttempts = 3

// filePathToken matches an explicit file: "<path>" (or file: <path>)
// annotation in a plan step, the token planner prompts are required to
// emit when they want the file-reader tool to read a specific path.
var filePathToken = regexp.MustCompile(`(?i)file:\s*"?([^"\s]+)"?`)

// Executor runs one plan step per call, dispatching to the tool named in
// the step's text and appending the result to State.IntermediateSteps. The
// caller loops until State.planComplete(), mirroring the original's
// check_if_plan_is_complete conditional edge.
type Executor struct {
	Provider llm.Provider
	Tools    *Tools
}

// ExecuteNextStep runs the plan step at s.nextStepIndex(). Calling it once
// the plan is already complete is a no-op that returns s unchanged.
func (e *Executor) ExecuteNextStep(ctx context.Context, s State) (State, error) {
	idx := s.nextStepIndex()
	if idx >= len(s.Plan) {
		return s, nil
	}
	step := s.Plan[idx]

	tool := dispatchTool(step)
	var result string

	switch tool {
	case ToolKnowledgeGraphSearch:
		result = e.runGatheringLoop(ctx, s)
	case ToolSemanticCodeSearch:
		result = e.Tools.semanticCodeSearch(ctx, s, s.DecomposedQuery)
	case ToolFileReader:
		result = e.Tools.fileReaderTool(ctx, s, extractFilePath(step))
	default:
		result = "No matching tool was found for this step: " + step
	}

	s.IntermediateSteps = append(s.IntermediateSteps, Step{Tool: tool, Result: result})
	return s, nil
}

// runGatheringLoop drives up to maxGraphSearchAttempts rounds of
// generate-then-execute against the knowledge graph, accumulating records
// across rounds and serializing them once as a single JSON string. It stops
// early when the LLM declines (empty reply) or repeats an already-tried
// query, or as soon as a round returns zero records.
func (e *Executor) runGatheringLoop(ctx context.Context, s State) string {
	var tried []string
	var records []map[string]any

	for attempt := 0; attempt < maxGraphSearchAttempts; attempt++ {
		cypher, err := generateCypherQuery(ctx, e.Provider, e.Tools.Graph, s, s.DecomposedQuery, tried)
		if err != nil {
			return "Error generating Cypher query: " + err.Error()
		}
		if cypher == "" || containsQuery(tried, cypher) {
			break
		}
		tried = append(tried, cypher)

		rows, err := e.Tools.Graph.RunQuery(ctx, cypher, map[string]any{"repo_id": s.RepoID})
		if err != nil {
			continue
		}
		if len(rows) == 0 {
			break
		}
		records = append(records, rows...)
	}

	if len(records) == 0 {
		return "The query returned no results."
	}
	encoded, err := json.Marshal(records)
	if err != nil {
		return fmt.Sprintf("Error encoding knowledge graph results: %v", err)
	}
	return string(encoded)
}

func containsQuery(tried []string, q string) bool {
	for _, t := range tried {
		if t == q {
			return true
		}
	}
	return false
}

// extractFilePath pulls the path out of an explicit file: "<path>" token in
// a plan step. Returns "" when the step names no such token, in which case
// fileReaderTool reports the step as unreadable rather than guessing a path.
func extractFilePath(step string) string {
	m := filePathToken.FindStringSubmatch(step)
	if m == nil {
		return ""
	}
	return m[1]
}
