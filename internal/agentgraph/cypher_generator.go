// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package agentgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/kraklabs/cie/pkg/graphstore"
	"github.com/kraklabs/cie/pkg/llm"
)

// schemaUnhelpful is the sentinel the LLM returns when the graph schema
// cannot answer the query at all, signaling the caller to skip the
// knowledge-graph tool entirely for this step.
const schemaUnhelpful = "SCHEMA_UNHELPFUL"

const cypherGenerationTemplate = `You are a Neo4j Cypher expert. Given the graph schema below and a question, write a single read-only Cypher query that answers it.

Rules:
- Every MATCH must filter nodes by their repo_id property equal to the given repository ID.
- Use CONTAINS (not exact equality) when matching on names or paths supplied in the question.
- Return only the Cypher query, with no markdown fences and no explanation.
- Do not repeat any query already listed under "Previously tried queries" below.
- If the schema cannot possibly answer the question, return exactly: %s

Schema:
%s

Repository ID: %s

Previously tried queries:
%s

Question: %s`

// generateCypherQuery asks the LLM for a Cypher query scoped to repoID,
// stripping markdown fences from the reply and returning "" when the model
// declines (empty reply or the SCHEMA_UNHELPFUL sentinel). triedQueries
// lists the queries already attempted in this Information Gathering Loop so
// the prompt can forbid repeating them.
func generateCypherQuery(ctx context.Context, provider llm.Provider, store graphstore.Store, s State, question string, triedQueries []string) (string, error) {
	tried := "(none)"
	if len(triedQueries) > 0 {
		tried = strings.Join(triedQueries, "\n")
	}
	prompt := fmt.Sprintf(cypherGenerationTemplate, schemaUnhelpful, store.SchemaDescription(), s.RepoID, tried, question)

	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Model:  s.ModelID,
		APIKey: s.APIKey,
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("agentgraph: generate cypher: %w", err)
	}

	cleaned := stripCodeFence(resp.Message.Content)
	if cleaned == "" || strings.Contains(cleaned, schemaUnhelpful) {
		return "", nil
	}
	return cleaned, nil
}

// stripCodeFence removes a leading ```cypher or ``` fence and a trailing
// ``` fence from a model reply, matching the exact prefix checks the
// original generator used.
func stripCodeFence(s string) string {
	cleaned := strings.TrimSpace(s)
	lower := strings.ToLower(cleaned)
	switch {
	case strings.HasPrefix(lower, "```cypher"):
		cleaned = cleaned[len("```cypher"):]
	case strings.HasPrefix(lower, "```"):
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}
