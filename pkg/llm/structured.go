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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// chatStructuredViaPrompt is the fallback structured-output strategy shared
// by providers with no native JSON mode: it appends a schema-describing
// system message, asks for a single JSON object in reply, then recovers the
// object with a bracket-matching extractor before validating it against the
// schema's required properties.
func chatStructuredViaPrompt(ctx context.Context, chat func(context.Context, ChatRequest) (*ChatResponse, error), req ChatRequest, schema json.RawMessage) (json.RawMessage, error) {
	augmented := req
	augmented.Messages = append([]Message{}, req.Messages...)
	augmented.Messages = append(augmented.Messages, Message{
		Role:    "system",
		Content: schemaPrompt(schema),
	})

	resp, err := chat(ctx, augmented)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(resp.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("llm: structured output recovery failed: %w", err)
	}

	if err := validateAgainstSchema(raw, schema); err != nil {
		return nil, fmt.Errorf("llm: structured output failed schema validation: %w", err)
	}

	return raw, nil
}

func schemaPrompt(schema json.RawMessage) string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else (no prose, no markdown fences). ")
	b.WriteString("The object must conform to this JSON Schema:\n")
	b.Write(schema)
	return b.String()
}

// extractJSON recovers a JSON object from a model reply that may wrap it in
// prose or markdown code fences, by scanning for the first balanced
// '{' ... '}' span. This mirrors the bracket-matching recovery used when a
// provider's reply strays outside its requested JSON-only contract.
func extractJSON(content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)

	// Fast path: the whole reply is already valid JSON.
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	start := strings.IndexByte(trimmed, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object found in reply")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, brackets don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				candidate := trimmed[start : i+1]
				if json.Valid([]byte(candidate)) {
					return json.RawMessage(candidate), nil
				}
				return nil, fmt.Errorf("recovered span is not valid JSON")
			}
		}
	}

	return nil, fmt.Errorf("no balanced JSON object found in reply")
}

// validateAgainstSchema performs a structural check against the schema's
// top-level "required" property list. It does not implement full JSON
// Schema draft validation (type constraints, nested schemas, formats) — the
// Planner/Grader/Synthesizer call sites only rely on required-field
// presence, and no complete example repo in the corpus imports a JSON
// Schema validation library, so this stays a small hand-rolled check rather
// than reaching for one solely for this purpose.
func validateAgainstSchema(data json.RawMessage, schema json.RawMessage) error {
	var schemaDoc struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &schemaDoc); err != nil {
		// A schema that doesn't even parse can't be checked against; treat
		// it as "no required fields" rather than failing every call.
		return nil
	}
	if len(schemaDoc.Required) == 0 {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("structured reply is not a JSON object: %w", err)
	}

	var missing []string
	for _, field := range schemaDoc.Required {
		if _, ok := obj[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (p *ollamaProvider) ChatStructured(ctx context.Context, req ChatRequest, schema json.RawMessage) (json.RawMessage, error) {
	return chatStructuredViaPrompt(ctx, p.Chat, req, schema)
}

func (p *openaiProvider) ChatStructured(ctx context.Context, req ChatRequest, schema json.RawMessage) (json.RawMessage, error) {
	return chatStructuredViaPrompt(ctx, p.Chat, req, schema)
}

func (p *anthropicProvider) ChatStructured(ctx context.Context, req ChatRequest, schema json.RawMessage) (json.RawMessage, error) {
	return chatStructuredViaPrompt(ctx, p.Chat, req, schema)
}

func (p *MockProvider) ChatStructured(ctx context.Context, req ChatRequest, schema json.RawMessage) (json.RawMessage, error) {
	if p.ChatStructuredFunc != nil {
		return p.ChatStructuredFunc(ctx, req, schema)
	}
	return chatStructuredViaPrompt(ctx, p.Chat, req, schema)
}
