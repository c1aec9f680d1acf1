// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package agentgraph

import "context"

// Critic approves the Synthesizer's answer by passing it through
// unchanged. The original critic node is itself a placeholder with no
// actual critique logic, so this stays a pass-through rather than
// inventing a review step with no source to ground it on.
type Critic struct{}

// Review returns s unchanged.
func (c *Critic) Review(_ context.Context, s State) (State, error) {
	return s, nil
}
