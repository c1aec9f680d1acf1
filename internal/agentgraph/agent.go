// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package agentgraph

import (
	"context"

	"github.com/kraklabs/cie/pkg/fn"
	"github.com/kraklabs/cie/pkg/llm"
)

// recursionLimit bounds the Executor loop at N steps regardless of how
// long a planner-produced Plan is, guarding against a malformed or
// adversarial LLM reply driving unbounded iteration.
const recursionLimit = 15

// Agent wires the Planner, Executor, Grader, Synthesizer, and Critic into
// a single pipeline. The original expressed this as a langgraph.StateGraph
// with a conditional loop edge; no such graph-execution library exists in
// this module's dependency surface, so the loop is a plain Go for-loop
// over fn.Stage-shaped node functions instead.
type Agent struct {
	Planner     *Planner
	Executor    *Executor
	Grader      *Grader
	Synthesizer *Synthesizer
	Critic      *Critic
}

// New builds an Agent from a single LLM provider and the tool
// collaborators it dispatches to.
func New(provider llm.Provider, tools *Tools) *Agent {
	return &Agent{
		Planner:     &Planner{Provider: provider},
		Executor:    &Executor{Provider: provider, Tools: tools},
		Grader:      &Grader{Provider: provider},
		Synthesizer: &Synthesizer{Provider: provider},
		Critic:      &Critic{},
	}
}

// Run executes the full Planner -> Executor loop -> Grader -> Synthesizer
// -> Critic pipeline and returns the final state. Stage errors from the
// Planner or Grader are discarded rather than aborting the pipeline, since
// both stages leave State in a well-defined fallback shape that the rest
// of the pipeline can still run against; only a Synthesizer error is
// returned from Run. Executor and Critic never themselves return errors.
func (a *Agent) Run(ctx context.Context, req State) (State, error) {
	planStage := fn.TracedStage("agentgraph.plan", fn.Stage[State, State](func(ctx context.Context, s State) fn.Result[State] {
		// A parse/call failure still returns a well-formed degraded State
		// (empty plan), so the pipeline continues rather than aborting.
		out, _ := a.Planner.Plan(ctx, s)
		return fn.Ok(out)
	}))

	graderStage := fn.TracedStage("agentgraph.grade", fn.Stage[State, State](func(ctx context.Context, s State) fn.Result[State] {
		out, _ := a.Grader.Grade(ctx, s)
		return fn.Ok(out)
	}))

	synthesizerStage := fn.TracedStage("agentgraph.synthesize", fn.Stage[State, State](func(ctx context.Context, s State) fn.Result[State] {
		out, err := a.Synthesizer.Synthesize(ctx, s)
		if err != nil {
			return fn.Err[State](err)
		}
		return fn.Ok(out)
	}))

	criticStage := fn.Stage[State, State](func(ctx context.Context, s State) fn.Result[State] {
		out, _ := a.Critic.Review(ctx, s)
		return fn.Ok(out)
	})

	result := planStage(ctx, req)
	s, _ := result.Unwrap()

	for steps := 0; !s.planComplete() && steps < recursionLimit; steps++ {
		next, _ := a.Executor.ExecuteNextStep(ctx, s)
		s = next
	}

	result = graderStage(ctx, s)
	s, _ = result.Unwrap()

	result = synthesizerStage(ctx, s)
	if result.IsErr() {
		_, err := result.Unwrap()
		return s, err
	}
	s, _ = result.Unwrap()

	result = criticStage(ctx, s)
	s, _ = result.Unwrap()

	return s, nil
}
