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
	"time"

	"github.com/kraklabs/cie/pkg/resilience"
)

// resilientProvider wraps a concrete Provider with a per-provider circuit
// breaker, token-bucket rate limiter, and bounded per-call timeout. Streaming
// calls, including the call that opens the stream, are passed straight to the
// inner provider: once a stream is open, tripping the breaker mid-stream
// would orphan a live connection rather than protect anything.
type resilientProvider struct {
	inner   Provider
	breaker *resilience.Breaker
	limiter *resilience.Limiter
	timeout time.Duration
}

func wrapResilient(inner Provider, cfg ProviderConfig) Provider {
	var limiter *resilience.Limiter
	if cfg.Limiter.Rate > 0 {
		limiter = resilience.NewLimiter(cfg.Limiter)
	}
	return &resilientProvider{
		inner:   inner,
		breaker: resilience.NewBreaker(cfg.Breaker),
		limiter: limiter,
		timeout: cfg.CallTimeout,
	}
}

func (r *resilientProvider) guard(ctx context.Context, f func(context.Context) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	guarded := f
	if r.limiter != nil {
		inner := guarded
		guarded = func(ctx context.Context) error {
			return r.limiter.CallWait(ctx, inner)
		}
	}
	return r.breaker.Call(ctx, guarded)
}

func (r *resilientProvider) Name() string { return r.inner.Name() }

func (r *resilientProvider) Models(ctx context.Context) ([]string, error) {
	var models []string
	err := r.guard(ctx, func(ctx context.Context) error {
		m, err := r.inner.Models(ctx)
		models = m
		return err
	})
	return models, err
}

func (r *resilientProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var resp *GenerateResponse
	err := r.guard(ctx, func(ctx context.Context) error {
		out, err := r.inner.Generate(ctx, req)
		resp = out
		return err
	})
	return resp, err
}

func (r *resilientProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp *ChatResponse
	err := r.guard(ctx, func(ctx context.Context) error {
		out, err := r.inner.Chat(ctx, req)
		resp = out
		return err
	})
	return resp, err
}

func (r *resilientProvider) ChatStructured(ctx context.Context, req ChatRequest, schema json.RawMessage) (json.RawMessage, error) {
	var raw json.RawMessage
	err := r.guard(ctx, func(ctx context.Context) error {
		out, err := r.inner.ChatStructured(ctx, req, schema)
		raw = out
		return err
	})
	return raw, err
}

// ChatStream is not wrapped by the timeout/breaker/limiter guard: the
// long-lived channel it returns outlives any single-call budget, and the
// caller drains it at its own pace.
func (r *resilientProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	return r.inner.ChatStream(ctx, req)
}
