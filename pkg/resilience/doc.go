// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resilience wraps outbound calls to failure-prone dependencies
// (LLM providers, in particular) with a circuit breaker and a token-bucket
// rate limiter. Each is independent and can be used alone or composed:
//
//	breaker := resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 5, Timeout: 30 * time.Second})
//	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: 2, Burst: 4})
//
//	err := breaker.Call(ctx, func(ctx context.Context) error {
//		return limiter.Call(ctx, func(ctx context.Context) error {
//			return provider.Generate(ctx, req)
//		})
//	})
//
// Breaker trips open after a run of consecutive failures, rejecting calls
// with ErrCircuitOpen until its Timeout elapses, at which point it allows a
// bounded number of half-open probe calls before deciding whether to close
// again or re-open. Limiter rejects (Call) or blocks (CallWait/Wait) calls
// once its token bucket is exhausted, refilling at a steady Rate up to
// Burst capacity.
package resilience
