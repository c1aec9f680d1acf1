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

// Package jobqueue dispatches background work onto two logical NATS
// subjects: repository ingestion and memory maintenance, mirroring the
// two Celery queues (repo_ingestion, memory_tasks) the original backend
// routed tasks to via CELERY_TASK_ROUTES.
package jobqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// Subjects the two logical queues publish to and subscribe on.
const (
	SubjectIngest = "cie.jobs.ingest"
	SubjectMemory = "cie.jobs.memory"
)

// IngestJob requests a repository be (re-)ingested into the graph and
// vector stores.
type IngestJob struct {
	RepoID string `json:"repo_id"`
	Source string `json:"source"` // git URL or local path
}

// MemoryJob requests the memory maintainer run one of its two tasks for a
// user, optionally scoped to a repository.
type MemoryJob struct {
	Kind   MemoryJobKind `json:"kind"`
	UserID string        `json:"user_id"`
	RepoID string        `json:"repo_id,omitempty"`

	// RunAt delays delivery, recovering Celery's apply_async(countdown=...)
	// usage: a worker receiving a job with a future RunAt sleeps the
	// remainder before acting on it rather than acting immediately.
	RunAt time.Time `json:"run_at,omitempty"`
}

// MemoryJobKind selects which memory-maintainer task a MemoryJob runs.
type MemoryJobKind string

const (
	MemoryJobRepoSummary MemoryJobKind = "repo_summary"
	MemoryJobUserFacts   MemoryJobKind = "user_facts"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel trace propagation,
// the same adapter WessleyAI's natsutil package uses.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// publish serializes v as JSON and publishes it to subject, injecting the
// caller's trace context into the message headers.
func publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return nc.PublishMsg(msg)
}

// subscribe registers a handler that deserializes JSON messages of type T,
// extracting trace context from message headers. Malformed messages are
// dropped rather than delivered to the handler.
func subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	})
}

// Queue publishes and subscribes to the ingestion and memory-maintenance
// queues over a single NATS connection.
type Queue struct {
	nc *nats.Conn
}

// New wraps an already-connected NATS client. Callers own the connection's
// lifecycle (typically one connection shared across the whole process).
func New(nc *nats.Conn) *Queue {
	return &Queue{nc: nc}
}

// PublishIngest enqueues a repository ingestion job.
func (q *Queue) PublishIngest(ctx context.Context, job IngestJob) error {
	return publish(ctx, q.nc, SubjectIngest, job)
}

// SubscribeIngest registers handler to run for every ingestion job.
func (q *Queue) SubscribeIngest(handler func(context.Context, IngestJob)) (*nats.Subscription, error) {
	return subscribe(q.nc, SubjectIngest, handler)
}

// PublishMemory enqueues a memory-maintenance job.
func (q *Queue) PublishMemory(ctx context.Context, job MemoryJob) error {
	return publish(ctx, q.nc, SubjectMemory, job)
}

// SubscribeMemory registers handler to run for every memory-maintenance
// job. The handler is responsible for honoring MemoryJob.RunAt if the
// caller needs delayed delivery; the queue itself delivers immediately.
func (q *Queue) SubscribeMemory(handler func(context.Context, MemoryJob)) (*nats.Subscription, error) {
	return subscribe(q.nc, SubjectMemory, handler)
}
