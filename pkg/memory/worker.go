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

package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/kraklabs/cie/pkg/jobqueue"
)

// HandleJob runs the memory-maintenance task named by job.Kind, first
// sleeping off any remaining delay to job.RunAt. This recovers Celery's
// apply_async(countdown=...) semantics: jobqueue delivers messages
// immediately, so honoring the requested delay is the handler's job.
// Errors are logged and swallowed rather than propagated, matching the
// original tasks' own try/except-and-log bodies — a failed summary or
// fact extraction should never surface as a user-visible error.
func (m *Maintainer) HandleJob(ctx context.Context, job jobqueue.MemoryJob) {
	if m.logger == nil {
		m.logger = slog.Default()
	}

	if delay := time.Until(job.RunAt); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	switch job.Kind {
	case jobqueue.MemoryJobRepoSummary:
		if _, err := m.RefreshRepoSummary(ctx, job.UserID, job.RepoID); err != nil {
			m.logger.ErrorContext(ctx, "memory: repo summary task failed", "user_id", job.UserID, "repo_id", job.RepoID, "error", err)
		}
	case jobqueue.MemoryJobUserFacts:
		if _, err := m.ExtractUserFacts(ctx, job.UserID); err != nil {
			m.logger.ErrorContext(ctx, "memory: user facts task failed", "user_id", job.UserID, "error", err)
		}
	default:
		m.logger.WarnContext(ctx, "memory: unknown job kind", "kind", job.Kind)
	}
}
