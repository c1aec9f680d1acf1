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

package main

import (
	"context"
	"sync"
)

// ConfiguredModel is one LLM a chat request may select, the shape the
// original backend's ConfiguredModel table held.
type ConfiguredModel struct {
	ID         string
	Name       string
	Provider   string
	Notes      string
	IsActive   bool
	// APIKeyName is the secretstore entry this model needs resolved
	// before it can be used. Empty means no key is required (e.g. a
	// locally-hosted Ollama model).
	APIKeyName string
}

// ModelRegistry resolves the set of models a chat client may choose from.
type ModelRegistry interface {
	List(ctx context.Context) ([]ConfiguredModel, error)
	Get(ctx context.Context, id string) (ConfiguredModel, bool, error)
}

// MemModelRegistry is an in-memory ModelRegistry for tests and the
// embedded deployment, where models are configured once at startup
// rather than administered through a database.
type MemModelRegistry struct {
	mu     sync.RWMutex
	models map[string]ConfiguredModel
}

// NewMemModelRegistry returns a registry seeded with the given models.
func NewMemModelRegistry(models ...ConfiguredModel) *MemModelRegistry {
	m := make(map[string]ConfiguredModel, len(models))
	for _, model := range models {
		m[model.ID] = model
	}
	return &MemModelRegistry{models: m}
}

var _ ModelRegistry = (*MemModelRegistry)(nil)

// List returns every configured model, in no particular order.
func (r *MemModelRegistry) List(_ context.Context) ([]ConfiguredModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConfiguredModel, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	return out, nil
}

// Get returns the model registered under id.
func (r *MemModelRegistry) Get(_ context.Context, id string) (ConfiguredModel, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok, nil
}
